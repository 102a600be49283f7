package media

import "errors"

var errNoVideoStream = errors.New("no video stream")

// Source describes the probed characteristics of a source file needed to
// plan an encode.
type Source struct {
	Path            string
	VideoStreams    int
	AudioStreams    int
	DurationSeconds float64
}

// HasAudio reports whether the source carries at least one audio stream.
func (s Source) HasAudio() bool { return s.AudioStreams > 0 }

// RenditionSpec is one rung of the output ladder: a fixed resolution and
// target bitrate in kbit/s. The slice order determines the encoder's output
// stream index, which the adaptation-set descriptor references positionally,
// so the ladder order must stay stable.
type RenditionSpec struct {
	Width   int
	Height  int
	Bitrate int
}

// Result holds the catalog-facing paths produced by a completed packaging
// run, relative to the serving root or prefixed with the CDN URL.
type Result struct {
	ManifestPath  string
	ThumbnailPath string
}
