package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoder constants shared by every job. The GOP length is fixed so that
// keyframes land exactly on segment boundaries (48 frames / 12 fps-equivalent
// cadence against 4s segments); without that, segments are not independently
// seekable or switchable.
const (
	videoCodec      = "libx264"
	videoPreset     = "medium"
	videoCRF        = "24"
	gopSize         = 48
	segmentDuration = 4

	audioCodec      = "aac"
	audioBitrate    = "128k"
	audioChannels   = 2
	audioSampleRate = 44100

	initSegmentName  = "init-$RepresentationID$.m4s"
	mediaSegmentName = "segment-$RepresentationID$-$Number$.m4s"
)

// DefaultLadder is the fixed output ladder, ordered low to high. Order is
// load-bearing: output stream indices follow it.
var DefaultLadder = []RenditionSpec{
	{Width: 640, Height: 360, Bitrate: 800},
	{Width: 1280, Height: 720, Bitrate: 2500},
	{Width: 1920, Height: 1080, Bitrate: 5000},
}

// EncodeJobParams is the immutable plan for a single encoder invocation,
// derived once per job from the probed source.
type EncodeJobParams struct {
	HasAudio       bool
	Renditions     []RenditionSpec
	AdaptationSets string
}

// PlanJob derives the encode parameters for a source. The video ladder is
// always DefaultLadder; an audio rendition is appended only when the source
// carries audio.
func PlanJob(hasAudio bool) EncodeJobParams {
	return EncodeJobParams{
		HasAudio:       hasAudio,
		Renditions:     DefaultLadder,
		AdaptationSets: adaptationSets(len(DefaultLadder), hasAudio),
	}
}

// adaptationSets builds the -adaptation_sets descriptor: set 0 groups the
// video stream indices [0..n-1] so a player can switch renditions freely,
// and set 1 holds the trailing audio stream when present.
func adaptationSets(videoCount int, hasAudio bool) string {
	indices := make([]string, 0, videoCount)
	for i := 0; i < videoCount; i++ {
		indices = append(indices, strconv.Itoa(i))
	}
	desc := "id=0,streams=" + strings.Join(indices, ",")
	if hasAudio {
		desc += fmt.Sprintf(" id=1,streams=%d", videoCount)
	}
	return desc
}

// SegmentArgs returns the full ffmpeg argument list for the single
// segmentation pass: every rendition plus the manifest in one invocation so
// all outputs share one timeline.
func (p EncodeJobParams) SegmentArgs(sourcePath, manifestPath string) []string {
	args := []string{
		"-i", sourcePath,
		"-c:v", videoCodec,
		"-preset", videoPreset,
		"-crf", videoCRF,
		"-keyint_min", strconv.Itoa(gopSize),
		"-g", strconv.Itoa(gopSize),
		"-sc_threshold", "0",
	}

	for i, r := range p.Renditions {
		args = append(args,
			"-map", "0:v:0",
			fmt.Sprintf("-filter:v:%d", i), fmt.Sprintf("scale=-2:%d", r.Height),
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dk", r.Bitrate),
			// 1.2x maxrate and 1.5x bufsize give burst tolerance without
			// unbounded rate spikes.
			fmt.Sprintf("-maxrate:v:%d", i), fmt.Sprintf("%dk", r.Bitrate*12/10),
			fmt.Sprintf("-bufsize:v:%d", i), fmt.Sprintf("%dk", r.Bitrate*15/10),
		)
	}

	if p.HasAudio {
		args = append(args,
			"-map", "0:a:0",
			"-c:a", audioCodec,
			"-b:a", audioBitrate,
			"-ac", strconv.Itoa(audioChannels),
			"-ar", strconv.Itoa(audioSampleRate),
		)
	}

	args = append(args,
		"-f", "dash",
		"-seg_duration", strconv.Itoa(segmentDuration),
		"-use_template", "1",
		"-use_timeline", "1",
		"-init_seg_name", initSegmentName,
		"-media_seg_name", mediaSegmentName,
		"-adaptation_sets", p.AdaptationSets,
		manifestPath,
	)
	return args
}
