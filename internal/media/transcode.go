package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// Fixed per-asset output names. The token path constraint and the catalog
// both assume exactly this layout.
const (
	ManifestName   = "index.mpd"
	ThumbnailName  = "thumbnail.webp"
	thumbnailWidth = 320
)

// TranscodeError reports an encoder process failure and carries the
// encoder's diagnostic output. The source file is left in place when this
// is returned.
type TranscodeError struct {
	Stage  string // "thumbnail" or "segment"
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("transcode %s: %v: %s", e.Stage, e.Err, e.Stderr)
	}
	return fmt.Sprintf("transcode %s: %v", e.Stage, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder drives the external encoder to produce a packaged asset:
// one thumbnail, one manifest, and the segmented renditions.
type Transcoder struct {
	binary string
	cdnURL string
	log    *slog.Logger
}

// NewTranscoder returns a Transcoder using the given ffmpeg binary. Produced
// manifest and thumbnail paths are prefixed with cdnURL when it is non-empty.
func NewTranscoder(binary, cdnURL string, log *slog.Logger) *Transcoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{binary: binary, cdnURL: strings.TrimRight(cdnURL, "/"), log: log}
}

// Package runs the full packaging job for one source file into outputDir:
// a representative thumbnail frame, then a single segmentation pass writing
// the manifest and all renditions on a shared timeline. On success the
// source file is deleted and the catalog-facing paths are returned. On
// encoder failure the source file is deliberately left on disk for
// inspection and a *TranscodeError is returned.
//
// No timeout is applied to the encoder; pass a cancellable ctx if bounded
// latency is needed.
func (t *Transcoder) Package(ctx context.Context, sourcePath, outputDir, title string, params EncodeJobParams) (Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, &TranscodeError{Stage: "segment", Err: err}
	}

	if err := t.run(ctx, "thumbnail", thumbnailArgs(sourcePath, filepath.Join(outputDir, ThumbnailName))); err != nil {
		return Result{}, err
	}

	manifestPath := filepath.Join(outputDir, ManifestName)
	if err := t.run(ctx, "segment", params.SegmentArgs(sourcePath, manifestPath)); err != nil {
		return Result{}, err
	}

	if err := os.Remove(sourcePath); err != nil {
		// The packaged asset is complete; a leftover source is reported but
		// does not fail the job.
		t.log.Warn("source cleanup failed", slog.String("source", sourcePath), slog.String("error", err.Error()))
	}

	return Result{
		ManifestPath:  t.assetPath(title, ManifestName),
		ThumbnailPath: t.assetPath(title, ThumbnailName),
	}, nil
}

func (t *Transcoder) run(ctx context.Context, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	t.log.Debug("encoder invocation",
		slog.String("stage", stage),
		slog.String("command", t.binary+" "+strings.Join(args, " ")),
	)

	if err := cmd.Run(); err != nil {
		return &TranscodeError{Stage: stage, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// thumbnailArgs requests a single representative frame, scaled to a fixed
// width with proportional height.
func thumbnailArgs(sourcePath, outPath string) []string {
	return []string{
		"-y",
		"-ss", "1",
		"-i", sourcePath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", thumbnailWidth),
		outPath,
	}
}

// assetPath builds the path recorded in the catalog and fetched by players:
// "videos/<title>/<name>", CDN-prefixed when configured. It uses URL path
// separators regardless of host OS.
func (t *Transcoder) assetPath(title, name string) string {
	rel := path.Join("videos", title, name)
	if t.cdnURL == "" {
		return rel
	}
	return t.cdnURL + "/" + rel
}
