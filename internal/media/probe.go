package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeError reports an unreadable or invalid source file. It carries the
// probe's diagnostic output for the upload caller.
type ProbeError struct {
	Path   string
	Output string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("probe %s: %v: %s", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// probeStream mirrors the subset of ffprobe's per-stream JSON we consume.
type probeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Prober inspects source media via an external ffprobe binary.
type Prober struct {
	binary string
}

// NewProber returns a Prober using the given ffprobe binary. An empty binary
// falls back to "ffprobe" on PATH.
func NewProber(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

// Inspect probes the container and stream metadata of the file at path.
// It is read-only; the file is never modified. A *ProbeError is returned for
// unreadable files or invalid media containers.
func (p *Prober) Inspect(ctx context.Context, path string) (Source, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-hide_banner",
		"-show_streams",
		"-show_format",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Source{}, &ProbeError{Path: path, Output: strings.TrimSpace(string(output)), Err: err}
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Source{}, &ProbeError{Path: path, Err: err}
	}

	src := Source{Path: path}
	for _, stream := range result.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "audio":
			src.AudioStreams++
		case "video":
			src.VideoStreams++
		}
	}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		src.DurationSeconds = d
	}

	if src.VideoStreams == 0 {
		return Source{}, &ProbeError{Path: path, Output: "no video stream in container", Err: errNoVideoStream}
	}
	return src, nil
}
