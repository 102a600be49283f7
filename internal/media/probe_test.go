package media

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestProber_Inspect_missing_binary(t *testing.T) {
	p := NewProber(filepath.Join(t.TempDir(), "no-such-ffprobe"))

	_, err := p.Inspect(context.Background(), "whatever.mp4")
	var pErr *ProbeError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}
	if pErr.Path != "whatever.mp4" {
		t.Errorf("ProbeError.Path = %q", pErr.Path)
	}
}

func TestProbeError_message(t *testing.T) {
	err := &ProbeError{Path: "bad.mp4", Output: "Invalid data found when processing input", Err: errors.New("exit status 1")}
	if !strings.Contains(err.Error(), "bad.mp4") || !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("message should carry path and probe output: %s", err.Error())
	}
}

func TestSource_HasAudio(t *testing.T) {
	if (Source{AudioStreams: 0}).HasAudio() {
		t.Error("no audio streams should report HasAudio false")
	}
	if !(Source{AudioStreams: 1}).HasAudio() {
		t.Error("one audio stream should report HasAudio true")
	}
}
