package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"dash-packager/internal/catalog"
	"dash-packager/internal/media"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProber struct {
	src media.Source
	err error

	called bool
}

func (f *fakeProber) Inspect(ctx context.Context, path string) (media.Source, error) {
	f.called = true
	if f.err != nil {
		return media.Source{}, f.err
	}
	src := f.src
	src.Path = path
	return src, nil
}

// fakeEncoder mimics the orchestrator's contract: it records its inputs and,
// on success, deletes the source file the way the real encoder does.
type fakeEncoder struct {
	err error

	called    bool
	source    string
	outputDir string
	title     string
	params    media.EncodeJobParams
}

func (f *fakeEncoder) Package(ctx context.Context, sourcePath, outputDir, title string, params media.EncodeJobParams) (media.Result, error) {
	f.called = true
	f.source = sourcePath
	f.outputDir = outputDir
	f.title = title
	f.params = params
	if f.err != nil {
		return media.Result{}, f.err
	}
	if err := os.Remove(sourcePath); err != nil {
		return media.Result{}, err
	}
	return media.Result{
		ManifestPath:  "videos/" + title + "/index.mpd",
		ThumbnailPath: "videos/" + title + "/thumbnail.webp",
	}, nil
}

type failingStore struct{}

func (failingStore) Upsert(catalog.Entry) error {
	return &catalog.WriteError{Err: errors.New("store down")}
}
func (failingStore) Get(string) (catalog.Entry, bool, error) { return catalog.Entry{}, false, nil }
func (failingStore) List() ([]catalog.Entry, error)          { return nil, nil }

func stageSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, prober Prober, encoder Encoder, store catalog.Store) *Service {
	t.Helper()
	dir := t.TempDir()
	if store == nil {
		store = catalog.NewFileStore(filepath.Join(dir, "data.json"))
	}
	return NewService(prober, encoder, store, nil, filepath.Join(dir, "videos"), filepath.Join(dir, "tmp"), discardLogger())
}

func TestService_Process_success(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "upload-abc123")

	store := catalog.NewFileStore(filepath.Join(dir, "data.json"))
	prober := &fakeProber{src: media.Source{VideoStreams: 1, AudioStreams: 1}}
	encoder := &fakeEncoder{}
	svc := newTestService(t, prober, encoder, store)

	result, err := svc.Process(context.Background(), UploadRequest{SourcePath: source, Title: "demo"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Title != "demo" {
		t.Errorf("title = %q", result.Title)
	}
	if result.ManifestPath != "videos/demo/index.mpd" {
		t.Errorf("manifest = %q", result.ManifestPath)
	}
	if result.ThumbnailPath != "videos/demo/thumbnail.webp" {
		t.Errorf("thumbnail = %q", result.ThumbnailPath)
	}

	// Catalog entry written only after the packaged asset exists.
	entry, ok, err := store.Get("demo")
	if err != nil || !ok {
		t.Fatalf("catalog entry missing: ok=%v err=%v", ok, err)
	}
	if entry.ManifestPath != "videos/demo/index.mpd" || entry.ThumbnailPath != "videos/demo/thumbnail.webp" {
		t.Errorf("catalog entry = %+v", entry)
	}

	// Source is consumed on success.
	if _, statErr := os.Stat(source); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("source should be deleted after success, stat: %v", statErr)
	}

	// The output directory is derived from the title, matching the token
	// path constraint layout.
	if filepath.Base(encoder.outputDir) != "demo" {
		t.Errorf("output dir = %q, want .../demo", encoder.outputDir)
	}
}

func TestService_Process_plans_audio_from_probe(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "upload")

	t.Run("with_audio", func(t *testing.T) {
		encoder := &fakeEncoder{}
		svc := newTestService(t, &fakeProber{src: media.Source{VideoStreams: 1, AudioStreams: 1}}, encoder, nil)
		src2 := stageSource(t, dir, "upload-audio")
		if _, err := svc.Process(context.Background(), UploadRequest{SourcePath: src2, Title: "a"}); err != nil {
			t.Fatal(err)
		}
		if !encoder.params.HasAudio {
			t.Error("plan should include audio")
		}
	})

	t.Run("without_audio", func(t *testing.T) {
		encoder := &fakeEncoder{}
		svc := newTestService(t, &fakeProber{src: media.Source{VideoStreams: 1}}, encoder, nil)
		if _, err := svc.Process(context.Background(), UploadRequest{SourcePath: source, Title: "b"}); err != nil {
			t.Fatal(err)
		}
		if encoder.params.HasAudio {
			t.Error("plan should not include audio")
		}
	})
}

func TestService_Process_title_defaults_to_filename_stem(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "holiday-reel.mp4")

	encoder := &fakeEncoder{}
	svc := newTestService(t, &fakeProber{src: media.Source{VideoStreams: 1}}, encoder, nil)

	result, err := svc.Process(context.Background(), UploadRequest{SourcePath: source})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Title != "holiday-reel" {
		t.Errorf("title = %q, want filename stem", result.Title)
	}
}

func TestService_Process_invalid_title(t *testing.T) {
	svc := newTestService(t, &fakeProber{}, &fakeEncoder{}, nil)

	for _, title := range []string{"..", "a/b", `a\b`, "."} {
		_, err := svc.Process(context.Background(), UploadRequest{SourcePath: "/tmp/x", Title: title})
		if !errors.Is(err, ErrInvalidTitle) {
			t.Errorf("title %q: expected ErrInvalidTitle, got %v", title, err)
		}
	}
}

func TestService_Process_probe_failure_aborts(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "upload")

	store := catalog.NewFileStore(filepath.Join(dir, "data.json"))
	probeErr := &media.ProbeError{Path: source, Err: errors.New("invalid data")}
	encoder := &fakeEncoder{}
	svc := newTestService(t, &fakeProber{err: probeErr}, encoder, store)

	_, err := svc.Process(context.Background(), UploadRequest{SourcePath: source, Title: "demo"})
	var pErr *media.ProbeError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *ProbeError, got %v", err)
	}

	if encoder.called {
		t.Error("encoder must not run after a failed probe")
	}
	entries, _ := store.List()
	if len(entries) != 0 {
		t.Error("failed pipeline must not touch the catalog")
	}
}

func TestService_Process_encode_failure_leaves_catalog_untouched(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "upload")

	store := catalog.NewFileStore(filepath.Join(dir, "data.json"))
	encodeErr := &media.TranscodeError{Stage: "segment", Stderr: "boom", Err: errors.New("exit status 1")}
	svc := newTestService(t, &fakeProber{src: media.Source{VideoStreams: 1}}, &fakeEncoder{err: encodeErr}, store)

	_, err := svc.Process(context.Background(), UploadRequest{SourcePath: source, Title: "demo"})
	var tErr *media.TranscodeError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TranscodeError, got %v", err)
	}

	entries, _ := store.List()
	if len(entries) != 0 {
		t.Error("failed encode must not write a catalog entry")
	}
	// Source survives a failed encode for inspection (fake only removes it
	// on success, matching the orchestrator contract).
	if _, statErr := os.Stat(source); statErr != nil {
		t.Errorf("source should survive failed encode: %v", statErr)
	}
}

func TestService_Process_catalog_failure_reported(t *testing.T) {
	dir := t.TempDir()
	source := stageSource(t, dir, "upload")

	svc := newTestService(t, &fakeProber{src: media.Source{VideoStreams: 1}}, &fakeEncoder{}, failingStore{})

	result, err := svc.Process(context.Background(), UploadRequest{SourcePath: source, Title: "demo"})
	var wErr *catalog.WriteError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *catalog.WriteError, got %v", err)
	}
	// The transcode itself completed; its outputs are still reported.
	if result.ManifestPath == "" {
		t.Error("completed transcode paths should be returned despite catalog failure")
	}
}

func TestService_SweepTempUploads(t *testing.T) {
	t.Run("removes_leftovers", func(t *testing.T) {
		dir := t.TempDir()
		tmp := filepath.Join(dir, "tmp")
		if err := os.MkdirAll(tmp, 0o755); err != nil {
			t.Fatal(err)
		}
		stageSource(t, tmp, "half-finished-1")
		stageSource(t, tmp, "half-finished-2")

		svc := NewService(&fakeProber{}, &fakeEncoder{}, catalog.NewFileStore(filepath.Join(dir, "data.json")), nil, dir, tmp, discardLogger())

		removed, err := svc.SweepTempUploads()
		if err != nil {
			t.Fatalf("SweepTempUploads: %v", err)
		}
		if removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}
		entries, _ := os.ReadDir(tmp)
		if len(entries) != 0 {
			t.Errorf("temp dir should be empty, has %d entries", len(entries))
		}
	})

	t.Run("creates_missing_dir", func(t *testing.T) {
		dir := t.TempDir()
		tmp := filepath.Join(dir, "does-not-exist-yet")
		svc := NewService(&fakeProber{}, &fakeEncoder{}, catalog.NewFileStore(filepath.Join(dir, "data.json")), nil, dir, tmp, discardLogger())

		if _, err := svc.SweepTempUploads(); err != nil {
			t.Fatalf("SweepTempUploads: %v", err)
		}
		if _, err := os.Stat(tmp); err != nil {
			t.Errorf("temp dir should be created: %v", err)
		}
	})
}

func TestValidateTitle(t *testing.T) {
	for _, ok := range []string{"demo", "movies1", "Holiday Reel 2024", "a.b"} {
		if err := ValidateTitle(ok); err != nil {
			t.Errorf("ValidateTitle(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		if err := ValidateTitle(bad); !errors.Is(err, ErrInvalidTitle) {
			t.Errorf("ValidateTitle(%q) = %v, want ErrInvalidTitle", bad, err)
		}
	}
}
