package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dash-packager/internal/catalog"
	"dash-packager/internal/media"
	"dash-packager/internal/platform/metrics"

	"github.com/google/uuid"
)

// ErrInvalidTitle is returned when a title cannot be used as a catalog key
// and a single filesystem path segment. The packaging layout and the token
// path constraint must agree character-for-character on the title, so
// nothing is escaped or rewritten.
var ErrInvalidTitle = errors.New("title not usable as a path segment")

// UploadRequest is the intake contract: the external collaborator stages
// the source file and hands the core its path plus declared metadata.
type UploadRequest struct {
	SourcePath string `json:"sourcePath"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	Info       string `json:"info"`
}

// UploadResult reports a completed packaging run.
type UploadResult struct {
	Title         string `json:"title"`
	ManifestPath  string `json:"manifestPath"`
	ThumbnailPath string `json:"thumbnailPath"`
}

// Prober determines source characteristics needed to plan the encode.
type Prober interface {
	Inspect(ctx context.Context, path string) (media.Source, error)
}

// Encoder runs the packaging job for one source file.
type Encoder interface {
	Package(ctx context.Context, sourcePath, outputDir, title string, params media.EncodeJobParams) (media.Result, error)
}

// Service runs the per-upload pipeline: probe, plan, encode, catalog
// update. Each upload's pipeline is an independent sequence; concurrent
// uploads share nothing but the catalog store, which serializes its own
// writes. There is no admission control: callers may start any number of
// pipelines, bounded only by host resources.
type Service struct {
	prober  Prober
	encoder Encoder
	catalog catalog.Store
	metrics *metrics.Metrics

	videoDir string
	tempDir  string
	log      *slog.Logger
}

// NewService wires the pipeline stages together. metrics may be nil to
// disable metric recording (e.g. in tests).
func NewService(prober Prober, encoder Encoder, store catalog.Store, m *metrics.Metrics, videoDir, tempDir string, log *slog.Logger) *Service {
	return &Service{
		prober:   prober,
		encoder:  encoder,
		catalog:  store,
		metrics:  m,
		videoDir: videoDir,
		tempDir:  tempDir,
		log:      log,
	}
}

// Process runs the full pipeline for one staged upload. Any stage error
// aborts the remaining stages and is returned typed; the catalog entry is
// written only after the packaged manifest exists, so a failed pipeline
// never makes a half-built asset visible.
func (s *Service) Process(ctx context.Context, req UploadRequest) (UploadResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = stem(req.SourcePath)
	}
	if err := ValidateTitle(title); err != nil {
		return UploadResult{}, err
	}

	log := s.log.With(
		slog.String("job_id", uuid.NewString()),
		slog.String("title", title),
	)

	if s.metrics != nil {
		s.metrics.TranscodeStarted()
		defer s.metrics.TranscodeFinished()
	}

	src, err := s.prober.Inspect(ctx, req.SourcePath)
	if err != nil {
		s.failed(log, "probe", err)
		return UploadResult{}, err
	}
	log.Info("source probed",
		slog.Bool("has_audio", src.HasAudio()),
		slog.Int("video_streams", src.VideoStreams),
		slog.Float64("duration_s", src.DurationSeconds),
	)

	params := media.PlanJob(src.HasAudio())

	result, err := s.encoder.Package(ctx, req.SourcePath, filepath.Join(s.videoDir, title), title, params)
	if err != nil {
		s.failed(log, "encode", err)
		return UploadResult{}, err
	}

	out := UploadResult{
		Title:         title,
		ManifestPath:  result.ManifestPath,
		ThumbnailPath: result.ThumbnailPath,
	}

	// The packaged asset is durable at this point. A catalog failure is
	// surfaced to the caller but does not roll the transcode back.
	if err := s.catalog.Upsert(catalog.Entry{
		Title:         title,
		ManifestPath:  result.ManifestPath,
		ThumbnailPath: result.ThumbnailPath,
	}); err != nil {
		s.failed(log, "catalog", err)
		return out, err
	}

	if s.metrics != nil {
		s.metrics.IncTranscodes()
	}
	log.Info("asset packaged",
		slog.String("manifest", out.ManifestPath),
		slog.String("thumbnail", out.ThumbnailPath),
	)
	return out, nil
}

func (s *Service) failed(log *slog.Logger, stage string, err error) {
	if s.metrics != nil {
		s.metrics.IncTranscodeFailures()
	}
	log.Error("pipeline failed", slog.String("stage", stage), slog.String("error", err.Error()))
}

// SweepTempUploads deletes everything left in the temp-upload directory by
// half-finished pipelines from a previous run. It is called once at process
// startup, never mid-run, and creates the directory if absent.
func (s *Service) SweepTempUploads() (int, error) {
	entries, err := os.ReadDir(s.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, os.MkdirAll(s.tempDir, 0o755)
	}
	if err != nil {
		return 0, fmt.Errorf("sweep temp uploads: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		p := filepath.Join(s.tempDir, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("sweep temp uploads: %w", err)
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept temp uploads", slog.Int("removed", removed), slog.String("dir", s.tempDir))
	}
	return removed, nil
}

// ValidateTitle rejects titles that cannot serve as both a catalog key and
// a single path segment.
func ValidateTitle(title string) error {
	if title == "" || title == "." || title == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTitle, title)
	}
	if strings.ContainsAny(title, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidTitle, title)
	}
	return nil
}

// stem returns the file name without its extension, the fallback title for
// uploads that declare none.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
