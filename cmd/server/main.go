package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dash-packager/internal/catalog"
	"dash-packager/internal/media"
	"dash-packager/internal/pipeline"
	"dash-packager/internal/platform/config"
	"dash-packager/internal/platform/logger"
	"dash-packager/internal/platform/metrics"
	"dash-packager/internal/token"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	authority, err := token.NewAuthority(token.Config{
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		KeyID:         cfg.JWTPrimaryKid,
		Secret:        cfg.JWTPrimarySecret,
		Algorithm:     cfg.JWTAlgorithm,
		Lifetime:      cfg.TokenLifetime,
		RenewalWindow: cfg.RenewalWindow,
	})
	if err != nil {
		log.Error("token authority", "error", err)
		os.Exit(1)
	}

	store := catalog.NewFileStore(cfg.CatalogPath)
	prober := media.NewProber(cfg.FFprobePath)
	transcoder := media.NewTranscoder(cfg.FFmpegPath, cfg.CDNURL, log)
	met := metrics.New()

	svc := pipeline.NewService(prober, transcoder, store, met, cfg.VideoDir, cfg.TempUploadDir, log)
	if _, err := svc.SweepTempUploads(); err != nil {
		log.Warn("temp upload sweep", "error", err)
	}

	h := pipeline.NewHandler(svc, authority, store, cfg.URISigningParam, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Handle("/metrics", met.Handler())
	r.Post("/upload", h.Upload)
	r.Get("/data", h.Catalog)
	r.Get("/api/config", h.ClientConfig)
	r.Get("/api/token/{videoName}", h.IssueToken)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"video_dir", cfg.VideoDir,
		"cdn_url", cfg.CDNURL,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
