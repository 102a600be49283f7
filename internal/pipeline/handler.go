package pipeline

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dash-packager/internal/catalog"
	"dash-packager/internal/media"
	"dash-packager/internal/platform/metrics"
	"dash-packager/internal/token"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the packaging and authorization endpoints using go-chi.
type Handler struct {
	svc             *Service
	authority       *token.Authority
	catalog         catalog.Store
	uriSigningParam string
	log             *slog.Logger
	metrics         *metrics.Metrics
}

// NewHandler returns a Handler over the pipeline service, token authority,
// and catalog store. Metrics may be nil to disable metric recording.
func NewHandler(svc *Service, authority *token.Authority, store catalog.Store, uriSigningParam string, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		svc:             svc,
		authority:       authority,
		catalog:         store,
		uriSigningParam: uriSigningParam,
		log:             log,
		metrics:         m,
	}
}

// Upload handles POST /upload. Body: {"sourcePath": "...", "title": "...",
// "date": "...", "info": "..."}. The source file must already be staged by
// the upload collaborator; this endpoint deliberately does not accept
// multipart bodies.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid upload body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.SourcePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "no source file provided"})
		return
	}

	result, err := h.svc.Process(r.Context(), req)
	if err != nil {
		var probeErr *media.ProbeError
		var transcodeErr *media.TranscodeError
		switch {
		case errors.Is(err, ErrInvalidTitle):
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		case errors.As(err, &probeErr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "source file unreadable or not valid media"})
		case errors.As(err, &transcodeErr):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "error processing video"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "error recording video"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// IssueToken handles GET /api/token/{videoName}. Optional query parameters:
// expiresIn and renewalDuration in seconds, hostname as a pattern for the
// path constraint.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	videoName := chi.URLParam(r, "videoName")
	if err := ValidateTitle(videoName); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid video name"})
		return
	}

	opts := token.Options{Hostname: r.URL.Query().Get("hostname")}
	if v := r.URL.Query().Get("expiresIn"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.ExpiresIn = time.Duration(n) * time.Second
		}
	}
	if v := r.URL.Query().Get("renewalDuration"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.RenewalDuration = time.Duration(n) * time.Second
		}
	}

	signed, err := h.authority.Issue(videoName, opts)
	if err != nil {
		h.log.Error("token issuance failed",
			slog.String("video", videoName),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
		return
	}

	if h.metrics != nil {
		h.metrics.IncTokensIssued()
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}

// Catalog handles GET /data, returning the playable asset listing.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.List()
	if err != nil {
		h.log.Error("catalog read failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "catalog unavailable"})
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ClientConfig handles GET /api/config, exposing the values playback
// clients need.
func (h *Handler) ClientConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"uriSigningParam": h.uriSigningParam})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
