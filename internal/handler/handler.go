// Package handler exposes batch grading over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rahibchy/exam-grading-system/internal/batch"
	"github.com/rahibchy/exam-grading-system/internal/model"
	"github.com/rahibchy/exam-grading-system/internal/report"
	"github.com/rahibchy/exam-grading-system/internal/store"
)

// DefaultMaxUpload bounds the multipart body of a batch upload.
const DefaultMaxUpload = 256 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	runner    *batch.Runner
	maxUpload int64
}

// New creates a new Handler.
func New(s *store.Store, r *batch.Runner, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{store: s, runner: r, maxUpload: maxUpload}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/questions", h.handleQuestions)
	r.Get("/batches", h.handleListBatches)
	r.Post("/batches", h.handleCreateBatch)
	r.Get("/batches/{batchID}", h.handleGetBatch)
	r.Get("/batches/{batchID}/marksheet.csv", h.handleMarksheet)
	r.Get("/batches/{batchID}/review", h.handleReview)
	r.Get("/batches/{batchID}/overrides", h.handleListOverrides)
	r.With(h.requireUser).Post("/batches/{batchID}/scripts/{position}/scores/{questionID}", h.handleOverrideScore)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Pipeline.Questions())
}

func (h *Handler) handleListBatches(w http.ResponseWriter, _ *http.Request) {
	batches, err := h.store.ListBatches()
	if err != nil {
		h.serverError(w, "list batches", err)
		return
	}
	if batches == nil {
		batches = []store.BatchInfo{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleCreateBatch grades the PDFs uploaded in the multipart field "scripts".
func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["scripts"]
	if len(files) == 0 {
		http.Error(w, `no files in form field "scripts"`, http.StatusBadRequest)
		return
	}

	scripts := make([]batch.Script, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("open %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		scripts = append(scripts, batch.Script{Name: fh.Filename, Data: data})
	}

	slog.Info("grading uploaded batch", "scripts", len(scripts))
	b, err := h.runner.Run(r.Context(), scripts)
	if err != nil {
		slog.Warn("batch aborted", "completed", len(b.Results), "error", err)
		http.Error(w, "batch aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	questions := h.runner.Pipeline.Questions()
	id, err := h.store.SaveBatch(questions, b.Results)
	if err != nil {
		h.serverError(w, "save batch", err)
		return
	}
	slog.Info("batch stored", "batch", id, "summary", report.SummaryLine(r.Context(), model.Summarize(b.Results)))
	w.Header().Set("Location", "/batches/"+id)
	writeJSON(w, http.StatusCreated, report.Export(r.Context(), id, questions, b.Results))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBatch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Export(r.Context(), b.ID, b.Questions, b.Results))
}

func (h *Handler) handleMarksheet(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBatch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="marksheet-%s.csv"`, b.ID))
	if err := report.WriteCSV(w, b.Questions, b.Results); err != nil {
		slog.Error("write marksheet", "batch", b.ID, "error", err)
	}
}

// handleReview returns the manual-review list as JSON, or as CSV with ?format=csv.
func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	results, err := h.store.ReviewResults(batchID)
	if err != nil {
		h.storeError(w, "review results", err)
		return
	}
	entries := report.Review(r.Context(), results)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="review-%s.csv"`, batchID))
		if err := report.WriteReviewCSV(w, entries); err != nil {
			slog.Error("write review", "batch", batchID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.store.ListOverrides(chi.URLParam(r, "batchID"))
	if err != nil {
		h.storeError(w, "list overrides", err)
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

type overrideRequest struct {
	Score *float64 `json:"score"`
}

func (h *Handler) handleOverrideScore(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || position < 0 {
		http.Error(w, "invalid script position", http.StatusBadRequest)
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		http.Error(w, `body must be {"score": <number>}`, http.StatusBadRequest)
		return
	}

	user := userFromContext(r.Context())
	res, err := h.store.OverrideScore(chi.URLParam(r, "batchID"), position, chi.URLParam(r, "questionID"), *req.Score, user.Username)
	if err != nil {
		h.storeError(w, "override score", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) loadBatch(w http.ResponseWriter, r *http.Request) (*store.Batch, bool) {
	b, err := h.store.GetBatch(chi.URLParam(r, "batchID"))
	if err != nil {
		h.storeError(w, "get batch", err)
		return nil, false
	}
	return b, true
}

func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownScript), errors.Is(err, store.ErrUnknownQuestion):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidScore):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.serverError(w, op, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
