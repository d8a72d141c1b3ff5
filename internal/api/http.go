// Package api exposes the feedback service and the analysis engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spacesedan/feedbackflow/internal/chatlog"
	"github.com/spacesedan/feedbackflow/internal/db"
	"github.com/spacesedan/feedbackflow/internal/feedback"
	"github.com/spacesedan/feedbackflow/internal/models"
)

const maxUploadBytes = 10 << 20

type FeedbackService interface {
	Submit(ctx context.Context, req feedback.SubmitRequest) (models.FeedbackRecord, error)
	List(ctx context.Context, sortKey, order string) ([]models.FeedbackRecord, error)
	Ingest(ctx context.Context, messages []models.ChatMessage, source models.FeedbackSource) (feedback.IngestResult, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) models.Analysis
	ModelsReady() bool
}

// UploadPublisher hands parsed uploads to the asynchronous pipeline.
type UploadPublisher interface {
	PublishUploads(ctx context.Context, source models.FeedbackSource, messages []models.ChatMessage) (string, error)
}

type HTTPHandler struct {
	feedback  FeedbackService
	analyzer  Analyzer
	publisher UploadPublisher
	metrics   http.Handler
}

// NewHTTPHandler ingests uploads inline when publisher is nil. metrics may be
// nil to leave /metrics unregistered.
func NewHTTPHandler(svc FeedbackService, analyzer Analyzer, publisher UploadPublisher, metrics http.Handler) *HTTPHandler {
	return &HTTPHandler{
		feedback:  svc,
		analyzer:  analyzer,
		publisher: publisher,
		metrics:   metrics,
	}
}

// RegisterHTTPHandlers mounts the API under prefix, which must end in a
// slash (e.g. "/api/").
func (h *HTTPHandler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.HandleFunc("POST "+prefix+"feedback", h.handleSubmit)
	mux.HandleFunc("GET "+prefix+"feedback", h.handleList)
	mux.HandleFunc("POST "+prefix+"feedback/upload", h.handleUpload)
	mux.HandleFunc("POST "+prefix+"analyze", h.handleAnalyze)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

type SubmitResponse struct {
	Success    bool                  `json:"success"`
	InsertedID string                `json:"insertedId"`
	Feedback   models.FeedbackRecord `json:"feedback"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	Format   string `json:"format"`
	Parsed   int    `json:"parsed"`
	Stored   int    `json:"stored"`
	Skipped  int    `json:"skipped"`
	Queued   bool   `json:"queued"`
	UploadID string `json:"uploadId,omitempty"`
}

type AnalyzeRequest struct {
	Text string `json:"text"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"modelReady"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req feedback.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := h.feedback.Submit(r.Context(), req)
	switch {
	case errors.Is(err, feedback.ErrInvalidFeedback):
		writeJSONError(w, http.StatusBadRequest, "Invalid feedback length")
		return
	case errors.Is(err, feedback.ErrInvalidSource), errors.Is(err, feedback.ErrInvalidSpectrum):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("[API] Failed to submit feedback", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{Success: true, InsertedID: rec.ID, Feedback: rec})
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.feedback.List(r.Context(), q.Get("sort"), q.Get("order"))
	if errors.Is(err, db.ErrUnknownSortKey) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("[API] Failed to list feedback", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "Unable to fetch feedback data")
		return
	}
	if records == nil {
		records = []models.FeedbackRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleUpload accepts a multipart "file" field or the raw document as the
// request body.
func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	content, err := readUpload(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := chatlog.Parse(content)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := UploadResponse{
		Success: true,
		Format:  string(chatlog.DetectFormat(content)),
		Parsed:  len(messages),
	}

	if h.publisher != nil {
		uploadID, err := h.publisher.PublishUploads(r.Context(), models.SourceUploaded, messages)
		if err != nil {
			slog.Error("[API] Failed to queue upload", slog.String("error", err.Error()))
			writeJSONError(w, http.StatusServiceUnavailable, "Upload could not be queued")
			return
		}
		resp.Queued = true
		resp.UploadID = uploadID
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	result, err := h.feedback.Ingest(r.Context(), messages, models.SourceUploaded)
	if err != nil {
		slog.Error("[API] Failed to ingest upload", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	resp.Stored = result.Stored
	resp.Skipped = result.Skipped
	writeJSON(w, http.StatusCreated, resp)
}

func readUpload(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", errors.New("file field is required")
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return "", errors.New("failed to read uploaded file")
		}
		return string(raw), nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", errors.New("failed to read request body")
	}
	return string(raw), nil
}

func (h *HTTPHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, h.analyzer.Analyze(r.Context(), req.Text))
}

// handleHealth always reports ok; a missing model only degrades analysis.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", ModelReady: h.analyzer.ModelsReady()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("[API] Failed to encode response", slog.String("error", err.Error()))
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}
