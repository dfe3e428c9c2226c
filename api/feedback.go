package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/feedback/pkg/models"
	"github.com/garnizeh/feedback/pkg/repository"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// unknownMeta stands in for request metadata the server could not determine.
const unknownMeta = "unknown"

type FeedbackHandler struct {
	repo    repository.FeedbackRepo
	metrics *Metrics
}

// NewFeedbackHandler creates a FeedbackHandler. metrics may be nil.
func NewFeedbackHandler(repo repository.FeedbackRepo, metrics *Metrics) *FeedbackHandler {
	return &FeedbackHandler{repo: repo, metrics: metrics}
}

// --- GET /api/feedback ---

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.GetFeedback(r.Context())
	if err != nil {
		logger.Error("failed to list feedback", slog.Any("err", err))
		writeMessage(w, "Failed to retrieve feedback", http.StatusInternalServerError)
		return
	}

	if items == nil {
		items = []models.Feedback{}
	}
	writeJSON(w, items, http.StatusOK)
}

// --- GET /api/feedback/{id} ---

func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := feedbackID(r)
	if !ok {
		writeMessage(w, "Invalid feedback ID", http.StatusBadRequest)
		return
	}

	f, err := h.repo.GetFeedbackByID(r.Context(), id)
	if err != nil {
		logger.Error("failed to get feedback", slog.Int64("id", id), slog.Any("err", err))
		writeMessage(w, "Failed to retrieve feedback", http.StatusInternalServerError)
		return
	}
	if f == nil {
		writeMessage(w, "Feedback not found", http.StatusNotFound)
		return
	}

	writeJSON(w, f, http.StatusOK)
}

// --- POST /api/feedback ---

func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	in, err := models.DecodeFeedbackInput(body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	ip := clientIP(r)
	ua := r.UserAgent()
	if ua == "" {
		ua = unknownMeta
	}

	f, err := h.repo.CreateFeedback(r.Context(), in, &ip, &ua)
	if err != nil {
		logger.Error("failed to create feedback", slog.Any("err", err))
		writeMessage(w, "Failed to create feedback", http.StatusInternalServerError)
		return
	}

	h.metrics.feedbackCreated(f.Rating)
	writeJSON(w, f, http.StatusCreated)
}

// --- PUT /api/feedback/{id} ---

func (h *FeedbackHandler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := feedbackID(r)
	if !ok {
		writeMessage(w, "Invalid feedback ID", http.StatusBadRequest)
		return
	}

	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	patch, err := models.DecodeFeedbackPatch(body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	f, err := h.repo.UpdateFeedback(r.Context(), id, patch)
	if err != nil {
		logger.Error("failed to update feedback", slog.Int64("id", id), slog.Any("err", err))
		writeMessage(w, "Failed to update feedback", http.StatusInternalServerError)
		return
	}
	if f == nil {
		writeMessage(w, "Feedback not found", http.StatusNotFound)
		return
	}

	writeJSON(w, f, http.StatusOK)
}

// --- DELETE /api/feedback/{id} ---

func (h *FeedbackHandler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := feedbackID(r)
	if !ok {
		writeMessage(w, "Invalid feedback ID", http.StatusBadRequest)
		return
	}

	deleted, err := h.repo.DeleteFeedback(r.Context(), id)
	if err != nil {
		logger.Error("failed to delete feedback", slog.Int64("id", id), slog.Any("err", err))
		writeMessage(w, "Failed to delete feedback", http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeMessage(w, "Feedback not found", http.StatusNotFound)
		return
	}

	writeMessage(w, "Feedback deleted successfully", http.StatusOK)
}

// --- Helpers ---

// feedbackID accepts only unsigned base-10 digits; ParseInt alone would let
// "+1" and "-1" through.
func feedbackID(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// readJSONBody reads a bounded request body. A non-empty body must be sent as
// application/json. On failure the response has already been written.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, "Request body too large", http.StatusBadRequest)
			return nil, false
		}
		writeMessage(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeMessage(w, "Content-Type must be application/json", http.StatusBadRequest)
			return nil, false
		}
	}
	return body, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, validationResponse{Message: "Invalid feedback data", Errors: verr.Errors}, http.StatusBadRequest)
		return
	}
	writeMessage(w, "Invalid feedback data", http.StatusBadRequest)
}

// clientIP returns the host part of RemoteAddr. Proxy headers only count
// when the router was built with proxy trust, which installs RealIP.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return unknownMeta
	}
	return addr
}
