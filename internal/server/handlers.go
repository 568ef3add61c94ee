// Package server exposes the library, progress and practice text over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/textgen"
)

type handler struct {
	store    Store
	practice Practice
	logger   *slog.Logger
	now      func() time.Time
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProgressRequest is the body of a progress update.
type ProgressRequest struct {
	Chapter   int `json:"chapter"`
	CharIndex int `json:"charIndex"`
}

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.store.ListBooks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if books == nil {
		books = []model.BookDoc{}
	}
	writeJSON(w, r, http.StatusOK, books)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.store.GetBook(r.Context(), chi.URLParam(r, "book"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, book)
}

func (h *handler) getChapter(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := model.ParseChapterKey(key); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", model.ErrValidation, err))
		return
	}
	doc, err := h.store.GetChapter(r.Context(), chi.URLParam(r, "book"), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, doc)
}

func (h *handler) getCover(w http.ResponseWriter, r *http.Request) {
	cover, err := h.store.GetCover(r.Context(), chi.URLParam(r, "book"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	mediaType := cover.MediaType
	if mediaType == "" {
		mediaType = http.DetectContentType(cover.Data)
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(cover.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(cover.Data); err != nil {
		loggerFrom(r.Context()).WarnContext(r.Context(), "failed to write cover", "error", err)
	}
}

func (h *handler) getProgress(w http.ResponseWriter, r *http.Request) {
	book := chi.URLParam(r, "book")
	p, ok, err := h.store.GetProgress(r.Context(), userFrom(r.Context()), book)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, fmt.Errorf("progress for book %q: %w", book, model.ErrNotFound))
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (h *handler) putProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	book := chi.URLParam(r, "book")
	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body: %v", model.ErrValidation, err))
		return
	}
	if req.Chapter < 1 || req.CharIndex < 0 {
		writeError(w, r, fmt.Errorf("%w: chapter must be positive and charIndex non-negative", model.ErrValidation))
		return
	}
	if _, err := h.store.GetBook(ctx, book); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.store.SaveProgress(ctx, userFrom(ctx), book, req.Chapter, req.CharIndex, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (h *handler) practiceText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.practice == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, ErrorResponse{Error: "practice text generation is not configured"})
		return
	}
	var req textgen.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body: %v", model.ErrValidation, err))
		return
	}
	resp, err := h.practice.Generate(ctx, userFrom(ctx), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context()).ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		loggerFrom(r.Context()).ErrorContext(r.Context(), "request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, r, status, ErrorResponse{Error: msg})
}
