// Package server exposes the library, progress and practice text over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/textgen"
)

// Store is the persistence the API reads and writes.
type Store interface {
	ListBooks(ctx context.Context) ([]model.BookDoc, error)
	GetBook(ctx context.Context, id string) (model.BookDoc, error)
	GetChapter(ctx context.Context, bookID, key string) (model.ChapterDoc, error)
	GetCover(ctx context.Context, bookID string) (model.Cover, error)
	GetProgress(ctx context.Context, userID, bookID string) (model.Progress, bool, error)
	SaveProgress(ctx context.Context, userID, bookID string, chapter, charIndex int, now time.Time) (model.Progress, error)
}

// Practice generates practice text under a per-identity quota.
type Practice interface {
	Generate(ctx context.Context, userID string, req textgen.Request) (textgen.Response, error)
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Store Store
	// Practice may be nil when no generator is configured.
	Practice Practice
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewRouter creates the HTTP router.
func NewRouter(deps *Deps) http.Handler {
	h := &handler{store: deps.Store, practice: deps.Practice, logger: deps.Logger, now: deps.Now}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", h.listBooks)
		r.Route("/books/{book}", func(r chi.Router) {
			r.Get("/", h.getBook)
			r.Get("/chapters/{key}", h.getChapter)
			r.Get("/cover", h.getCover)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/progress/{book}", h.getProgress)
			r.Put("/progress/{book}", h.putProgress)
			r.Post("/practice", h.practiceText)
		})
	})
	return r
}
