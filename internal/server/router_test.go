package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/store"
	"github.com/verte-zerg/typebook/internal/textgen"
)

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, req textgen.Request) (textgen.Response, error) {
	return textgen.Response{Text: "Practice " + req.BookTitle + "."}, nil
}

func newTestServer(t *testing.T, withPractice bool) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "typebook.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	book := model.BookDoc{
		ID:            "moby",
		Title:         "Moby Dick",
		TotalChapters: 1,
		Chapters:      []model.ChapterRef{{ID: model.ChapterKey(1), Title: "Loomings"}},
	}
	chapters := []model.ChapterDoc{{Segments: []model.Segment{{Text: "\tCall me Ishmael."}}}}
	cover := &model.Cover{Href: "cover.png", MediaType: "image/png", Data: []byte("PNGDATA")}
	if err := st.SaveBook(context.Background(), book, chapters, cover); err != nil {
		t.Fatalf("SaveBook: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &Deps{Store: st, Logger: logger}
	if withPractice {
		deps.Practice = textgen.NewService(fakeGenerator{}, st, logger)
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRoutesStatus(t *testing.T) {
	srv := newTestServer(t, false)
	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       any
		wantStatus int
	}{
		{name: "list books", method: http.MethodGet, path: "/api/books", wantStatus: http.StatusOK},
		{name: "get book", method: http.MethodGet, path: "/api/books/moby", wantStatus: http.StatusOK},
		{name: "missing book", method: http.MethodGet, path: "/api/books/nope", wantStatus: http.StatusNotFound},
		{name: "get chapter", method: http.MethodGet, path: "/api/books/moby/chapters/chapter_1", wantStatus: http.StatusOK},
		{name: "missing chapter", method: http.MethodGet, path: "/api/books/moby/chapters/chapter_9", wantStatus: http.StatusNotFound},
		{name: "bad chapter key", method: http.MethodGet, path: "/api/books/moby/chapters/intro", wantStatus: http.StatusBadRequest},
		{name: "progress needs identity", method: http.MethodGet, path: "/api/progress/moby", wantStatus: http.StatusBadRequest},
		{name: "no progress yet", method: http.MethodGet, path: "/api/progress/moby", user: "alice", wantStatus: http.StatusNotFound},
		{name: "invalid progress", method: http.MethodPut, path: "/api/progress/moby", user: "alice", body: ProgressRequest{Chapter: 0}, wantStatus: http.StatusBadRequest},
		{name: "progress for missing book", method: http.MethodPut, path: "/api/progress/nope", user: "alice", body: ProgressRequest{Chapter: 1}, wantStatus: http.StatusNotFound},
		{name: "practice not configured", method: http.MethodPost, path: "/api/practice", user: "alice", body: textgen.Request{}, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.user, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestBookAndCover(t *testing.T) {
	srv := newTestServer(t, false)
	resp := do(t, srv, http.MethodGet, "/api/books", "", nil)
	var books []model.BookDoc
	if err := json.NewDecoder(resp.Body).Decode(&books); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Moby Dick" {
		t.Fatalf("unexpected books %+v", books)
	}

	resp = do(t, srv, http.MethodGet, "/api/books/moby/cover", "", nil)
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || string(data) != "PNGDATA" {
		t.Fatalf("unexpected cover %q %v", data, err)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	srv := newTestServer(t, false)
	do(t, srv, http.MethodPut, "/api/progress/moby", "alice", ProgressRequest{Chapter: 1, CharIndex: 10})
	resp := do(t, srv, http.MethodPut, "/api/progress/moby", "alice", ProgressRequest{Chapter: 1, CharIndex: 4})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/progress/moby", "alice", nil)
	var p model.Progress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.CharIndex != 4 || p.FurthestCharIndex != 10 {
		t.Fatalf("expected current 4 and furthest 10, got %+v", p)
	}

	resp = do(t, srv, http.MethodGet, "/api/progress/moby", "bob", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("progress must be per identity, got %d", resp.StatusCode)
	}
}

func TestPracticeQuota(t *testing.T) {
	srv := newTestServer(t, true)
	req := textgen.Request{ProblemChars: []string{"q"}, BookTitle: "Moby Dick"}
	for i := textgen.DailyQuota - 1; i >= 0; i-- {
		resp := do(t, srv, http.MethodPost, "/api/practice", "alice", req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var out textgen.Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Text != "Practice Moby Dick." || out.Remaining != i {
			t.Fatalf("unexpected response %+v", out)
		}
	}
	resp := do(t, srv, http.MethodPost, "/api/practice", "alice", req)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodPost, "/api/practice", "bob", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quota must be per identity, got %d", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	if statusFor(&model.ValidationError{Char: 'é'}) != http.StatusBadRequest {
		t.Fatalf("validation errors map to 400")
	}
	if statusFor(io.EOF) != http.StatusInternalServerError {
		t.Fatalf("unknown errors map to 500")
	}
}
