package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/verte-zerg/typebook/internal/model"
)

type memSource struct {
	books    map[string]model.BookDoc
	order    []string
	chapters map[string]model.ChapterDoc
	progress map[string]model.Progress
	last     string
}

func (m *memSource) GetBook(_ context.Context, id string) (model.BookDoc, error) {
	b, ok := m.books[id]
	if !ok {
		return b, fmt.Errorf("book %s: %w", id, model.ErrNotFound)
	}
	return b, nil
}

func (m *memSource) ListBooks(context.Context) ([]model.BookDoc, error) {
	var out []model.BookDoc
	for _, id := range m.order {
		out = append(out, m.books[id])
	}
	return out, nil
}

func (m *memSource) GetChapter(_ context.Context, bookID, key string) (model.ChapterDoc, error) {
	c, ok := m.chapters[bookID+"/"+key]
	if !ok {
		return c, fmt.Errorf("chapter %s: %w", key, model.ErrNotFound)
	}
	return c, nil
}

func (m *memSource) GetProgress(_ context.Context, userID, bookID string) (model.Progress, bool, error) {
	p, ok := m.progress[userID+"/"+bookID]
	return p, ok, nil
}

func (m *memSource) LastBook(context.Context, string) (string, error) {
	if m.last == "" {
		return "", model.ErrNotFound
	}
	return m.last, nil
}

func newSource() *memSource {
	src := &memSource{
		books:    map[string]model.BookDoc{},
		chapters: map[string]model.ChapterDoc{},
		progress: map[string]model.Progress{},
	}
	for _, id := range []string{"alpha", "beta"} {
		book := model.BookDoc{ID: id, Title: strings.ToUpper(id), TotalChapters: 2}
		for ch := 1; ch <= 2; ch++ {
			key := model.ChapterKey(ch)
			book.Chapters = append(book.Chapters, model.ChapterRef{ID: key, Title: fmt.Sprintf("%s %d", id, ch)})
			src.chapters[id+"/"+key] = model.ChapterDoc{Segments: []model.Segment{{Text: fmt.Sprintf("\t%s text %d.", id, ch)}}}
		}
		src.books[id] = book
		src.order = append(src.order, id)
	}
	return src
}

func TestSelectResumesProgress(t *testing.T) {
	src := newSource()
	src.progress["u/beta"] = model.Progress{Chapter: 2, CharIndex: 4}
	src.last = "beta"
	sel, err := Select(context.Background(), src, "u", "", 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Book.ID != "beta" || sel.Chapter != 2 || sel.Start != 4 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if sel.Title != "beta 2" || sel.Text != "\tbeta text 2." {
		t.Fatalf("unexpected chapter %q %q", sel.Title, sel.Text)
	}
	if len(sel.Fallbacks) != 0 {
		t.Fatalf("unexpected fallbacks %v", sel.Fallbacks)
	}
}

func TestSelectFallsBack(t *testing.T) {
	src := newSource()
	sel, err := Select(context.Background(), src, "u", "missing", 9)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Book.ID != "alpha" || sel.Chapter != 1 || sel.Start != 0 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if len(sel.Fallbacks) != 2 {
		t.Fatalf("expected two fallbacks, got %v", sel.Fallbacks)
	}
}

func TestSelectWithoutBooks(t *testing.T) {
	src := &memSource{books: map[string]model.BookDoc{}}
	if _, err := Select(context.Background(), src, "u", "", 0); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNextChapter(t *testing.T) {
	book := newSource().books["alpha"]
	if next, ok := NextChapter(book, 1); !ok || next != 2 {
		t.Fatalf("unexpected next %d %v", next, ok)
	}
	if _, ok := NextChapter(book, 2); ok {
		t.Fatalf("last chapter has no next")
	}
}

func TestSnippet(t *testing.T) {
	text := "\tfirst para.\n\tsecond para is here." + strings.Repeat(" more", 200)
	pos := strings.Index(text, "is here")
	got := Snippet(text, pos, 500)
	if !strings.HasPrefix(got, "\tsecond") {
		t.Fatalf("snippet must start at the paragraph, got %q", got[:20])
	}
	if n := len([]rune(got)); n != 500 {
		t.Fatalf("expected 500 runes, got %d", n)
	}
}
