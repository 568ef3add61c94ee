// Package library picks the book and chapter a learner should type next.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/typebook/internal/model"
)

// Source is the storage the library reads from.
type Source interface {
	GetBook(ctx context.Context, id string) (model.BookDoc, error)
	ListBooks(ctx context.Context) ([]model.BookDoc, error)
	GetChapter(ctx context.Context, bookID, key string) (model.ChapterDoc, error)
	GetProgress(ctx context.Context, userID, bookID string) (model.Progress, bool, error)
	LastBook(ctx context.Context, userID string) (string, error)
}

// Selection is a resolved reading position.
type Selection struct {
	Book     model.BookDoc
	Chapter  int
	Title    string
	Doc      model.ChapterDoc
	Text     string
	Start    int
	Progress model.Progress
	// Fallbacks describes each substitution made for a missing document.
	Fallbacks []string
}

// Select resolves bookID and chapter for userID. An empty bookID or zero chapter
// means "continue where the learner left off". Missing documents fall back to the
// default book and to chapter 1.
func Select(ctx context.Context, src Source, userID, bookID string, chapter int) (Selection, error) {
	var sel Selection
	book, err := loadBook(ctx, src, userID, bookID, &sel)
	if err != nil {
		return sel, err
	}
	sel.Book = book

	p, ok, err := src.GetProgress(ctx, userID, book.ID)
	if err != nil {
		return sel, fmt.Errorf("failed to load progress: %w", err)
	}
	sel.Progress = p
	if chapter == 0 {
		chapter = 1
		if ok && p.Chapter > 0 {
			chapter = p.Chapter
		}
	}

	doc, err := src.GetChapter(ctx, book.ID, model.ChapterKey(chapter))
	if errors.Is(err, model.ErrNotFound) && chapter != 1 {
		sel.Fallbacks = append(sel.Fallbacks, fmt.Sprintf("chapter %d not found, using chapter 1", chapter))
		chapter = 1
		doc, err = src.GetChapter(ctx, book.ID, model.ChapterKey(chapter))
	}
	if err != nil {
		return sel, err
	}
	sel.Chapter = chapter
	sel.Doc = doc
	sel.Text = model.ChapterText(doc.Segments)
	sel.Title = ChapterTitle(book, chapter)
	if ok && p.Chapter == chapter && p.CharIndex < len([]rune(sel.Text)) {
		sel.Start = p.CharIndex
	}
	return sel, nil
}

func loadBook(ctx context.Context, src Source, userID, bookID string, sel *Selection) (model.BookDoc, error) {
	if bookID != "" {
		book, err := src.GetBook(ctx, bookID)
		if err == nil {
			return book, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return book, err
		}
		sel.Fallbacks = append(sel.Fallbacks, fmt.Sprintf("book %q not found, using default book", bookID))
	}
	id, err := DefaultBook(ctx, src, userID)
	if err != nil {
		return model.BookDoc{}, err
	}
	return src.GetBook(ctx, id)
}

// DefaultBook is the learner's most recent book, or the first stored book.
func DefaultBook(ctx context.Context, src Source, userID string) (string, error) {
	id, err := src.LastBook(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", err
	}
	books, err := src.ListBooks(ctx)
	if err != nil {
		return "", err
	}
	if len(books) == 0 {
		return "", fmt.Errorf("no books imported: %w", model.ErrNotFound)
	}
	return books[0].ID, nil
}

// ChapterTitle looks up a chapter title in the book document.
func ChapterTitle(book model.BookDoc, chapter int) string {
	key := model.ChapterKey(chapter)
	for _, ref := range book.Chapters {
		if ref.ID == key {
			return ref.Title
		}
	}
	return fmt.Sprintf("Chapter %d", chapter)
}

// NextChapter returns the chapter after chapter, if any.
func NextChapter(book model.BookDoc, chapter int) (int, bool) {
	for i, ref := range book.Chapters {
		id, err := model.ParseChapterKey(ref.ID)
		if err != nil || id != chapter {
			continue
		}
		if i+1 >= len(book.Chapters) {
			return 0, false
		}
		next, err := model.ParseChapterKey(book.Chapters[i+1].ID)
		if err != nil {
			return 0, false
		}
		return next, true
	}
	return 0, false
}

// Snippet returns up to limit runes of text starting at pos, moved back to the
// start of the enclosing paragraph when that still fits.
func Snippet(text string, pos, limit int) string {
	runes := []rune(text)
	if pos < 0 || pos > len(runes) {
		pos = 0
	}
	start := pos
	for start > 0 && runes[start-1] != '\n' && pos-start < limit/2 {
		start--
	}
	end := min(len(runes), start+limit)
	return string(runes[start:end])
}
