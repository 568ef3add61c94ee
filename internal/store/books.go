// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

// SaveBook replaces a book document, its chapter documents and cover in one
// transaction. chapters[i] is stored under book.Chapters[i].ID.
func (s *Store) SaveBook(ctx context.Context, book model.BookDoc, chapters []model.ChapterDoc, cover *model.Cover) (err error) {
	if len(chapters) != len(book.Chapters) {
		return fmt.Errorf("book %q lists %d chapters but %d were given", book.ID, len(book.Chapters), len(chapters))
	}
	doc, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode book: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		book.ID, string(doc), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM chapters WHERE book_id = ?`, `DELETE FROM covers WHERE book_id = ?`} {
		if _, err = tx.ExecContext(ctx, stmt, book.ID); err != nil {
			return err
		}
	}
	for i, ref := range book.Chapters {
		var raw []byte
		raw, err = json.Marshal(chapters[i])
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", ref.ID, err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chapters (book_id, key, doc) VALUES (?, ?, ?)`,
			book.ID, ref.ID, string(raw)); err != nil {
			return err
		}
	}
	if cover != nil && len(cover.Data) > 0 {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO covers (book_id, href, media_type, data) VALUES (?, ?, ?, ?)`,
			book.ID, cover.Href, cover.MediaType, cover.Data); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// BookExists reports whether a book document is stored under id.
func (s *Store) BookExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetBook loads a book document.
func (s *Store) GetBook(ctx context.Context, id string) (model.BookDoc, error) {
	var book model.BookDoc
	err := getDoc(ctx, s.db, &book, "book "+id, `SELECT doc FROM books WHERE id = ?`, id)
	return book, err
}

// ListBooks returns every stored book ordered by id.
func (s *Store) ListBooks(ctx context.Context) ([]model.BookDoc, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM books ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var books []model.BookDoc
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var book model.BookDoc
		if err := json.Unmarshal([]byte(raw), &book); err != nil {
			return nil, fmt.Errorf("failed to decode book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// DeleteBook removes a book with its chapters and cover.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	for _, stmt := range []string{
		`DELETE FROM chapters WHERE book_id = ?`,
		`DELETE FROM covers WHERE book_id = ?`,
		`DELETE FROM books WHERE id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

// GetChapter loads a chapter document by its chapter_<id> key.
func (s *Store) GetChapter(ctx context.Context, bookID, key string) (model.ChapterDoc, error) {
	var doc model.ChapterDoc
	err := getDoc(ctx, s.db, &doc, fmt.Sprintf("chapter %s of %s", key, bookID),
		`SELECT doc FROM chapters WHERE book_id = ? AND key = ?`, bookID, key)
	return doc, err
}

// GetCover loads a book cover.
func (s *Store) GetCover(ctx context.Context, bookID string) (model.Cover, error) {
	var cover model.Cover
	err := s.db.QueryRowContext(ctx,
		`SELECT href, media_type, data FROM covers WHERE book_id = ?`, bookID).
		Scan(&cover.Href, &cover.MediaType, &cover.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return cover, fmt.Errorf("cover of %s: %w", bookID, model.ErrNotFound)
	}
	if err != nil {
		return cover, fmt.Errorf("failed to load cover: %w", err)
	}
	return cover, nil
}
