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
	"github.com/verte-zerg/typebook/internal/progress"
)

// GetProgress loads a learner's progress in a book. The bool is false when nothing
// has been saved yet.
func (s *Store) GetProgress(ctx context.Context, userID, bookID string) (model.Progress, bool, error) {
	p, err := loadProgress(ctx, s.db, userID, bookID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Progress{}, false, nil
	}
	if err != nil {
		return model.Progress{}, false, err
	}
	return p, true, nil
}

// LastBook returns the book the learner touched most recently.
func (s *Store) LastBook(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT p.book_id FROM progress p JOIN books b ON b.id = p.book_id
		 WHERE p.user_id = ? ORDER BY p.updated_at DESC LIMIT 1`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("last book of %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SaveProgress records the current position; the furthest position never regresses.
func (s *Store) SaveProgress(ctx context.Context, userID, bookID string, chapter, charIndex int, now time.Time) (model.Progress, error) {
	return s.updateProgress(ctx, userID, bookID, func(p model.Progress) model.Progress {
		return progress.Save(p, chapter, charIndex, now)
	})
}

// MergeProgress folds a full progress document into the stored one.
func (s *Store) MergeProgress(ctx context.Context, userID, bookID string, incoming model.Progress) (model.Progress, error) {
	return s.updateProgress(ctx, userID, bookID, func(p model.Progress) model.Progress {
		return progress.Merge(p, incoming)
	})
}

// CompleteChapter marks a chapter finished.
func (s *Store) CompleteChapter(ctx context.Context, userID, bookID string, chapter int, now time.Time) (model.Progress, error) {
	return s.updateProgress(ctx, userID, bookID, func(p model.Progress) model.Progress {
		return progress.Complete(p, chapter, now)
	})
}

func (s *Store) updateProgress(ctx context.Context, userID, bookID string, apply func(model.Progress) model.Progress) (out model.Progress, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	current, err := loadProgress(ctx, tx, userID, bookID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return out, err
	}
	out = apply(current)
	raw, err := json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("failed to encode progress: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO progress (user_id, book_id, doc, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, book_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		userID, bookID, string(raw), out.LastUpdated.UTC().Format(time.RFC3339Nano)); err != nil {
		return out, err
	}
	err = tx.Commit()
	return out, err
}

func loadProgress(ctx context.Context, q querier, userID, bookID string) (model.Progress, error) {
	var p model.Progress
	err := getDoc(ctx, q, &p, fmt.Sprintf("progress of %s in %s", userID, bookID),
		`SELECT doc FROM progress WHERE user_id = ? AND book_id = ?`, userID, bookID)
	return p, err
}

// GetActivity returns today's and this week's counters as of now.
func (s *Store) GetActivity(ctx context.Context, userID string, now time.Time) (model.ActivityTotals, error) {
	totals, err := loadActivity(ctx, s.db, userID)
	if err != nil {
		return totals, err
	}
	return progress.Rollover(totals, now), nil
}

// AddActivity adds delta to the learner's day and week counters.
func (s *Store) AddActivity(ctx context.Context, userID string, delta model.Activity, now time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	totals, err := loadActivity(ctx, tx, userID)
	if err != nil {
		return err
	}
	totals = progress.AddActivity(totals, delta, now)
	raw, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO activity (user_id, doc) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc`,
		userID, string(raw)); err != nil {
		return err
	}
	return tx.Commit()
}

func loadActivity(ctx context.Context, q querier, userID string) (model.ActivityTotals, error) {
	var totals model.ActivityTotals
	err := getDoc(ctx, q, &totals, "activity of "+userID, `SELECT doc FROM activity WHERE user_id = ?`, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ActivityTotals{}, nil
	}
	return totals, err
}

// Learner binds the store to one learner and book. It receives the writes of a
// typing session.
type Learner struct {
	store  *Store
	userID string
	bookID string
	now    func() time.Time
}

// ForLearner returns a session recorder for userID reading bookID.
func (s *Store) ForLearner(userID, bookID string) *Learner {
	return &Learner{store: s, userID: userID, bookID: bookID, now: time.Now}
}

// SaveCheckpoint stores the current position.
func (l *Learner) SaveCheckpoint(ctx context.Context, chapter, charIndex int) error {
	if _, err := l.store.SaveProgress(ctx, l.userID, l.bookID, chapter, charIndex, l.now()); err != nil {
		return fmt.Errorf("%w: checkpoint: %v", model.ErrPersistence, err)
	}
	return nil
}

// CompleteChapter marks a chapter finished.
func (l *Learner) CompleteChapter(ctx context.Context, chapter int) error {
	if _, err := l.store.CompleteChapter(ctx, l.userID, l.bookID, chapter, l.now()); err != nil {
		return fmt.Errorf("%w: complete chapter: %v", model.ErrPersistence, err)
	}
	return nil
}

// RecordActivity adds active typing time and counts.
func (l *Learner) RecordActivity(ctx context.Context, delta model.Activity) error {
	if err := l.store.AddActivity(ctx, l.userID, delta, l.now()); err != nil {
		return fmt.Errorf("%w: activity: %v", model.ErrPersistence, err)
	}
	return nil
}

// SaveSprint stores a sprint with its per-character stats.
func (l *Learner) SaveSprint(ctx context.Context, sprint model.SprintRecord, chars []model.CharStats) error {
	if err := l.store.InsertSprint(ctx, sprint, chars); err != nil {
		return fmt.Errorf("%w: sprint: %v", model.ErrPersistence, err)
	}
	return nil
}
