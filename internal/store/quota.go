// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verte-zerg/typebook/internal/model"
)

// QuotaUsed returns how many generations the identity used on day.
func (s *Store) QuotaUsed(ctx context.Context, userID, day string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM textgen_usage WHERE user_id = ? AND day = ?`, userID, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// ConsumeQuota takes one generation from the identity's allowance for day and
// returns what is left. An exhausted allowance yields ErrRateLimited.
func (s *Store) ConsumeQuota(ctx context.Context, userID, day string, limit int) (remaining int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	var used int
	err = tx.QueryRowContext(ctx,
		`SELECT count FROM textgen_usage WHERE user_id = ? AND day = ?`, userID, day).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if used >= limit {
		err = fmt.Errorf("%d generations used on %s: %w", used, day, model.ErrRateLimited)
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO textgen_usage (user_id, day, count) VALUES (?, ?, 1)
		 ON CONFLICT(user_id, day) DO UPDATE SET count = count + 1`,
		userID, day); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return limit - used - 1, nil
}

// RefundQuota gives back one generation after a failed remote call.
func (s *Store) RefundQuota(ctx context.Context, userID, day string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE textgen_usage SET count = count - 1 WHERE user_id = ? AND day = ? AND count > 0`,
		userID, day)
	return err
}
