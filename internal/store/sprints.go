// Package store handles SQLite persistence.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

// InsertSprint stores a sprint and its per-character stats.
func (s *Store) InsertSprint(ctx context.Context, sprint model.SprintRecord, chars []model.CharStats) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	completed := 0
	if sprint.Completed {
		completed = 1
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sprints (id, user_id, book_id, chapter, started_at, ended_at, chars, mistakes, active_ms, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sprint.ID,
		sprint.UserID,
		sprint.BookID,
		sprint.Chapter,
		sprint.StartedAt.UTC().Format(time.RFC3339Nano),
		sprint.EndedAt.UTC().Format(time.RFC3339Nano),
		sprint.Chars,
		sprint.Mistakes,
		sprint.ActiveMs,
		completed,
	); err != nil {
		return err
	}

	if len(chars) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO sprint_char_stats (sprint_id, char, correct, incorrect) VALUES (?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cs := range chars {
			if _, err = stmt.ExecContext(ctx, sprint.ID, cs.Char, cs.Correct, cs.Incorrect); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListSprints returns sprint aggregates filtered by stats config, oldest first.
func (s *Store) ListSprints(ctx context.Context, cfg model.StatsConfig) ([]model.SprintAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, cfg.UserID)
	}
	if cfg.BookID != "" {
		clauses = append(clauses, "book_id = ?")
		args = append(args, cfg.BookID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, chars, mistakes, active_ms
		FROM sprints
		WHERE %s
		ORDER BY ended_at DESC`, strings.Join(clauses, " AND "))
	if cfg.Last > 0 {
		query += " LIMIT ?"
		args = append(args, cfg.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var sprints []model.SprintAggregate
	for rows.Next() {
		var agg model.SprintAggregate
		var endedAt string
		if err := rows.Scan(&agg.SprintID, &endedAt, &agg.Chars, &agg.Mistakes, &agg.ActiveMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sprints = append(sprints, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(sprints)-1; i < j; i, j = i+1, j-1 {
		sprints[i], sprints[j] = sprints[j], sprints[i]
	}
	return sprints, nil
}

// GetMissedChars aggregates character stats over the learner's most recent sprints.
func (s *Store) GetMissedChars(ctx context.Context, userID string, window int) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_sprints AS (
		SELECT id FROM sprints
		WHERE (? = '' OR user_id = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT cs.char, SUM(cs.correct) AS correct, SUM(cs.incorrect) AS incorrect
	FROM sprint_char_stats cs
	JOIN recent_sprints r ON r.id = cs.sprint_id
	GROUP BY cs.char`
	return s.queryCharAggregates(ctx, query, userID, userID, window)
}

// ListCharAggregatesForSprints aggregates per-character stats across sprints.
func (s *Store) ListCharAggregatesForSprints(ctx context.Context, sprintIDs []string) ([]model.CharAggregate, error) {
	if len(sprintIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sprintIDs))
	args := make([]any, len(sprintIDs))
	for i, id := range sprintIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT char, SUM(correct) AS correct, SUM(incorrect) AS incorrect
		FROM sprint_char_stats
		WHERE sprint_id IN (%s)
		GROUP BY char`, strings.Join(placeholders, ","))
	return s.queryCharAggregates(ctx, query, args...)
}

func (s *Store) queryCharAggregates(ctx context.Context, query string, args ...any) ([]model.CharAggregate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Correct, &agg.Incorrect); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
