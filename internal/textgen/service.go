// Package textgen talks to the remote practice-text generator.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/progress"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

// Generator produces practice text.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Quota tracks generations per identity per day.
type Quota interface {
	ConsumeQuota(ctx context.Context, userID, day string, limit int) (int, error)
	RefundQuota(ctx context.Context, userID, day string) error
}

// Service enforces the daily quota in front of a Generator.
type Service struct {
	gen    Generator
	quota  Quota
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires a generator behind the quota. A nil logger uses slog.Default.
func NewService(gen Generator, quota Quota, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, quota: quota, limit: DailyQuota, now: time.Now, logger: logger}
}

// Generate takes one unit of userID's allowance and asks for practice text. The
// allowance is refunded when the generator fails. The returned text is sanitized so
// it can be typed.
func (s *Service) Generate(ctx context.Context, userID string, req Request) (Response, error) {
	if userID == "" {
		return Response{}, fmt.Errorf("%w: missing identity", model.ErrValidation)
	}
	day := progress.DayKey(s.now())
	remaining, err := s.quota.ConsumeQuota(ctx, userID, day, s.limit)
	if err != nil {
		return Response{}, err
	}
	resp, err := s.gen.Generate(ctx, req.Normalize())
	if err != nil {
		if !errors.Is(err, model.ErrRateLimited) {
			if rerr := s.quota.RefundQuota(ctx, userID, day); rerr != nil {
				s.logger.Warn("quota refund failed", "user", userID, "err", rerr)
			}
		}
		return Response{}, err
	}
	resp.Text = Clean(resp.Text)
	resp.Remaining = remaining
	s.logger.Info("practice text generated", "user", userID, "remaining", remaining, "runes", len([]rune(resp.Text)))
	return resp, nil
}

// Clean sanitizes generated text and drops anything still untypable.
func Clean(text string) string {
	text = sanitize.Paragraph(text, sanitize.Options{NormalizeLetters: true})
	return strings.Map(func(r rune) rune {
		if sanitize.IsTypable(r) {
			return r
		}
		return -1
	}, text)
}
