// Package engine implements the typing session state machine.
package engine

import (
	"context"
	"log/slog"

	"github.com/verte-zerg/typebook/internal/model"
)

const writerQueue = 256

// Recorder persists session side effects. Every call is best-effort.
type Recorder interface {
	SaveCheckpoint(ctx context.Context, chapter, charIndex int) error
	CompleteChapter(ctx context.Context, chapter int) error
	RecordActivity(ctx context.Context, delta model.Activity) error
	SaveSprint(ctx context.Context, sprint model.SprintRecord, chars []model.CharStats) error
}

type job struct {
	op  string
	run func(ctx context.Context) error
}

// writer runs persistence jobs in submission order on one goroutine.
type writer struct {
	jobs   chan job
	done   chan struct{}
	logger *slog.Logger
}

func newWriter(logger *slog.Logger) *writer {
	w := &writer{
		jobs:   make(chan job, writerQueue),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.loop()
	return w
}

func (w *writer) loop() {
	defer close(w.done)
	ctx := context.Background()
	for j := range w.jobs {
		if err := j.run(ctx); err != nil {
			w.logger.Warn("persistence failed", "op", j.op, "err", err)
		}
	}
}

// submit never blocks gameplay; a full queue drops the job.
func (w *writer) submit(op string, run func(ctx context.Context) error) {
	select {
	case w.jobs <- job{op: op, run: run}:
	default:
		w.logger.Warn("persistence queue full, dropping write", "op", op)
	}
}

func (w *writer) close() {
	close(w.jobs)
	<-w.done
}
