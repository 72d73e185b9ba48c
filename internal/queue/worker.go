package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensage/tokensage/internal/metrics"
)

// Handler processes one raw job payload.
type Handler func(ctx context.Context, payload []byte) error

// Worker drains one named queue. Every job runs under its own timeout and is
// fault-isolated: a failing or panicking handler is logged and the loop
// continues, so one bad record never kills the process.
type Worker struct {
	queue      Queue
	name       string
	handler    Handler
	jobTimeout time.Duration
	popWait    time.Duration
}

// NewWorker creates a worker for one queue.
func NewWorker(q Queue, name string, jobTimeout time.Duration, handler Handler) *Worker {
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &Worker{
		queue:      q,
		name:       name,
		handler:    handler,
		jobTimeout: jobTimeout,
		popWait:    5 * time.Second,
	}
}

// Run drains the queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Str("queue", w.name).Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("queue", w.name).Msg("Worker stopped")
			return
		default:
		}

		payload, err := w.queue.Pop(ctx, w.name, w.popWait)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("queue", w.name).Msg("Worker stopped")
				return
			}
			log.Error().Err(err).Str("queue", w.name).Msg("Queue pop failed")
			// Back off so a broken connection does not spin the loop.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		w.process(ctx, payload)
	}
}

func (w *Worker) process(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("queue", w.name).Msg("Job handler panicked")
			metrics.JobsProcessed.WithLabelValues(w.name, "panic").Inc()
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if err := w.handler(jobCtx, payload); err != nil {
		log.Error().Err(err).Str("queue", w.name).Msg("Job failed")
		metrics.JobsProcessed.WithLabelValues(w.name, "error").Inc()
		return
	}
	metrics.JobsProcessed.WithLabelValues(w.name, "ok").Inc()
}
