package server

import (
	"context"
	"errors"
	"log/slog"
)

// ErrShuttingDown is reported to commands enqueued after the mutation worker
// has stopped accepting work.
var ErrShuttingDown = errors.New("server shutting down")

// queueDepth bounds how many mutating commands may wait behind the one in
// flight. Enqueue blocks (stalling that connection's read loop) once full.
const queueDepth = 64

type job struct {
	action string
	run    func(ctx context.Context)
}

// mutationQueue serializes every document-mutating command through a single
// worker goroutine. With one worker per server, at most one mutating command
// is in flight at a time, so overlapping requests can never interleave their
// edits.
type mutationQueue struct {
	jobs   chan job
	done   chan struct{}
	logger *slog.Logger
}

func newMutationQueue(logger *slog.Logger) *mutationQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &mutationQueue{
		jobs:   make(chan job, queueDepth),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run drains the queue until ctx is cancelled, then finishes the jobs that
// were already accepted before exiting. Commands running during shutdown see
// the cancelled context and abort their pacing promptly.
func (q *mutationQueue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case j := <-q.jobs:
					q.logger.Debug("queue: draining job", "action", j.action)
					j.run(ctx)
				default:
					return
				}
			}
		case j := <-q.jobs:
			j.run(ctx)
		}
	}
}

// Enqueue adds a mutating command in arrival order. It returns once the job
// is accepted, not once it has run; ErrShuttingDown after the worker stopped.
func (q *mutationQueue) Enqueue(action string, run func(ctx context.Context)) error {
	select {
	case <-q.done:
		return ErrShuttingDown
	default:
	}
	select {
	case q.jobs <- job{action: action, run: run}:
		return nil
	case <-q.done:
		return ErrShuttingDown
	}
}
