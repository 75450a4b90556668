// Package trigger turns file changes, timers and manual requests into
// coalesced cycle runs.
package trigger

import (
	"context"
	"log/slog"
	"time"
)

// Request asks for one sync cycle.
type Request struct {
	// Source names the trigger: "watcher", "interval", "manual".
	Source string
	// Path is the changed vault path for watcher requests.
	Path string
}

// RunFunc executes one cycle.
type RunFunc func(ctx context.Context, req Request)

// Coalescer collapses bursts of requests into a single run after a quiet
// period. It holds at most one pending request and executes runs on one
// goroutine, so runs never overlap.
type Coalescer struct {
	quiet   time.Duration
	pending chan Request
	run     RunFunc
	logger  *slog.Logger
}

// NewCoalescer creates a Coalescer that waits quiet after the latest request
// before calling run.
func NewCoalescer(quiet time.Duration, run RunFunc, logger *slog.Logger) *Coalescer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer{
		quiet:   quiet,
		pending: make(chan Request, 1),
		run:     run,
		logger:  logger,
	}
}

// Request queues a cycle. It never blocks; if a request is already pending
// the new one is merged into it.
func (c *Coalescer) Request(req Request) {
	select {
	case c.pending <- req:
	default:
		c.logger.Debug("trigger: request coalesced", slog.String("source", req.Source), slog.String("path", req.Path))
	}
}

// Run processes requests until ctx is cancelled.
func (c *Coalescer) Run(ctx context.Context) error {
	timer := time.NewTimer(c.quiet)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		var req Request
		select {
		case <-ctx.Done():
			return nil
		case req = <-c.pending:
		}

		timer.Reset(c.quiet)
	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case next := <-c.pending:
				req = next
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(c.quiet)
			case <-timer.C:
				break wait
			}
		}

		c.logger.Debug("trigger: running cycle", slog.String("source", req.Source), slog.String("path", req.Path))
		c.run(ctx, req)
	}
}
