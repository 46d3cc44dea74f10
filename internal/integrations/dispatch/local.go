package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slack-roaster/internal/domain"
)

const defaultJobTimeout = 2 * time.Minute

// RunFunc processes one job. The handler's worker path is bound here.
type RunFunc func(ctx context.Context, job domain.Job) error

// Local runs jobs on goroutines in the current process. It backs the dev
// server, where there is no Lambda to invoke.
type Local struct {
	mu      sync.RWMutex
	run     RunFunc
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

type LocalOption func(*Local)

func WithTimeout(d time.Duration) LocalOption {
	return func(l *Local) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{timeout: defaultJobTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind sets the function jobs are run with. The handler and the dispatcher
// reference each other, so this happens after both are built.
func (l *Local) Bind(run RunFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.run = run
}

// Dispatch starts the job and returns immediately. The job outlives the
// request context but not the configured timeout.
func (l *Local) Dispatch(ctx context.Context, job domain.Job) error {
	l.mu.RLock()
	run := l.run
	l.mu.RUnlock()
	if run == nil {
		return errors.New("dispatch: local runner is not bound")
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		if err := run(jobCtx, job); err != nil {
			l.logger.Error("local job failed",
				"correlation_id", job.CorrelationID,
				"command", job.Command.Name,
				"err", err,
			)
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has returned.
func (l *Local) Wait() {
	l.wg.Wait()
}
