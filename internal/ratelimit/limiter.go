// Package ratelimit caps how many generations a subject may consume per UTC
// calendar day. The check and the increment happen in one conditional write
// against the backing store; the limiter never reads the counter first.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultQuota is the number of admitted calls per subject per day.
const DefaultQuota = 2

// DayFormat is the layout of the day component of the counter key.
const DayFormat = "2006-01-02"

// ErrQuotaExceeded must be returned (possibly wrapped) by a Counter when the
// store rejected the increment because the condition evaluated false.
var ErrQuotaExceeded = errors.New("ratelimit: quota exceeded")

// Decision is the outcome of TryConsume.
type Decision int

const (
	// Unavailable is the zero value so an uninitialised decision fails closed.
	Unavailable Decision = iota
	Admitted
	Denied
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case Denied:
		return "denied"
	default:
		return "unavailable"
	}
}

// Allowed reports whether the caller may proceed. Only Admitted allows.
func (d Decision) Allowed() bool {
	return d == Admitted
}

// Counter performs the atomic conditional increment of the (subject, day)
// record: create with 1 when absent, add 1 when below quota, otherwise fail
// with ErrQuotaExceeded and leave the record untouched. It returns the new count.
type Counter interface {
	IncrementIfBelow(ctx context.Context, subjectID, day string, quota int) (int, error)
}

// Limiter is safe for concurrent use; it holds no mutable state.
type Limiter struct {
	counter Counter
	quota   int
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Limiter)

// WithClock overrides the wall clock used to derive the day key.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Limiter. A non-positive quota falls back to DefaultQuota.
func New(counter Counter, quota int, opts ...Option) (*Limiter, error) {
	if counter == nil {
		return nil, errors.New("ratelimit: counter must not be nil")
	}
	if quota <= 0 {
		quota = DefaultQuota
	}
	l := &Limiter{
		counter: counter,
		quota:   quota,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Quota returns the configured per-day limit.
func (l *Limiter) Quota() int {
	return l.quota
}

// TryConsume attempts to take one unit for subjectID on the current UTC day.
// A non-nil error is only returned together with Unavailable.
func (l *Limiter) TryConsume(ctx context.Context, subjectID string) (Decision, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Unavailable, errors.New("ratelimit: subject id is required")
	}
	day := DayKey(l.now())

	count, err := l.counter.IncrementIfBelow(ctx, subjectID, day, l.quota)
	switch {
	case err == nil:
		l.logger.Info("rate limit admitted", "user_id", subjectID, "day", day, "count", count, "quota", l.quota)
		return Admitted, nil
	case errors.Is(err, ErrQuotaExceeded):
		// Not retried: the quota for this key is genuinely exhausted.
		l.logger.Info("rate limit denied", "user_id", subjectID, "day", day, "quota", l.quota)
		return Denied, nil
	default:
		l.logger.Warn("rate limit store unavailable", "user_id", subjectID, "day", day, "err", err)
		return Unavailable, fmt.Errorf("ratelimit: TryConsume: %w", err)
	}
}

// DayKey formats t as the UTC calendar day used in counter keys.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
