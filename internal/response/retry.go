package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizportal/internal/logger"
)

// RetryingSink retries failed appends synchronously with linear backoff and
// returns ErrPersistence once attempts are exhausted. Reads pass through.
type RetryingSink struct {
	inner    Sink
	attempts int
	backoff  time.Duration
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRetryingSink(inner Sink, attempts int, backoff time.Duration, log *logger.Logger) *RetryingSink {
	if attempts <= 0 {
		attempts = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetryingSink{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
		log:      log,
		sleep:    sleepCtx,
	}
}

func (s *RetryingSink) Append(ctx context.Context, row Row) error {
	return s.retry(ctx, "append", 1, func() error {
		return s.inner.Append(ctx, row)
	})
}

func (s *RetryingSink) AppendAttempt(ctx context.Context, rows []Row) error {
	return s.retry(ctx, "append_attempt", len(rows), func() error {
		return s.inner.AppendAttempt(ctx, rows)
	})
}

func (s *RetryingSink) HasMainAttempt(ctx context.Context, studentID, subject, subtopic string) (bool, error) {
	return s.inner.HasMainAttempt(ctx, studentID, subject, subtopic)
}

func (s *RetryingSink) Query(ctx context.Context, f Filter) ([]Row, error) {
	return s.inner.Query(ctx, f)
}

func (s *RetryingSink) retry(ctx context.Context, op string, rows int, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		// invalid rows will never succeed
		if errors.Is(err, ErrInvalidRow) {
			return err
		}
		lastErr = err
		s.log.Warn("response write failed",
			"op", op,
			"rows", rows,
			"attempt", attempt,
			"max_attempts", s.attempts,
			"error", err,
		)
		if attempt == s.attempts {
			break
		}
		if err := s.sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
			return fmt.Errorf("%w: %v (gave up: %v)", ErrPersistence, lastErr, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrPersistence, s.attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
