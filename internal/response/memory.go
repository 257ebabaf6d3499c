package response

import (
	"context"
	"sync"
)

// MemorySink keeps rows in process memory. It backs RESPONSE_SINK=memory for
// local runs and tests.
type MemorySink struct {
	mu   sync.RWMutex
	rows []Row
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(ctx context.Context, row Row) error {
	return s.AppendAttempt(ctx, []Row{row})
}

func (s *MemorySink) AppendAttempt(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateAll(rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *MemorySink) HasMainAttempt(ctx context.Context, studentID, subject, subtopic string) (bool, error) {
	rows, err := s.Query(ctx, Filter{StudentID: studentID, Subject: subject, Subtopic: subtopic, AttemptType: AttemptMain})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *MemorySink) Query(ctx context.Context, f Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0)
	for _, r := range s.rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
