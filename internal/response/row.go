package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRow  = errors.New("invalid response row")
	ErrPersistence = errors.New("response persistence failed")
)

type AttemptType string

const (
	AttemptMain     AttemptType = "Main"
	AttemptRemedial AttemptType = "Remedial"
)

func ParseAttemptType(v string) (AttemptType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "main":
		return AttemptMain, true
	case "remedial":
		return AttemptRemedial, true
	default:
		return "", false
	}
}

// Row is one persisted question outcome. Rows are append-only.
type Row struct {
	SubmittedAt time.Time   `json:"submitted_at"`
	AttemptID   string      `json:"attempt_id"`
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	BatchCode   string      `json:"batch_code"`
	Subject     string      `json:"subject"`
	Subtopic    string      `json:"subtopic"`
	QuestionNo  string      `json:"question_no"`
	Given       string      `json:"given_answer"`
	Correct     string      `json:"correct_answer"`
	Awarded     int         `json:"awarded"`
	Marks       int         `json:"marks"`
	AttemptType AttemptType `json:"attempt_type"`
}

func (r Row) IsCorrect() bool {
	return r.Awarded > 0
}

// Validate rejects rows that could not come from grading: awarded is bounded by marks and is
// non-zero only for a non-empty given answer equal to the correct one.
func (r Row) Validate() error {
	switch {
	case strings.TrimSpace(r.StudentID) == "",
		strings.TrimSpace(r.Subtopic) == "",
		strings.TrimSpace(r.QuestionNo) == "":
		return fmt.Errorf("%w: student, subtopic and question are required", ErrInvalidRow)
	case r.AttemptType != AttemptMain && r.AttemptType != AttemptRemedial:
		return fmt.Errorf("%w: unknown attempt type %q", ErrInvalidRow, r.AttemptType)
	case r.Marks < 1 || r.Awarded < 0 || r.Awarded > r.Marks:
		return fmt.Errorf("%w: awarded %d out of range for marks %d", ErrInvalidRow, r.Awarded, r.Marks)
	case r.Awarded > 0 && (r.Given == "" || r.Given != r.Correct):
		return fmt.Errorf("%w: marks awarded on a wrong answer", ErrInvalidRow)
	}
	return nil
}

// Filter narrows Query results. Empty fields match everything.
type Filter struct {
	BatchCode   string
	Subject     string
	Subtopic    string
	StudentID   string
	AttemptType AttemptType
	AttemptID   string
}

func (f Filter) Match(r Row) bool {
	return matches(f.BatchCode, r.BatchCode) &&
		matches(f.Subject, r.Subject) &&
		matches(f.Subtopic, r.Subtopic) &&
		matches(f.StudentID, r.StudentID) &&
		matches(string(f.AttemptType), string(r.AttemptType)) &&
		matches(f.AttemptID, r.AttemptID)
}

func matches(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || want == got
}

// Sink is the append-only response store.
type Sink interface {
	Append(ctx context.Context, row Row) error
	// AppendAttempt writes all rows of one attempt; backends that support
	// transactions write all or nothing.
	AppendAttempt(ctx context.Context, rows []Row) error
	HasMainAttempt(ctx context.Context, studentID, subject, subtopic string) (bool, error)
	Query(ctx context.Context, f Filter) ([]Row, error)
}

// Latch answers true exactly once per (batch, subject, subtopic).
type Latch interface {
	MarkAndCheck(ctx context.Context, batch, subject, subtopic string) (bool, error)
}

func validateAll(rows []Row) error {
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
