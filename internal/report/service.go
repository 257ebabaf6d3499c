package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"quizportal/internal/response"
)

var ErrInvalidInput = errors.New("invalid input")

type rowReader interface {
	Query(ctx context.Context, f response.Filter) ([]response.Row, error)
}

type Service struct {
	rows rowReader
}

// Performance is one student's tally for one subtopic across all attempt
// types.
type Performance struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	BatchCode   string `json:"batch"`
	Subject     string `json:"subject"`
	Subtopic    string `json:"subtopic"`
	Correct     int    `json:"correct"`
	Incorrect   int    `json:"incorrect"`
}

func (p Performance) Total() int { return p.Correct + p.Incorrect }

type SummaryRow struct {
	Subtopic    string               `json:"subtopic"`
	AttemptType response.AttemptType `json:"attempt_type"`
	Correct     int                  `json:"correct"`
	Incorrect   int                  `json:"incorrect"`
	Total       int                  `json:"total"`
	Percent     string               `json:"percent"`
}

type StudentSummary struct {
	StudentID   string       `json:"student_id"`
	StudentName string       `json:"student_name"`
	BatchCode   string       `json:"batch"`
	Subject     string       `json:"subject"`
	Rows        []SummaryRow `json:"rows"`
}

type PerformanceQuery struct {
	BatchCode string
	Subject   string
	Subtopic  string
}

func NewService(rows rowReader) *Service {
	return &Service{rows: rows}
}

func (s *Service) BatchPerformance(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
	q.BatchCode = strings.TrimSpace(q.BatchCode)
	q.Subject = strings.TrimSpace(q.Subject)
	if q.BatchCode == "" {
		return nil, fmt.Errorf("%w: batch is required", ErrInvalidInput)
	}
	rows, err := s.rows.Query(ctx, response.Filter{
		BatchCode: q.BatchCode,
		Subject:   q.Subject,
		Subtopic:  strings.TrimSpace(q.Subtopic),
	})
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	return TallyPerformance(rows), nil
}

func (s *Service) StudentSummary(ctx context.Context, batch, subject, studentID string) (*StudentSummary, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, fmt.Errorf("%w: student is required", ErrInvalidInput)
	}
	rows, err := s.rows.Query(ctx, response.Filter{
		BatchCode: strings.TrimSpace(batch),
		Subject:   strings.TrimSpace(subject),
		StudentID: studentID,
	})
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	out := &StudentSummary{
		StudentID: studentID,
		BatchCode: strings.TrimSpace(batch),
		Subject:   strings.TrimSpace(subject),
		Rows:      TallySummary(rows),
	}
	for _, r := range rows {
		if r.StudentName != "" {
			out.StudentName = r.StudentName
		}
		if out.BatchCode == "" {
			out.BatchCode = r.BatchCode
		}
	}
	return out, nil
}

// StudentResponses returns the raw rows behind a summary, in append order.
func (s *Service) StudentResponses(ctx context.Context, studentID, subject, subtopic string) ([]response.Row, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, fmt.Errorf("%w: student is required", ErrInvalidInput)
	}
	rows, err := s.rows.Query(ctx, response.Filter{
		StudentID: studentID,
		Subject:   strings.TrimSpace(subject),
		Subtopic:  strings.TrimSpace(subtopic),
	})
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	return rows, nil
}

// TallyPerformance groups rows by student and subtopic. Output is sorted by
// correct count descending, then student and subtopic.
func TallyPerformance(rows []response.Row) []Performance {
	type key struct{ student, subtopic string }
	idx := make(map[key]int)
	out := make([]Performance, 0)
	for _, r := range rows {
		k := key{r.StudentID, r.Subtopic}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Performance{
				StudentID: r.StudentID,
				BatchCode: r.BatchCode,
				Subject:   r.Subject,
				Subtopic:  r.Subtopic,
			})
		}
		if r.StudentName != "" {
			out[i].StudentName = r.StudentName
		}
		if r.IsCorrect() {
			out[i].Correct++
		} else {
			out[i].Incorrect++
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Correct != out[b].Correct {
			return out[a].Correct > out[b].Correct
		}
		if out[a].StudentID != out[b].StudentID {
			return out[a].StudentID < out[b].StudentID
		}
		return out[a].Subtopic < out[b].Subtopic
	})
	return out
}

// TallySummary groups one student's rows by subtopic and attempt type, Main
// before Remedial.
func TallySummary(rows []response.Row) []SummaryRow {
	type key struct {
		subtopic string
		kind     response.AttemptType
	}
	idx := make(map[key]int)
	out := make([]SummaryRow, 0)
	for _, r := range rows {
		k := key{r.Subtopic, r.AttemptType}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, SummaryRow{Subtopic: r.Subtopic, AttemptType: r.AttemptType})
		}
		if r.IsCorrect() {
			out[i].Correct++
		} else {
			out[i].Incorrect++
		}
		out[i].Total++
	}
	for i := range out {
		out[i].Percent = PercentString(out[i].Correct, out[i].Total)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Subtopic != out[b].Subtopic {
			return out[a].Subtopic < out[b].Subtopic
		}
		return attemptOrder(out[a].AttemptType) < attemptOrder(out[b].AttemptType)
	})
	return out
}

func attemptOrder(t response.AttemptType) int {
	switch t {
	case response.AttemptMain:
		return 0
	case response.AttemptRemedial:
		return 1
	default:
		return 2
	}
}

func PercentString(correct, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(correct)*100/float64(total))
}
