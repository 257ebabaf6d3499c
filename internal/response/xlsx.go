package response

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

const responsesSheet = "Responses"

var responseHeader = []interface{}{
	"Timestamp", "Attempt_ID", "Student_ID", "Student_Name", "Tuition_Code", "Subject", "Subtopic",
	"Question_No", "Given_Answer", "Correct_Answer", "Awarded", "Marks", "Attempt_Type",
}

// XLSXSink appends rows to a workbook on local disk. Writers are serialised
// within the process; the file must not be shared between instances.
type XLSXSink struct {
	mu   sync.Mutex
	path string
}

func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

func (s *XLSXSink) Append(ctx context.Context, row Row) error {
	return s.AppendAttempt(ctx, []Row{row})
}

func (s *XLSXSink) AppendAttempt(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := validateAll(rows); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	existing, err := f.GetRows(responsesSheet)
	if err != nil {
		return fmt.Errorf("read responses sheet: %w", err)
	}
	next := len(existing) + 1
	for i, r := range rows {
		submitted := r.SubmittedAt
		if submitted.IsZero() {
			submitted = time.Now()
		}
		values := []interface{}{
			submitted.UTC().Format(time.RFC3339),
			r.AttemptID,
			r.StudentID,
			r.StudentName,
			r.BatchCode,
			r.Subject,
			r.Subtopic,
			r.QuestionNo,
			r.Given,
			r.Correct,
			r.Awarded,
			r.Marks,
			string(r.AttemptType),
		}
		cell, _ := excelize.CoordinatesToCellName(1, next+i)
		if err := f.SetSheetRow(responsesSheet, cell, &values); err != nil {
			return fmt.Errorf("write response row: %w", err)
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save responses workbook: %w", err)
	}
	return nil
}

func (s *XLSXSink) HasMainAttempt(ctx context.Context, studentID, subject, subtopic string) (bool, error) {
	rows, err := s.Query(ctx, Filter{
		StudentID:   studentID,
		Subject:     subject,
		Subtopic:    subtopic,
		AttemptType: AttemptMain,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *XLSXSink) Query(ctx context.Context, filter Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return []Row{}, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open responses workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	grid, err := f.GetRows(responsesSheet)
	if err != nil {
		return nil, fmt.Errorf("read responses sheet: %w", err)
	}

	out := make([]Row, 0, len(grid))
	for i, rec := range grid {
		if i == 0 {
			continue
		}
		r := rowFromRecord(rec)
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *XLSXSink) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(responsesSheet); idx >= 0 {
			return f, nil
		}
		if _, err := f.NewSheet(responsesSheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create responses sheet: %w", err)
		}
		if err := f.SetSheetRow(responsesSheet, "A1", &responseHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write responses header: %w", err)
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open responses workbook: %w", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), responsesSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename responses sheet: %w", err)
	}
	if err := f.SetSheetRow(responsesSheet, "A1", &responseHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write responses header: %w", err)
	}
	return f, nil
}

func rowFromRecord(rec []string) Row {
	col := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	submitted, _ := time.Parse(time.RFC3339, col(0))
	awarded, _ := strconv.Atoi(col(10))
	marks, _ := strconv.Atoi(col(11))
	return Row{
		SubmittedAt: submitted,
		AttemptID:   col(1),
		StudentID:   col(2),
		StudentName: col(3),
		BatchCode:   col(4),
		Subject:     col(5),
		Subtopic:    col(6),
		QuestionNo:  col(7),
		Given:       col(8),
		Correct:     col(9),
		Awarded:     awarded,
		Marks:       marks,
		AttemptType: AttemptType(col(12)),
	}
}
