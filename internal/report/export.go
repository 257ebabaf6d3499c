package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var performanceHeader = []string{"Student_ID", "Student_Name", "Batch", "Subject", "Subtopic", "Correct", "Incorrect", "Total", "Percent"}

var summaryHeader = []string{"Subtopic", "Attempt_Type", "Correct", "Incorrect", "Total", "Percent"}

func performanceRecords(items []Performance) [][]string {
	out := make([][]string, 0, len(items))
	for _, p := range items {
		out = append(out, []string{
			p.StudentID,
			p.StudentName,
			p.BatchCode,
			p.Subject,
			p.Subtopic,
			strconv.Itoa(p.Correct),
			strconv.Itoa(p.Incorrect),
			strconv.Itoa(p.Total()),
			PercentString(p.Correct, p.Total()),
		})
	}
	return out
}

func summaryRecords(items []SummaryRow) [][]string {
	out := make([][]string, 0, len(items))
	for _, s := range items {
		out = append(out, []string{
			s.Subtopic,
			string(s.AttemptType),
			strconv.Itoa(s.Correct),
			strconv.Itoa(s.Incorrect),
			strconv.Itoa(s.Total),
			s.Percent,
		})
	}
	return out
}

func WritePerformanceCSV(w io.Writer, items []Performance) error {
	return writeCSV(w, performanceHeader, performanceRecords(items))
}

func WriteSummaryCSV(w io.Writer, s *StudentSummary) error {
	return writeCSV(w, summaryHeader, summaryRecords(s.Rows))
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func PerformanceXLSX(items []Performance) ([]byte, error) {
	return buildWorkbook("Performance", performanceHeader, performanceRecords(items), 5, 6, 7)
}

func SummaryXLSX(s *StudentSummary) ([]byte, error) {
	return buildWorkbook("Summary", summaryHeader, summaryRecords(s.Rows), 2, 3, 4)
}

// buildWorkbook writes the listed count columns as numbers.
func buildWorkbook(sheet string, header []string, records [][]string, countCols ...int) ([]byte, error) {
	numeric := make(map[int]bool, len(countCols))
	for _, c := range countCols {
		numeric[c] = true
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, rec := range records {
		for c, v := range rec {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if numeric[c] {
				if n, err := strconv.Atoi(v); err == nil {
					_ = f.SetCellValue(sheet, cell, n)
					continue
				}
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetColWidth(sheet, "A", last, 16)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
