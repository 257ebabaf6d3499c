package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
)

// AttemptSheet is the per-attempt score report mailed to parents and
// teachers.
type AttemptSheet struct {
	StudentID   string
	StudentName string
	BatchCode   string
	Subject     string
	Subtopic    string
	AttemptType string
	Earned      int
	Total       int
	Lines       []AttemptLine
}

type AttemptLine struct {
	QuestionNo string
	Text       string
	Given      string
	Correct    string
	Awarded    int
	Marks      int
}

func newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdf
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PerformancePDF renders the batch chart followed by a tally table.
func PerformancePDF(title string, items []Performance) ([]byte, error) {
	chart, err := PerformanceChartPNG(title, items)
	if err != nil {
		return nil, err
	}

	pdf := newDocument()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.RegisterImageOptionsReader("chart", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(chart))
	pdf.ImageOptions("chart", 15, pdf.GetY(), 180, 0, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.Ln(4)

	widths := []float64{80, 30, 30, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Student", "Correct", "Incorrect", "Total"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, p := range ByStudent(items) {
		pdf.CellFormat(widths[0], 7, tr(label(p)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(p.Correct), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, strconv.Itoa(p.Incorrect), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 7, strconv.Itoa(p.Total()), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	return output(pdf)
}

func RenderAttemptPDF(s AttemptSheet) ([]byte, error) {
	pdf := newDocument()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s Quiz Report", s.AttemptType)), "", 1, "C", false, 0, "")

	name := s.StudentName
	if name == "" {
		name = s.StudentID
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		"Student: " + name + " (" + s.StudentID + ")",
		"Batch: " + s.BatchCode,
		"Subject: " + s.Subject + " / " + s.Subtopic,
		fmt.Sprintf("Score: %d/%d (%s)", s.Earned, s.Total, PercentString(s.Earned, s.Total)),
	} {
		pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	widths := []float64{20, 80, 30, 30, 20}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"No", "Question", "Your answer", "Correct", "Marks"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, l := range s.Lines {
		pdf.CellFormat(widths[0], 7, tr(l.QuestionNo), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(truncate(l.Text, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, tr(truncate(l.Given, 18)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, tr(truncate(l.Correct, 18)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%d/%d", l.Awarded, l.Marks), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	return output(pdf)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
