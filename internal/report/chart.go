package report

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"

	"github.com/fogleman/gg"
)

var (
	colorCorrect   = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	colorIncorrect = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
	colorAxis      = color.RGBA{R: 0x42, G: 0x42, B: 0x42, A: 0xff}
)

// ByStudent merges per-subtopic tallies into one row per student, sorted by
// correct count descending.
func ByStudent(items []Performance) []Performance {
	idx := make(map[string]int)
	out := make([]Performance, 0)
	for _, p := range items {
		i, ok := idx[p.StudentID]
		if !ok {
			i = len(out)
			idx[p.StudentID] = i
			out = append(out, Performance{
				StudentID:   p.StudentID,
				StudentName: p.StudentName,
				BatchCode:   p.BatchCode,
				Subject:     p.Subject,
				Subtopic:    p.Subtopic,
			})
		} else if out[i].Subtopic != p.Subtopic {
			out[i].Subtopic = "All"
		}
		out[i].Correct += p.Correct
		out[i].Incorrect += p.Incorrect
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Correct != out[b].Correct {
			return out[a].Correct > out[b].Correct
		}
		return out[a].StudentID < out[b].StudentID
	})
	return out
}

func label(p Performance) string {
	if p.StudentName != "" {
		return p.StudentName
	}
	return p.StudentID
}

// PerformanceChartPNG draws a horizontal stacked bar per student, correct in
// green and incorrect in red.
func PerformanceChartPNG(title string, items []Performance) ([]byte, error) {
	students := ByStudent(items)

	const (
		width      = 900
		barHeight  = 22
		barGap     = 10
		marginTop  = 60
		marginLeft = 180
		marginEnd  = 60
	)
	height := marginTop + len(students)*(barHeight+barGap) + 50
	if height < 200 {
		height = 200
	}

	maxTotal := 0
	for _, p := range students {
		if p.Total() > maxTotal {
			maxTotal = p.Total()
		}
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(colorAxis)
	dc.DrawStringAnchored(title, width/2, 25, 0.5, 0.5)

	if len(students) == 0 || maxTotal == 0 {
		dc.DrawStringAnchored("No responses recorded yet.", width/2, float64(height)/2, 0.5, 0.5)
		return encodePNG(dc)
	}

	scale := float64(width-marginLeft-marginEnd) / float64(maxTotal)
	for i, p := range students {
		y := float64(marginTop + i*(barHeight+barGap))
		cw := float64(p.Correct) * scale
		iw := float64(p.Incorrect) * scale

		dc.SetColor(colorCorrect)
		dc.DrawRectangle(marginLeft, y, cw, barHeight)
		dc.Fill()
		dc.SetColor(colorIncorrect)
		dc.DrawRectangle(marginLeft+cw, y, iw, barHeight)
		dc.Fill()

		dc.SetColor(colorAxis)
		dc.DrawStringAnchored(label(p), marginLeft-8, y+barHeight/2, 1, 0.5)
		dc.DrawStringAnchored(fmt.Sprintf("%d/%d", p.Correct, p.Total()), marginLeft+cw+iw+6, y+barHeight/2, 0, 0.5)
	}

	legendY := float64(height - 25)
	dc.SetColor(colorCorrect)
	dc.DrawRectangle(marginLeft, legendY-6, 12, 12)
	dc.Fill()
	dc.SetColor(colorAxis)
	dc.DrawStringAnchored("Correct", marginLeft+18, legendY, 0, 0.5)
	dc.SetColor(colorIncorrect)
	dc.DrawRectangle(marginLeft+100, legendY-6, 12, 12)
	dc.Fill()
	dc.SetColor(colorAxis)
	dc.DrawStringAnchored("Incorrect", marginLeft+118, legendY, 0, 0.5)

	return encodePNG(dc)
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}
