package question

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	SheetMain     = "Main"
	SheetRemedial = "Remedial"
)

const (
	reasonMissingID       = "missing question id"
	reasonMissingSubtopic = "missing subtopic id"
	reasonMissingMainID   = "missing main question id"
	reasonNoOptions       = "no options"
	reasonMissingCorrect  = "missing correct option"
	reasonCorrectNotFound = "correct option not among options"
	reasonInvalidMarks    = "invalid marks"
	reasonDuplicateID     = "duplicate question id"
)

var optionColumns = []string{"optiona", "optionb", "optionc", "optiond"}

// headerIndex keeps every column position per normalised name, so that
// spellings which collapse to the same key (Correct_Answer, CorrectAnswer)
// are all consulted in sheet order.
type headerIndex map[string][]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		k := normalizeHeader(h)
		if k == "" {
			continue
		}
		idx[k] = append(idx[k], i)
	}
	return idx
}

func (h headerIndex) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := h[k]; ok {
			return true
		}
	}
	return false
}

// value returns the first non-empty trimmed cell among the given columns.
func (h headerIndex) value(rec []string, keys ...string) string {
	for _, k := range keys {
		for _, i := range h[k] {
			if i < 0 || i >= len(rec) {
				continue
			}
			if v := strings.TrimSpace(rec[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(h)
}

type rowFields struct {
	text     string
	options  []string
	correct  string
	imageURL string
	marks    int
}

func readCommon(idx headerIndex, rec []string) (rowFields, string) {
	f := rowFields{
		text:     idx.value(rec, "questiontext", "question"),
		imageURL: NormalizeImageURL(idx.value(rec, "imageurl", "image")),
		// CorrectOption wins, then Correct_Answer, then CorrectAnswer.
		correct: idx.value(rec, "correctoption", "correctanswer"),
	}
	for _, col := range optionColumns {
		if v := idx.value(rec, col); v != "" {
			f.options = append(f.options, v)
		}
	}

	marks, ok := parseMarks(idx.value(rec, "marks"))
	if !ok {
		return f, reasonInvalidMarks
	}
	f.marks = marks

	if len(f.options) == 0 {
		return f, reasonNoOptions
	}
	if f.correct == "" {
		return f, reasonMissingCorrect
	}
	found := false
	for _, o := range f.options {
		if o == f.correct {
			found = true
			break
		}
	}
	if !found {
		return f, reasonCorrectNotFound
	}
	return f, ""
}

// parseMarks treats blank and zero as the default weight of 1. Negative or
// fractional weights make the row malformed.
func parseMarks(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, false
	}
	if v == 0 {
		return 1, true
	}
	return int(v), true
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseMain converts sheet rows into servable Main questions. Malformed rows
// are excluded and reported, never fatal.
func ParseMain(header []string, rows [][]string) ([]Question, []RowIssue) {
	idx := indexHeader(header)
	out := make([]Question, 0, len(rows))
	var issues []RowIssue
	seen := map[string]struct{}{}

	for i, rec := range rows {
		if isBlankRow(rec) {
			continue
		}
		rowNo := i + 2
		id := idx.value(rec, "questionid", "qid")
		if id == "" {
			issues = append(issues, RowIssue{Sheet: SheetMain, Row: rowNo, Reason: reasonMissingID})
			continue
		}
		subtopic := idx.value(rec, "subtopicid", "subtopic")
		if subtopic == "" {
			issues = append(issues, RowIssue{Sheet: SheetMain, Row: rowNo, ID: id, Reason: reasonMissingSubtopic})
			continue
		}
		f, reason := readCommon(idx, rec)
		if reason != "" {
			issues = append(issues, RowIssue{Sheet: SheetMain, Row: rowNo, ID: id, Reason: reason})
			continue
		}
		if _, dup := seen[id]; dup {
			issues = append(issues, RowIssue{Sheet: SheetMain, Row: rowNo, ID: id, Reason: reasonDuplicateID})
			continue
		}
		seen[id] = struct{}{}

		out = append(out, Question{
			ID:         id,
			SubtopicID: subtopic,
			Text:       f.text,
			Options:    f.options,
			Correct:    f.correct,
			ImageURL:   f.imageURL,
			Marks:      f.marks,
		})
	}
	return out, issues
}

// ParseRemedial converts remedial sheet rows. linked reports whether the
// sheet carries a MainQuestionID column at all.
func ParseRemedial(header []string, rows [][]string) (items []RemedialQuestion, issues []RowIssue, linked bool) {
	idx := indexHeader(header)
	if !idx.has("mainquestionid") {
		if len(rows) > 0 {
			issues = append(issues, RowIssue{Sheet: SheetRemedial, Row: 1, Reason: "MainQuestionID column missing"})
		}
		return nil, issues, false
	}

	items = make([]RemedialQuestion, 0, len(rows))
	seen := map[string]struct{}{}
	for i, rec := range rows {
		if isBlankRow(rec) {
			continue
		}
		rowNo := i + 2
		id := idx.value(rec, "remedialquestionid", "remedialid")
		if id == "" {
			issues = append(issues, RowIssue{Sheet: SheetRemedial, Row: rowNo, Reason: reasonMissingID})
			continue
		}
		mainID := idx.value(rec, "mainquestionid")
		if mainID == "" {
			issues = append(issues, RowIssue{Sheet: SheetRemedial, Row: rowNo, ID: id, Reason: reasonMissingMainID})
			continue
		}
		f, reason := readCommon(idx, rec)
		if reason != "" {
			issues = append(issues, RowIssue{Sheet: SheetRemedial, Row: rowNo, ID: id, Reason: reason})
			continue
		}
		if _, dup := seen[id]; dup {
			issues = append(issues, RowIssue{Sheet: SheetRemedial, Row: rowNo, ID: id, Reason: reasonDuplicateID})
			continue
		}
		seen[id] = struct{}{}

		items = append(items, RemedialQuestion{
			ID:             id,
			MainQuestionID: mainID,
			Text:           f.text,
			Options:        f.options,
			Correct:        f.correct,
			ImageURL:       f.imageURL,
			Hint:           idx.value(rec, "hint"),
			Marks:          f.marks,
		})
	}
	return items, issues, true
}

var (
	driveFilePath = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`)
)

// NormalizeImageURL rewrites Google Drive share links into direct-view links.
// Other URLs are returned trimmed.
func NormalizeImageURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" || !strings.Contains(u, "drive.google.com") {
		return u
	}
	if m := driveFilePath.FindStringSubmatch(u); m != nil {
		return fmt.Sprintf("https://drive.google.com/uc?export=view&id=%s", m[1])
	}
	if m := driveIDParam.FindStringSubmatch(u); m != nil {
		return fmt.Sprintf("https://drive.google.com/uc?export=view&id=%s", m[1])
	}
	return u
}
