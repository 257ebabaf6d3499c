package question

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUnknownBank        = errors.New("unknown question bank")
	ErrMainSheetMissing   = errors.New("main sheet missing")
	ErrUnsupportedSource  = errors.New("unsupported question source")
	ErrSourceUnconfigured = errors.New("question source not configured")
)

// Question is a Main quiz row. Options holds only the non-empty A-D cells in
// sheet order; Correct always equals one of them.
type Question struct {
	ID         string   `json:"question_id"`
	SubtopicID string   `json:"subtopic_id"`
	Text       string   `json:"question_text"`
	Options    []string `json:"options"`
	Correct    string   `json:"-"`
	ImageURL   string   `json:"image_url,omitempty"`
	Marks      int      `json:"marks"`
}

type RemedialQuestion struct {
	ID             string   `json:"remedial_question_id"`
	MainQuestionID string   `json:"main_question_id"`
	Text           string   `json:"question_text"`
	Options        []string `json:"options"`
	Correct        string   `json:"-"`
	ImageURL       string   `json:"image_url,omitempty"`
	Hint           string   `json:"hint,omitempty"`
	Marks          int      `json:"marks"`
}

// RowIssue records a row excluded from the servable set.
type RowIssue struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

type Bank struct {
	Key      string
	Main     []Question
	Remedial []RemedialQuestion
	Issues   []RowIssue
	LoadedAt time.Time

	// RemedialLinked is false when the remedial sheet has no MainQuestionID
	// column, so no remedial row can ever be selected.
	RemedialLinked bool
}

// MainFor returns the Main questions of one subtopic in sheet order.
func (b *Bank) MainFor(subtopicID string) []Question {
	subtopicID = strings.TrimSpace(subtopicID)
	out := make([]Question, 0)
	for _, q := range b.Main {
		if q.SubtopicID == subtopicID {
			out = append(out, q)
		}
	}
	return out
}

func (b *Bank) Subtopics() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, q := range b.Main {
		if _, ok := seen[q.SubtopicID]; ok {
			continue
		}
		seen[q.SubtopicID] = struct{}{}
		out = append(out, q.SubtopicID)
	}
	return out
}
