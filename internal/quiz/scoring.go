package quiz

import (
	"errors"
	"fmt"
	"strings"

	"quizportal/internal/question"
	"quizportal/internal/response"
)

var ErrIncompleteSubmission = errors.New("incomplete submission")

// IncompleteError lists the questions left blank. It matches
// ErrIncompleteSubmission under errors.Is.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete submission: %d unanswered (%s)", len(e.Missing), strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteSubmission
}

// AnswerSet maps a question ID to the chosen option text.
type AnswerSet map[string]string

// Item is one gradable question, Main or Remedial.
type Item struct {
	ID       string
	Text     string
	ImageURL string
	Hint     string
	Options  []string
	Correct  string
	Marks    int
}

type ItemResult struct {
	ID        string   `json:"question_id"`
	Text      string   `json:"question_text"`
	ImageURL  string   `json:"image_url,omitempty"`
	Options   []string `json:"options"`
	Correct   string   `json:"correct"`
	Given     string   `json:"given"`
	Awarded   int      `json:"awarded"`
	Marks     int      `json:"marks"`
	IsCorrect bool     `json:"is_correct"`
	Reason    string   `json:"reason"`
}

type GradedResult struct {
	Kind     response.AttemptType `json:"attempt_type"`
	Total    int                  `json:"total"`
	Earned   int                  `json:"earned"`
	WrongIDs []string             `json:"wrong_ids"`
	Items    []ItemResult         `json:"items"`
}

func (g *GradedResult) AllCorrect() bool {
	return len(g.WrongIDs) == 0
}

// Grade scores a complete answer set. Items are graded in the given
// (authoritative) order, which is also the order of WrongIDs.
func Grade(kind response.AttemptType, items []Item, answers AnswerSet) (*GradedResult, error) {
	if len(items) == 0 {
		return nil, ErrNoQuestions
	}

	missing := make([]string, 0)
	for _, it := range items {
		if strings.TrimSpace(answers[it.ID]) == "" {
			missing = append(missing, it.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	res := &GradedResult{
		Kind:     kind,
		WrongIDs: make([]string, 0),
		Items:    make([]ItemResult, 0, len(items)),
	}
	for _, it := range items {
		r := ScoreItem(it, answers[it.ID])
		res.Total += r.Marks
		res.Earned += r.Awarded
		if r.Awarded == 0 {
			res.WrongIDs = append(res.WrongIDs, it.ID)
		}
		res.Items = append(res.Items, r)
	}
	return res, nil
}

// ScoreItem is all-or-nothing exact matching after trimming. No case or
// punctuation folding.
func ScoreItem(it Item, given string) ItemResult {
	marks := it.Marks
	if marks < 0 {
		marks = 0
	}
	correct := strings.TrimSpace(it.Correct)
	given = strings.TrimSpace(given)

	out := ItemResult{
		ID:       it.ID,
		Text:     it.Text,
		ImageURL: it.ImageURL,
		Options:  it.Options,
		Correct:  correct,
		Given:    given,
		Marks:    marks,
	}
	switch {
	case given == "":
		out.Reason = "unanswered"
	case given == correct:
		out.Awarded = marks
		out.IsCorrect = true
		out.Reason = "correct"
	default:
		out.Reason = "wrong"
	}
	return out
}

func ItemsFromMain(qs []question.Question) []Item {
	out := make([]Item, 0, len(qs))
	for _, q := range qs {
		out = append(out, Item{
			ID:       q.ID,
			Text:     q.Text,
			ImageURL: q.ImageURL,
			Options:  q.Options,
			Correct:  q.Correct,
			Marks:    q.Marks,
		})
	}
	return out
}

func ItemsFromRemedial(qs []question.RemedialQuestion) []Item {
	out := make([]Item, 0, len(qs))
	for _, q := range qs {
		out = append(out, Item{
			ID:       q.ID,
			Text:     q.Text,
			ImageURL: q.ImageURL,
			Hint:     q.Hint,
			Options:  q.Options,
			Correct:  q.Correct,
			Marks:    q.Marks,
		})
	}
	return out
}
