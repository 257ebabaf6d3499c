package quiz

import (
	"time"

	"quizportal/internal/auth"
	"quizportal/internal/question"
	"quizportal/internal/response"
	"quizportal/internal/shuffle"
)

// Selector addresses one quiz: bank, subject and subtopic as they arrive in
// navigation parameters.
type Selector struct {
	Bank       string `json:"bank"`
	Subject    string `json:"subject"`
	SubtopicID string `json:"subtopic_id"`
}

// Session is the per-request attempt context. It is built by the service for
// one submission and passed explicitly to every step.
type Session struct {
	Student    auth.Student
	Bank       question.BankConfig
	Subject    string
	SubtopicID string
	Kind       response.AttemptType
	AttemptID  string
	Answers    AnswerSet
	Result     *GradedResult
	Remedial   *RemedialSelection
}

func (s *Session) Rows(at time.Time) []response.Row {
	if s.Result == nil {
		return nil
	}
	rows := make([]response.Row, 0, len(s.Result.Items))
	for _, it := range s.Result.Items {
		rows = append(rows, response.Row{
			SubmittedAt: at,
			AttemptID:   s.AttemptID,
			StudentID:   s.Student.ID,
			StudentName: s.Student.Name,
			BatchCode:   s.Student.TuitionCode,
			Subject:     s.Subject,
			Subtopic:    s.SubtopicID,
			QuestionNo:  it.ID,
			Given:       it.Given,
			Correct:     it.Correct,
			Awarded:     it.Awarded,
			Marks:       it.Marks,
			AttemptType: s.Kind,
		})
	}
	return rows
}

type QuestionView struct {
	ID       string   `json:"question_id"`
	Text     string   `json:"question_text"`
	ImageURL string   `json:"image_url,omitempty"`
	Hint     string   `json:"hint,omitempty"`
	Options  []string `json:"options"`
	Marks    int      `json:"marks"`
}

type QuizView struct {
	Bank             string               `json:"bank"`
	Subject          string               `json:"subject"`
	SubtopicID       string               `json:"subtopic_id"`
	AttemptType      response.AttemptType `json:"attempt_type"`
	Questions        []QuestionView       `json:"questions"`
	TotalMarks       int                  `json:"total_marks"`
	AlreadyAttempted bool                 `json:"already_attempted"`
	RetakeAllowed    bool                 `json:"retake_allowed"`
	Notice           string               `json:"notice,omitempty"`
}

// buildView orders questions and their options with per-student seeds. The
// answer key never leaves the server.
func buildView(studentID, subtopicID string, items []Item, questionPurpose string, optionPurpose func(string) string) []QuestionView {
	ordered := shuffle.Shuffle(items, shuffle.Seed(studentID, subtopicID, questionPurpose))
	out := make([]QuestionView, 0, len(ordered))
	for _, it := range ordered {
		out = append(out, QuestionView{
			ID:       it.ID,
			Text:     it.Text,
			ImageURL: it.ImageURL,
			Hint:     it.Hint,
			Options:  shuffle.Shuffle(it.Options, shuffle.Seed(studentID, subtopicID, optionPurpose(it.ID))),
			Marks:    it.Marks,
		})
	}
	return out
}

func totalMarks(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Marks
	}
	return n
}

type PersistStatus struct {
	Saved bool   `json:"saved"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

type RemedialSummary struct {
	State     RemedialState `json:"state"`
	Message   string        `json:"message,omitempty"`
	Count     int           `json:"count"`
	Ticket    string        `json:"ticket,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

type MainOutcome struct {
	AttemptID       string          `json:"attempt_id"`
	Result          *GradedResult   `json:"result"`
	Persistence     PersistStatus   `json:"persistence"`
	Remedial        RemedialSummary `json:"remedial"`
	TeacherNotified bool            `json:"teacher_notified"`
}

type RemedialOutcome struct {
	AttemptID     string        `json:"attempt_id"`
	MainAttemptID string        `json:"main_attempt_id"`
	Result        *GradedResult `json:"result"`
	Persistence   PersistStatus `json:"persistence"`
}
