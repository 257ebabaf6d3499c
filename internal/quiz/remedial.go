package quiz

import (
	"strings"

	"quizportal/internal/question"
)

type RemedialState string

const (
	RemedialNotNeeded   RemedialState = "not_needed"
	RemedialUnavailable RemedialState = "unavailable"
	RemedialReady       RemedialState = "ready"
)

const (
	msgRemedialNotNeeded   = "All answers correct. No remedial quiz needed."
	msgRemedialUnavailable = "No remedial questions found for the questions you missed."
	msgRemedialUnlinked    = "Remedial sheet has no MainQuestionID column."
)

type RemedialSelection struct {
	State     RemedialState               `json:"state"`
	Message   string                      `json:"message,omitempty"`
	Questions []question.RemedialQuestion `json:"-"`
}

// SelectRemedial keeps the store rows whose MainQuestionID is among wrongIDs,
// in store order. An empty result for a non-empty wrong set is an
// informational state, not an error.
func SelectRemedial(store []question.RemedialQuestion, wrongIDs []string) RemedialSelection {
	if len(wrongIDs) == 0 {
		return RemedialSelection{State: RemedialNotNeeded, Message: msgRemedialNotNeeded}
	}

	wrong := make(map[string]struct{}, len(wrongIDs))
	for _, id := range wrongIDs {
		wrong[strings.TrimSpace(id)] = struct{}{}
	}

	selected := make([]question.RemedialQuestion, 0)
	for _, r := range store {
		if _, ok := wrong[strings.TrimSpace(r.MainQuestionID)]; ok {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return RemedialSelection{State: RemedialUnavailable, Message: msgRemedialUnavailable}
	}
	return RemedialSelection{State: RemedialReady, Questions: selected}
}

func selectFromBank(b *question.Bank, wrongIDs []string) RemedialSelection {
	sel := SelectRemedial(b.Remedial, wrongIDs)
	if sel.State == RemedialUnavailable && !b.RemedialLinked {
		sel.Message = msgRemedialUnlinked
	}
	return sel
}
