package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"quizportal/internal/app/apiresp"
	"quizportal/internal/auth"
	"quizportal/internal/question"
)

type Handler struct {
	svc quizService
}

type quizService interface {
	MainQuiz(ctx context.Context, sel Selector, student *auth.Student) (*QuizView, error)
	HasMainAttempt(ctx context.Context, sel Selector, student auth.Student) (bool, error)
	SubmitMain(ctx context.Context, in SubmitMainInput) (*MainOutcome, error)
	RemedialQuiz(ctx context.Context, ticket string, student auth.Student) (*QuizView, error)
	SubmitRemedial(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Answers are pointers so that an explicit null and a missing key both read
// as unanswered.
type submitMainRequest struct {
	Bank       string             `json:"bank"`
	Subject    string             `json:"subject"`
	SubtopicID string             `json:"subtopic_id"`
	Answers    map[string]*string `json:"answers"`
}

type submitRemedialRequest struct {
	Ticket  string             `json:"ticket"`
	Answers map[string]*string `json:"answers"`
}

type attemptedResponse struct {
	Bank       string `json:"bank"`
	Subject    string `json:"subject"`
	SubtopicID string `json:"subtopic_id"`
	Attempted  bool   `json:"attempted"`
}

func NewHandler(svc quizService) *Handler {
	return &Handler{svc: svc}
}

func selectorFromQuery(r *http.Request) Selector {
	q := r.URL.Query()
	subtopic := q.Get("subtopic_id")
	if subtopic == "" {
		subtopic = q.Get("subtopic")
	}
	return Selector{
		Bank:       strings.TrimSpace(q.Get("bank")),
		Subject:    strings.TrimSpace(q.Get("subject")),
		SubtopicID: strings.TrimSpace(subtopic),
	}
}

func toAnswerSet(in map[string]*string) AnswerSet {
	out := make(AnswerSet, len(in))
	for id, v := range in {
		if v == nil {
			continue
		}
		out[strings.TrimSpace(id)] = *v
	}
	return out
}

func (h *Handler) Main(w http.ResponseWriter, r *http.Request) {
	sel := selectorFromQuery(r)
	if sel.SubtopicID == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "subtopic_id is required"})
		return
	}
	student, _ := auth.CurrentStudent(r.Context())
	view, err := h.svc.MainQuiz(r.Context(), sel, student)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: view})
}

func (h *Handler) Attempted(w http.ResponseWriter, r *http.Request) {
	student, ok := auth.CurrentStudent(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	sel := selectorFromQuery(r)
	if sel.SubtopicID == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "subtopic_id is required"})
		return
	}
	done, err := h.svc.HasMainAttempt(r.Context(), sel, *student)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: attemptedResponse{
		Bank:       sel.Bank,
		Subject:    sel.Subject,
		SubtopicID: sel.SubtopicID,
		Attempted:  done,
	}})
}

func (h *Handler) SubmitMain(w http.ResponseWriter, r *http.Request) {
	student, ok := auth.CurrentStudent(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	var req submitMainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.SubtopicID) == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "subtopic_id is required"})
		return
	}

	out, err := h.svc.SubmitMain(r.Context(), SubmitMainInput{
		Selector: Selector{
			Bank:       strings.TrimSpace(req.Bank),
			Subject:    strings.TrimSpace(req.Subject),
			SubtopicID: strings.TrimSpace(req.SubtopicID),
		},
		Student: *student,
		Answers: toAnswerSet(req.Answers),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func (h *Handler) Remedial(w http.ResponseWriter, r *http.Request) {
	student, ok := auth.CurrentStudent(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	ticket := strings.TrimSpace(r.URL.Query().Get("ticket"))
	if ticket == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "ticket is required"})
		return
	}
	view, err := h.svc.RemedialQuiz(r.Context(), ticket, *student)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: view})
}

func (h *Handler) SubmitRemedial(w http.ResponseWriter, r *http.Request) {
	student, ok := auth.CurrentStudent(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	var req submitRemedialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Ticket) == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "ticket is required"})
		return
	}

	out, err := h.svc.SubmitRemedial(r.Context(), SubmitRemedialInput{
		Ticket:  req.Ticket,
		Student: *student,
		Answers: toAnswerSet(req.Answers),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var incomplete *IncompleteError
	switch {
	case errors.As(err, &incomplete):
		apiresp.WriteErrorDetails(w, r, http.StatusUnprocessableEntity,
			"Please answer all questions before submitting.",
			map[string]interface{}{"missing": incomplete.Missing})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrIdentityRequired):
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrInvalidTicket):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrTicketForbidden):
		writeJSON(w, r, http.StatusForbidden, apiResponse{OK: false, Error: "forbidden"})
	case errors.Is(err, question.ErrUnknownBank), errors.Is(err, ErrSubtopicNotFound), errors.Is(err, ErrNoRemedialContent):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrDuplicateAttempt):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: "You have already completed the Main quiz for this subtopic."})
	case errors.Is(err, ErrRemedialSubmitted):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: "You have already submitted the remedial quiz for this attempt."})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
