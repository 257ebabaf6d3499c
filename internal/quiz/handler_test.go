package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizportal/internal/auth"
	"quizportal/internal/question"
)

type mockQuizService struct {
	mainQuizFn       func(ctx context.Context, sel Selector, student *auth.Student) (*QuizView, error)
	hasMainAttemptFn func(ctx context.Context, sel Selector, student auth.Student) (bool, error)
	submitMainFn     func(ctx context.Context, in SubmitMainInput) (*MainOutcome, error)
	remedialQuizFn   func(ctx context.Context, ticket string, student auth.Student) (*QuizView, error)
	submitRemedialFn func(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error)
}

func (m *mockQuizService) MainQuiz(ctx context.Context, sel Selector, student *auth.Student) (*QuizView, error) {
	if m.mainQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.mainQuizFn(ctx, sel, student)
}

func (m *mockQuizService) HasMainAttempt(ctx context.Context, sel Selector, student auth.Student) (bool, error) {
	if m.hasMainAttemptFn == nil {
		return false, errors.New("not implemented")
	}
	return m.hasMainAttemptFn(ctx, sel, student)
}

func (m *mockQuizService) SubmitMain(ctx context.Context, in SubmitMainInput) (*MainOutcome, error) {
	if m.submitMainFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitMainFn(ctx, in)
}

func (m *mockQuizService) RemedialQuiz(ctx context.Context, ticket string, student auth.Student) (*QuizView, error) {
	if m.remedialQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.remedialQuizFn(ctx, ticket, student)
}

func (m *mockQuizService) SubmitRemedial(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error) {
	if m.submitRemedialFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitRemedialFn(ctx, in)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func withStudent(r *http.Request, id string) *http.Request {
	return r.WithContext(auth.ContextWithStudent(r.Context(), &auth.Student{ID: id, TuitionCode: "B1"}))
}

func TestSubmitMainUsesSessionStudent(t *testing.T) {
	var got SubmitMainInput
	h := NewHandler(&mockQuizService{
		submitMainFn: func(ctx context.Context, in SubmitMainInput) (*MainOutcome, error) {
			got = in
			return &MainOutcome{AttemptID: "a1"}, nil
		},
	})

	payload := []byte(`{"bank":"maths","subtopic_id":"Quadratic_1","answers":{"Q1":"4","Q2":null,"Q3":"16"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/main/submit", bytes.NewReader(payload))
	req = withStudent(req, "S1")
	w := httptest.NewRecorder()

	h.SubmitMain(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.Student.ID != "S1" || got.Selector.SubtopicID != "Quadratic_1" || got.Selector.Bank != "maths" {
		t.Fatalf("unexpected input %+v", got)
	}
	if _, ok := got.Answers["Q2"]; ok {
		t.Fatalf("null answer should be treated as missing")
	}
	if got.Answers["Q1"] != "4" {
		t.Fatalf("unexpected answers %v", got.Answers)
	}
}

func TestSubmitMainRequiresSession(t *testing.T) {
	h := NewHandler(&mockQuizService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/main/submit", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.SubmitMain(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSubmitMainIncompleteReturnsMissingIDs(t *testing.T) {
	h := NewHandler(&mockQuizService{
		submitMainFn: func(ctx context.Context, in SubmitMainInput) (*MainOutcome, error) {
			return nil, &IncompleteError{Missing: []string{"Q2"}}
		},
	})
	payload := []byte(`{"subtopic_id":"Quadratic_1","answers":{"Q1":"4"}}`)
	req := withStudent(httptest.NewRequest(http.MethodPost, "/api/v1/quiz/main/submit", bytes.NewReader(payload)), "S1")
	w := httptest.NewRecorder()

	h.SubmitMain(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := decodeBody(t, w)
	errPayload, _ := body["error"].(map[string]interface{})
	details, _ := errPayload["details"].(map[string]interface{})
	missing, _ := details["missing"].([]interface{})
	if len(missing) != 1 || missing[0] != "Q2" {
		t.Fatalf("expected missing [Q2], got %v", body["error"])
	}
}

func TestSubmitMainErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "duplicate", err: ErrDuplicateAttempt, want: http.StatusConflict},
		{name: "unknown bank", err: question.ErrUnknownBank, want: http.StatusNotFound},
		{name: "unknown subtopic", err: ErrSubtopicNotFound, want: http.StatusNotFound},
		{name: "invalid input", err: ErrInvalidInput, want: http.StatusBadRequest},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockQuizService{
				submitMainFn: func(ctx context.Context, in SubmitMainInput) (*MainOutcome, error) { return nil, tc.err },
			})
			payload := []byte(`{"subtopic_id":"Quadratic_1","answers":{}}`)
			req := withStudent(httptest.NewRequest(http.MethodPost, "/api/v1/quiz/main/submit", bytes.NewReader(payload)), "S1")
			w := httptest.NewRecorder()
			h.SubmitMain(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestMainAllowsAnonymousPreview(t *testing.T) {
	var gotStudent *auth.Student
	var gotSel Selector
	h := NewHandler(&mockQuizService{
		mainQuizFn: func(ctx context.Context, sel Selector, student *auth.Student) (*QuizView, error) {
			gotStudent, gotSel = student, sel
			return &QuizView{SubtopicID: sel.SubtopicID}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quiz/main?bank=maths&subject=Maths&subtopic_id=Quadratic_1", nil)
	w := httptest.NewRecorder()

	h.Main(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotStudent != nil {
		t.Fatalf("expected anonymous request")
	}
	if gotSel.Bank != "maths" || gotSel.Subject != "Maths" || gotSel.SubtopicID != "Quadratic_1" {
		t.Fatalf("unexpected selector %+v", gotSel)
	}
}

func TestMainRequiresSubtopic(t *testing.T) {
	h := NewHandler(&mockQuizService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quiz/main?bank=maths", nil)
	w := httptest.NewRecorder()
	h.Main(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAttempted(t *testing.T) {
	h := NewHandler(&mockQuizService{
		hasMainAttemptFn: func(ctx context.Context, sel Selector, student auth.Student) (bool, error) {
			return student.ID == "S1", nil
		},
	})
	req := withStudent(httptest.NewRequest(http.MethodGet, "/api/v1/quiz/main/attempted?subtopic_id=Quadratic_1", nil), "S1")
	w := httptest.NewRecorder()

	h.Attempted(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]interface{})
	if data["attempted"] != true {
		t.Fatalf("expected attempted=true, got %v", body)
	}
}

func TestRemedialTicketErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid", err: ErrInvalidTicket, want: http.StatusBadRequest},
		{name: "other student", err: ErrTicketForbidden, want: http.StatusForbidden},
		{name: "no content", err: ErrNoRemedialContent, want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockQuizService{
				remedialQuizFn: func(ctx context.Context, ticket string, student auth.Student) (*QuizView, error) {
					return nil, tc.err
				},
			})
			req := withStudent(httptest.NewRequest(http.MethodGet, "/api/v1/quiz/remedial?ticket=abc", nil), "S1")
			w := httptest.NewRecorder()
			h.Remedial(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestSubmitRemedialRequiresTicket(t *testing.T) {
	h := NewHandler(&mockQuizService{})
	req := withStudent(httptest.NewRequest(http.MethodPost, "/api/v1/quiz/remedial/submit", bytes.NewReader([]byte(`{"answers":{"R2":"9"}}`))), "S1")
	w := httptest.NewRecorder()
	h.SubmitRemedial(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitRemedialOK(t *testing.T) {
	var got SubmitRemedialInput
	h := NewHandler(&mockQuizService{
		submitRemedialFn: func(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error) {
			got = in
			return &RemedialOutcome{AttemptID: "r1", MainAttemptID: "a1"}, nil
		},
	})
	payload := []byte(`{"ticket":"tok","answers":{"R2":"9"}}`)
	req := withStudent(httptest.NewRequest(http.MethodPost, "/api/v1/quiz/remedial/submit", bytes.NewReader(payload)), "S1")
	w := httptest.NewRecorder()

	h.SubmitRemedial(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.Ticket != "tok" || got.Answers["R2"] != "9" || got.Student.ID != "S1" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestSubmitRemedialReplayConflict(t *testing.T) {
	h := NewHandler(&mockQuizService{
		submitRemedialFn: func(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error) {
			return nil, ErrRemedialSubmitted
		},
	})
	payload := []byte(`{"ticket":"tok","answers":{"R2":"9"}}`)
	req := withStudent(httptest.NewRequest(http.MethodPost, "/api/v1/quiz/remedial/submit", bytes.NewReader(payload)), "S1")
	w := httptest.NewRecorder()

	h.SubmitRemedial(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}
