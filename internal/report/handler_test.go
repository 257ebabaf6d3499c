package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quizportal/internal/response"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	batchPerformanceFn func(ctx context.Context, q PerformanceQuery) ([]Performance, error)
	studentSummaryFn   func(ctx context.Context, batch, subject, studentID string) (*StudentSummary, error)
	studentResponsesFn func(ctx context.Context, studentID, subject, subtopic string) ([]response.Row, error)
}

func (m *mockReportService) BatchPerformance(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
	if m.batchPerformanceFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.batchPerformanceFn(ctx, q)
}

func (m *mockReportService) StudentSummary(ctx context.Context, batch, subject, studentID string) (*StudentSummary, error) {
	if m.studentSummaryFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.studentSummaryFn(ctx, batch, subject, studentID)
}

func (m *mockReportService) StudentResponses(ctx context.Context, studentID, subject, subtopic string) ([]response.Row, error) {
	if m.studentResponsesFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.studentResponsesFn(ctx, studentID, subject, subtopic)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func samplePerformance() []Performance {
	return []Performance{{StudentID: "S1", StudentName: "Asha", BatchCode: "B1", Subject: "Maths", Subtopic: "Quadratic_1", Correct: 3, Incorrect: 1}}
}

func TestPerformancePassesFilters(t *testing.T) {
	var got PerformanceQuery
	h := NewHandler(&mockReportService{
		batchPerformanceFn: func(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
			got = q
			return samplePerformance(), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/performance?batch=B1&subject=Maths&subtopic=Quadratic_1", nil)
	w := httptest.NewRecorder()
	h.Performance(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.BatchCode != "B1" || got.Subject != "Maths" || got.Subtopic != "Quadratic_1" {
		t.Fatalf("unexpected query %+v", got)
	}
	body := decodeBody(t, w)
	if body["ok"] != true {
		t.Fatalf("expected ok response, got %v", body)
	}
}

func TestPerformanceFormats(t *testing.T) {
	h := NewHandler(&mockReportService{
		batchPerformanceFn: func(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
			return samplePerformance(), nil
		},
	})

	tests := []struct {
		format      string
		contentType string
		prefix      string
	}{
		{format: "csv", contentType: contentTypeCSV, prefix: "Student_ID"},
		{format: "xlsx", contentType: contentTypeXLSX, prefix: "PK"},
		{format: "png", contentType: contentTypePNG, prefix: "\x89PNG"},
		{format: "pdf", contentType: contentTypePDF, prefix: "%PDF"},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/performance?batch=B1&format="+tc.format, nil)
			w := httptest.NewRecorder()
			h.Performance(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if w.Header().Get("Content-Type") != tc.contentType {
				t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
			}
			if !strings.Contains(w.Header().Get("Content-Disposition"), "performance_B1."+tc.format) {
				t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
			}
			if !bytes.HasPrefix(w.Body.Bytes(), []byte(tc.prefix)) {
				t.Fatalf("unexpected body prefix for %s", tc.format)
			}
		})
	}
}

func TestPerformanceRejectsUnknownFormat(t *testing.T) {
	h := NewHandler(&mockReportService{
		batchPerformanceFn: func(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
			return samplePerformance(), nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/performance?batch=B1&format=doc", nil)
	w := httptest.NewRecorder()
	h.Performance(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPerformanceMissingBatch(t *testing.T) {
	h := NewHandler(&mockReportService{
		batchPerformanceFn: func(ctx context.Context, q PerformanceQuery) ([]Performance, error) {
			return nil, ErrInvalidInput
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/performance", nil)
	w := httptest.NewRecorder()
	h.Performance(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStudentSummaryUsesRouteParam(t *testing.T) {
	var gotStudent string
	h := NewHandler(&mockReportService{
		studentSummaryFn: func(ctx context.Context, batch, subject, studentID string) (*StudentSummary, error) {
			gotStudent = studentID
			return &StudentSummary{StudentID: studentID, Subject: subject, Rows: []SummaryRow{
				{Subtopic: "Quadratic_1", AttemptType: response.AttemptMain, Correct: 2, Incorrect: 1, Total: 3, Percent: "66.7%"},
			}}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/students/S1/summary?subject=Maths&format=csv", nil)
	req = withChiParam(req, "studentID", "S1")
	w := httptest.NewRecorder()
	h.StudentSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotStudent != "S1" {
		t.Fatalf("expected S1, got %q", gotStudent)
	}
	if !strings.Contains(w.Body.String(), "Quadratic_1,Main,2,1,3,66.7%") {
		t.Fatalf("unexpected csv %q", w.Body.String())
	}
}

func TestStudentResponsesInternalError(t *testing.T) {
	h := NewHandler(&mockReportService{
		studentResponsesFn: func(ctx context.Context, studentID, subject, subtopic string) ([]response.Row, error) {
			return nil, errors.New("db down")
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/students/S1/responses", nil)
	req = withChiParam(req, "studentID", "S1")
	w := httptest.NewRecorder()
	h.StudentResponses(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
