package question

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockCatalog struct {
	banks       []BankConfig
	loadFn      func(ctx context.Context, key string) (*Bank, error)
	invalidated []string
}

func (m *mockCatalog) Resolve(bank, subject string) (BankConfig, error) {
	for _, b := range m.banks {
		if b.Key == bank {
			return b, nil
		}
	}
	return BankConfig{}, ErrUnknownBank
}

func (m *mockCatalog) Banks() []BankConfig { return m.banks }

func (m *mockCatalog) Load(ctx context.Context, key string) (*Bank, error) {
	if m.loadFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.loadFn(ctx, key)
}

func (m *mockCatalog) Invalidate(key string) { m.invalidated = append(m.invalidated, key) }

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

func geometryBank() *Bank {
	return &Bank{
		Key: "ssc_maths_geometry",
		Main: []Question{
			{ID: "Q1", SubtopicID: "Quadratic_1", Options: []string{"1", "2"}, Correct: "1", Marks: 1},
			{ID: "Q2", SubtopicID: "Circles_1", Options: []string{"1", "2"}, Correct: "2", Marks: 1},
		},
		Remedial: []RemedialQuestion{{ID: "R1", MainQuestionID: "Q1", Options: []string{"a"}, Correct: "a", Marks: 1}},
		Issues:   []RowIssue{{Sheet: "Main", Row: 4, ID: "Q3", Reason: "correct answer is not one of the options"}},
	}
}

func TestHandlerListReportsBrokenBanks(t *testing.T) {
	cat := &mockCatalog{
		banks: []BankConfig{{Key: "broken"}, {Key: "ssc_maths_geometry", Title: "Geometry", Source: SourceXLSX}},
		loadFn: func(ctx context.Context, key string) (*Bank, error) {
			if key == "broken" {
				return nil, ErrMainSheetMissing
			}
			return geometryBank(), nil
		},
	}
	h := NewHandler(cat)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/banks", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeBody(t, rr)["data"].([]interface{})
	if len(data) != 2 {
		t.Fatalf("expected 2 banks, got %d", len(data))
	}
	broken := data[0].(map[string]interface{})
	if broken["error"] != "bank unavailable" {
		t.Fatalf("expected broken bank flagged, got %v", broken)
	}
	geo := data[1].(map[string]interface{})
	if geo["main_count"].(float64) != 2 || geo["remedial_count"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", geo)
	}
	if _, ok := geo["issues"]; ok {
		t.Fatalf("list should not include row issues")
	}
}

func TestHandlerSubtopics(t *testing.T) {
	cat := &mockCatalog{
		banks:  []BankConfig{{Key: "ssc_maths_geometry"}},
		loadFn: func(ctx context.Context, key string) (*Bank, error) { return geometryBank(), nil },
	}
	h := NewHandler(cat)

	rr := httptest.NewRecorder()
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/banks/ssc_maths_geometry/subtopics", nil), "bank", "ssc_maths_geometry")
	h.Subtopics(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := decodeBody(t, rr)["data"].([]interface{})
	if len(got) != 2 {
		t.Fatalf("expected 2 subtopics, got %v", got)
	}

	rr = httptest.NewRecorder()
	req = withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/banks/history/subtopics", nil), "bank", "history")
	h.Subtopics(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandlerReload(t *testing.T) {
	loads := 0
	cat := &mockCatalog{
		banks: []BankConfig{{Key: "ssc_maths_geometry"}},
		loadFn: func(ctx context.Context, key string) (*Bank, error) {
			loads++
			return geometryBank(), nil
		},
	}
	h := NewHandler(cat)

	rr := httptest.NewRecorder()
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/banks/ssc_maths_geometry/reload", nil), "bank", "ssc_maths_geometry")
	h.Reload(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(cat.invalidated) != 1 || cat.invalidated[0] != "ssc_maths_geometry" || loads != 1 {
		t.Fatalf("expected one invalidate and one load, got %v / %d", cat.invalidated, loads)
	}
	data := decodeBody(t, rr)["data"].(map[string]interface{})
	issues := data["issues"].([]interface{})
	if len(issues) != 1 {
		t.Fatalf("expected row issues in reload output, got %v", data)
	}
}

func TestHandlerReloadErrors(t *testing.T) {
	tests := []struct {
		name     string
		bank     string
		loadErr  error
		wantCode int
	}{
		{name: "unknown bank", bank: "history", wantCode: http.StatusNotFound},
		{name: "missing main sheet", bank: "ssc_maths_geometry", loadErr: ErrMainSheetMissing, wantCode: http.StatusUnprocessableEntity},
		{name: "source failure", bank: "ssc_maths_geometry", loadErr: errors.New("disk"), wantCode: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cat := &mockCatalog{
				banks:  []BankConfig{{Key: "ssc_maths_geometry"}},
				loadFn: func(ctx context.Context, key string) (*Bank, error) { return nil, tc.loadErr },
			}
			rr := httptest.NewRecorder()
			req := withChiParam(httptest.NewRequest(http.MethodPost, "/", nil), "bank", tc.bank)
			NewHandler(cat).Reload(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}
