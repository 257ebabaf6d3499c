package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"quizportal/internal/app/apiresp"
	"quizportal/internal/response"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	BatchPerformance(ctx context.Context, q PerformanceQuery) ([]Performance, error)
	StudentSummary(ctx context.Context, batch, subject, studentID string) (*StudentSummary, error)
	StudentResponses(ctx context.Context, studentID, subject, subtopic string) ([]response.Row, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePNG  = "image/png"
	contentTypePDF  = "application/pdf"
)

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pq := PerformanceQuery{
		BatchCode: strings.TrimSpace(q.Get("batch")),
		Subject:   strings.TrimSpace(q.Get("subject")),
		Subtopic:  strings.TrimSpace(q.Get("subtopic")),
	}
	items, err := h.svc.BatchPerformance(r.Context(), pq)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	base := fileBase("performance", pq.BatchCode, pq.Subject, pq.Subtopic)
	switch format(r) {
	case "json":
		writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
	case "csv":
		var buf bytes.Buffer
		if err := WritePerformanceCSV(&buf, items); err != nil {
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
			return
		}
		writeFile(w, contentTypeCSV, base+".csv", buf.Bytes())
	case "xlsx":
		writeGenerated(w, r, contentTypeXLSX, base+".xlsx", func() ([]byte, error) { return PerformanceXLSX(items) })
	case "png":
		writeGenerated(w, r, contentTypePNG, base+".png", func() ([]byte, error) { return PerformanceChartPNG(chartTitle(pq), items) })
	case "pdf":
		writeGenerated(w, r, contentTypePDF, base+".pdf", func() ([]byte, error) { return PerformancePDF(chartTitle(pq), items) })
	default:
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "format must be json, csv, xlsx, png or pdf"})
	}
}

func (h *Handler) StudentSummary(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
	q := r.URL.Query()
	sum, err := h.svc.StudentSummary(r.Context(), q.Get("batch"), q.Get("subject"), studentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	base := fileBase("summary", studentID, sum.Subject)
	switch format(r) {
	case "json":
		writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: sum})
	case "csv":
		var buf bytes.Buffer
		if err := WriteSummaryCSV(&buf, sum); err != nil {
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
			return
		}
		writeFile(w, contentTypeCSV, base+".csv", buf.Bytes())
	case "xlsx":
		writeGenerated(w, r, contentTypeXLSX, base+".xlsx", func() ([]byte, error) { return SummaryXLSX(sum) })
	default:
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "format must be json, csv or xlsx"})
	}
}

func (h *Handler) StudentResponses(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
	q := r.URL.Query()
	rows, err := h.svc.StudentResponses(r.Context(), studentID, q.Get("subject"), q.Get("subtopic"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: rows})
}

func format(r *http.Request) string {
	f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if f == "" {
		return "json"
	}
	return f
}

func chartTitle(q PerformanceQuery) string {
	parts := []string{"Batch " + q.BatchCode}
	if q.Subject != "" {
		parts = append(parts, q.Subject)
	}
	if q.Subtopic != "" {
		parts = append(parts, q.Subtopic)
	}
	return strings.Join(parts, " / ")
}

func fileBase(prefix string, parts ...string) string {
	out := prefix
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out += "_" + strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			default:
				return '_'
			}
		}, p)
	}
	return out
}

func writeGenerated(w http.ResponseWriter, r *http.Request, contentType, name string, build func() ([]byte, error)) {
	data, err := build()
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeFile(w, contentType, name, data)
}

func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
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
