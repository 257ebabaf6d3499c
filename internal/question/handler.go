package question

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"quizportal/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	catalog bankCatalog
}

type bankCatalog interface {
	Resolve(bank, subject string) (BankConfig, error)
	Banks() []BankConfig
	Load(ctx context.Context, key string) (*Bank, error)
	Invalidate(key string)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type BankSummary struct {
	Key           string     `json:"key"`
	Title         string     `json:"title"`
	Source        string     `json:"source"`
	Subtopics     []string   `json:"subtopics"`
	MainCount     int        `json:"main_count"`
	RemedialCount int        `json:"remedial_count"`
	Issues        []RowIssue `json:"issues,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func NewHandler(catalog bankCatalog) *Handler {
	return &Handler{catalog: catalog}
}

func summarize(cfg BankConfig, b *Bank, withIssues bool) BankSummary {
	out := BankSummary{
		Key:           cfg.Key,
		Title:         cfg.Title,
		Source:        cfg.Source,
		Subtopics:     b.Subtopics(),
		MainCount:     len(b.Main),
		RemedialCount: len(b.Remedial),
	}
	if withIssues {
		out.Issues = b.Issues
	}
	return out
}

// List reports every configured bank. A bank that fails to load is listed
// with its error instead of failing the whole response.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cfgs := h.catalog.Banks()
	out := make([]BankSummary, 0, len(cfgs))
	for _, cfg := range cfgs {
		b, err := h.catalog.Load(r.Context(), cfg.Key)
		if err != nil {
			out = append(out, BankSummary{Key: cfg.Key, Title: cfg.Title, Source: cfg.Source, Subtopics: []string{}, Error: "bank unavailable"})
			continue
		}
		out = append(out, summarize(cfg, b, false))
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func (h *Handler) Subtopics(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: b.Subtopics()})
}

// Reload drops the cached copy and rereads the source. The response includes
// excluded rows so authors can fix their sheet.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.catalog.Resolve(strings.TrimSpace(chi.URLParam(r, "bank")), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.catalog.Invalidate(cfg.Key)
	b, err := h.catalog.Load(r.Context(), cfg.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: summarize(cfg, b, true)})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Bank, bool) {
	cfg, err := h.catalog.Resolve(strings.TrimSpace(chi.URLParam(r, "bank")), "")
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	b, err := h.catalog.Load(r.Context(), cfg.Key)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return b, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownBank):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrMainSheetMissing):
		writeJSON(w, r, http.StatusUnprocessableEntity, apiResponse{OK: false, Error: err.Error()})
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
