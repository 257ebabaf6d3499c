package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"quizportal/internal/app/apiresp"
)

type contextKey string

const studentContextKey contextKey = "auth_student"

const (
	sessionCookieName  = "quizportal_session"
	dashboardKeyHeader = "X-Dashboard-Key"
)

type Handler struct {
	svc          *Service
	dashboardKey string
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type verifyRequest struct {
	TuitionCode string `json:"tuition_code"`
	StudentID   string `json:"student_id"`
	Password    string `json:"password"`
}

type verifyResponse struct {
	Student   *Student `json:"student"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
}

func NewHandler(svc *Service, dashboardKey string) *Handler {
	return &Handler{svc: svc, dashboardKey: strings.TrimSpace(dashboardKey)}
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	st, err := h.svc.Verify(r.Context(), VerifyInput{
		TuitionCode: req.TuitionCode,
		StudentID:   req.StudentID,
		Password:    req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "Invalid tuition code, student ID or password."})
		case errors.Is(err, ErrRegisterUnavailable):
			writeJSON(w, r, http.StatusServiceUnavailable, apiResponse{OK: false, Error: "student register unavailable"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		}
		return
	}

	token, expiresAt, err := h.svc.CreateSession(*st)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: verifyResponse{
		Student:   st,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	}})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"status": "logged_out"}})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	st, ok := CurrentStudent(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: st})
}

func (h *Handler) RequireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := h.svc.GetSessionStudent(r.Context(), readSessionToken(r))
		if err != nil {
			writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithStudent(r.Context(), st)))
	})
}

// OptionalStudent attaches the session student when one is present and lets
// anonymous requests through.
func (h *Handler) OptionalStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st, err := h.svc.GetSessionStudent(r.Context(), readSessionToken(r)); err == nil {
			r = r.WithContext(ContextWithStudent(r.Context(), st))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireDashboardKey guards teacher routes. It is a no-op when no key is
// configured.
func (h *Handler) RequireDashboardKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.dashboardKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimSpace(r.Header.Get(dashboardKeyHeader))
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.dashboardKey)) != 1 {
			writeJSON(w, r, http.StatusForbidden, apiResponse{OK: false, Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentStudent(ctx context.Context) (*Student, bool) {
	v := ctx.Value(studentContextKey)
	if v == nil {
		return nil, false
	}
	st, ok := v.(*Student)
	return st, ok && st != nil
}

// ContextWithStudent injects an authenticated student into context.
// Useful for tests and internal handlers.
func ContextWithStudent(ctx context.Context, st *Student) context.Context {
	return context.WithValue(ctx, studentContextKey, st)
}

func readSessionToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
