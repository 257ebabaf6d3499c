package app

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"quizportal/internal/app/apiresp"
	"quizportal/internal/auth"

	"github.com/google/uuid"
)

const csrfCookieName = "quizportal_csrf"
const csrfHeaderName = "X-CSRF-Token"

type window struct {
	count int
	ends  time.Time
}

// Limiter is a fixed-window counter keyed by caller. Expired windows are
// swept at most once per window length.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	length    time.Duration
	now       func() time.Time
	windows   map[string]window
	nextSweep time.Time
}

func NewLimiter(limit int, length time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if length <= 0 {
		length = time.Minute
	}
	return &Limiter{
		limit:   limit,
		length:  length,
		now:     time.Now,
		windows: make(map[string]window),
	}
}

// Allow counts one hit for key. The second return is how long the caller
// should wait when the hit is refused.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if now.After(w.ends) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.length)
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.ends) {
		w = window{ends: now.Add(l.length)}
	}
	if w.count >= l.limit {
		l.windows[key] = w
		return false, w.ends.Sub(now)
	}
	w.count++
	l.windows[key] = w
	return true, 0
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// KeyFunc picks the caller identity a limit applies to.
type KeyFunc func(r *http.Request) string

// ClientIP keys by remote address without the port. middleware.RealIP has
// already replaced RemoteAddr when a proxy header was present.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// StudentOrIP keys by the session student so classmates behind one NAT do
// not share a budget. Anonymous requests fall back to the client IP.
func StudentOrIP(r *http.Request) string {
	if st, ok := auth.CurrentStudent(r.Context()); ok && st.ID != "" {
		return "student:" + st.TuitionCode + "/" + st.ID
	}
	return "ip:" + ClientIP(r)
}

// RateLimit applies l under scope. Routes sharing a scope share the budget.
func RateLimit(l *Limiter, scope string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Allow(scope + "|" + key(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFMiddleware enforces the double-submit token on cookie sessions.
func CSRFMiddleware(enforced bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforced || !needsCSRF(r) {
				next.ServeHTTP(w, r)
				return
			}
			c, err := r.Cookie(csrfCookieName)
			if err != nil || strings.TrimSpace(c.Value) == "" {
				apiresp.WriteError(w, r, http.StatusForbidden, "csrf token missing")
				return
			}
			got := strings.TrimSpace(r.Header.Get(csrfHeaderName))
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(c.Value)) != 1 {
				apiresp.WriteError(w, r, http.StatusForbidden, "csrf token invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func needsCSRF(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	// Bearer clients do not ride on ambient cookies.
	authz := strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization")))
	return !strings.HasPrefix(authz, "bearer ")
}

// IssueCSRFToken sets the double-submit cookie. Browser clients echo its value
// in the X-CSRF-Token header on state-changing requests.
func IssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int((12 * time.Hour).Seconds()),
	})
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"csrf_token": token})
}
