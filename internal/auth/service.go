package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRegisterUnavailable = errors.New("student register unavailable")
)

const sessionAudience = "quizportal-session"

type Service struct {
	register   Register
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

type ServiceConfig struct {
	Secret     string
	SessionTTL time.Duration
}

type VerifyInput struct {
	TuitionCode string
	StudentID   string
	Password    string
}

// sessionClaims carries only the identity. Contact details stay in the
// register and are looked up per request.
type sessionClaims struct {
	Name        string `json:"name,omitempty"`
	TuitionCode string `json:"tuition_code"`
	jwt.RegisteredClaims
}

func NewService(register Register, cfg ServiceConfig) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{
		register:   register,
		secret:     []byte(cfg.Secret),
		sessionTTL: ttl,
		now:        time.Now,
	}
}

// Verify checks a student against the register. The tuition code and student
// ID must match after trimming; the password is compared in constant time or
// against a bcrypt hash when the register stores one.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*Student, error) {
	code := strings.TrimSpace(in.TuitionCode)
	id := strings.TrimSpace(in.StudentID)
	if code == "" || id == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	entries, err := s.register.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load register: %w", err)
	}
	for _, e := range entries {
		if e.TuitionCode != code || e.ID != id {
			continue
		}
		if !passwordMatches(e.Password, strings.TrimSpace(in.Password)) {
			return nil, ErrInvalidCredentials
		}
		st := e.Student
		return &st, nil
	}
	return nil, ErrInvalidCredentials
}

func (s *Service) CreateSession(st Student) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.sessionTTL)
	claims := sessionClaims{
		Name:        st.Name,
		TuitionCode: st.TuitionCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   st.ID,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

// GetSessionStudent validates the token and resolves the student against the
// register. A student no longer in the register is unauthorized; when the
// register cannot be read the identity from the token is returned without
// contact details.
func (s *Service) GetSessionStudent(ctx context.Context, token string) (*Student, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(sessionAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	identity := Student{ID: claims.Subject, Name: claims.Name, TuitionCode: claims.TuitionCode}
	if s.register == nil {
		return &identity, nil
	}

	entries, err := s.register.Entries(ctx)
	if err != nil {
		return &identity, nil
	}
	for _, e := range entries {
		if e.ID == identity.ID && e.TuitionCode == identity.TuitionCode {
			st := e.Student
			return &st, nil
		}
	}
	return nil, ErrUnauthorized
}

func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return secureEqual(stored, given)
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func secureEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
