package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ticketAudience = "quizportal-remedial"

// RemedialTicket carries a completed Main attempt's outcome to the remedial
// step, so the remedial set can only be derived from a real graded attempt.
type RemedialTicket struct {
	AttemptID  string   `json:"attempt_id"`
	StudentID  string   `json:"student_id"`
	Bank       string   `json:"bank"`
	Subject    string   `json:"subject"`
	SubtopicID string   `json:"subtopic_id"`
	WrongIDs   []string `json:"wrong_ids"`
}

type ticketClaims struct {
	RemedialTicket
	jwt.RegisteredClaims
}

type TicketSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTicketSigner(secret string, ttl time.Duration) *TicketSigner {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TicketSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TicketSigner) Issue(t RemedialTicket) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := ticketClaims{
		RemedialTicket: t,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   t.StudentID,
			Audience:  jwt.ClaimStrings{ticketAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign remedial ticket: %w", err)
	}
	return signed, exp, nil
}

func (s *TicketSigner) Parse(token string) (*RemedialTicket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidTicket
	}
	claims := &ticketClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ticketAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidTicket)
		}
		return nil, ErrInvalidTicket
	}
	if !parsed.Valid || claims.AttemptID == "" || claims.StudentID == "" {
		return nil, ErrInvalidTicket
	}
	t := claims.RemedialTicket
	return &t, nil
}
