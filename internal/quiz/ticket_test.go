package quiz

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestTicketRoundTrip(t *testing.T) {
	s := NewTicketSigner("secret", time.Hour)
	in := RemedialTicket{AttemptID: "a1", StudentID: "S1", Bank: "maths", Subject: "Maths", SubtopicID: "Quadratic_1", WrongIDs: []string{"Q2"}}

	token, exp, err := s.Issue(in)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if exp.Sub(time.Now()) > time.Hour+time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
	got, err := s.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(*got, in) {
		t.Fatalf("expected %+v, got %+v", in, *got)
	}
}

func TestTicketRejected(t *testing.T) {
	s := NewTicketSigner("secret", time.Minute)
	token, _, err := s.Issue(RemedialTicket{AttemptID: "a1", StudentID: "S1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		signer *TicketSigner
		token  string
	}{
		{name: "empty", signer: s, token: " "},
		{name: "garbage", signer: s, token: "not-a-token"},
		{name: "other secret", signer: NewTicketSigner("other", time.Minute), token: token},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.signer.Parse(tc.token); !errors.Is(err, ErrInvalidTicket) {
				t.Fatalf("expected ErrInvalidTicket, got %v", err)
			}
		})
	}

	late := NewTicketSigner("secret", time.Minute)
	late.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := late.Parse(token); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected expired ticket to be rejected, got %v", err)
	}
}
