package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

func testRegister(t *testing.T) StaticRegister {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return StaticRegister{
		{Student: Student{ID: "S001", Name: "Asha", TuitionCode: "T01"}, Password: "pw1"},
		{Student: Student{ID: "S002", Name: "Ravi", TuitionCode: "T01"}, Password: string(hash)},
	}
}

func TestVerify(t *testing.T) {
	svc := NewService(testRegister(t), ServiceConfig{Secret: "k"})

	tests := []struct {
		name    string
		in      VerifyInput
		wantID  string
		wantErr error
	}{
		{name: "plain password", in: VerifyInput{TuitionCode: "T01", StudentID: "S001", Password: "pw1"}, wantID: "S001"},
		{name: "trimmed fields", in: VerifyInput{TuitionCode: " T01 ", StudentID: " S001", Password: "pw1 "}, wantID: "S001"},
		{name: "bcrypt password", in: VerifyInput{TuitionCode: "T01", StudentID: "S002", Password: "s3cret"}, wantID: "S002"},
		{name: "wrong password", in: VerifyInput{TuitionCode: "T01", StudentID: "S001", Password: "nope"}, wantErr: ErrInvalidCredentials},
		{name: "wrong tuition code", in: VerifyInput{TuitionCode: "T02", StudentID: "S001", Password: "pw1"}, wantErr: ErrInvalidCredentials},
		{name: "unknown student", in: VerifyInput{TuitionCode: "T01", StudentID: "S999", Password: "pw1"}, wantErr: ErrInvalidCredentials},
		{name: "empty", in: VerifyInput{}, wantErr: ErrInvalidCredentials},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, err := svc.Verify(context.Background(), tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if st.ID != tc.wantID {
				t.Fatalf("expected %s, got %s", tc.wantID, st.ID)
			}
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	svc := NewService(testRegister(t), ServiceConfig{Secret: "k", SessionTTL: time.Hour})
	token, exp, err := svc.CreateSession(Student{ID: "S001", Name: "Asha", TuitionCode: "T01"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}
	st, err := svc.GetSessionStudent(context.Background(), token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if st.ID != "S001" || st.TuitionCode != "T01" {
		t.Fatalf("unexpected student %+v", st)
	}

	other := NewService(nil, ServiceConfig{Secret: "other"})
	if _, err := other.GetSessionStudent(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized with wrong secret, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.GetSessionStudent(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized after expiry, got %v", err)
	}
}

type failingRegister struct{}

func (failingRegister) Entries(ctx context.Context) ([]RegisterEntry, error) {
	return nil, ErrRegisterUnavailable
}

func TestSessionTokenCarriesIdentityOnly(t *testing.T) {
	full := Student{
		ID:                "S001",
		Name:              "Asha",
		TuitionCode:       "T01",
		ParentEmail:       "parent@example.com",
		TeacherEmail:      "teacher@example.com",
		ParentTelegramID:  "@parent_chat",
		TeacherTelegramID: "@teacher_chat",
	}
	reg := StaticRegister{{Student: full, Password: "pw1"}}
	svc := NewService(reg, ServiceConfig{Secret: "k"})

	token, _, err := svc.CreateSession(full)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	for _, key := range []string{"student", "parent_email", "teacher_email", "parent_telegram_id", "teacher_telegram_id"} {
		if _, ok := payload[key]; ok {
			t.Fatalf("payload should not carry %q: %s", key, raw)
		}
	}
	for _, secret := range []string{"parent@example.com", "teacher@example.com", "@parent_chat", "@teacher_chat"} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("payload leaks %q: %s", secret, raw)
		}
	}
	if payload["sub"] != "S001" || payload["tuition_code"] != "T01" || payload["name"] != "Asha" {
		t.Fatalf("unexpected identity claims: %s", raw)
	}

	st, err := svc.GetSessionStudent(context.Background(), token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if st.ParentEmail != full.ParentEmail || st.TeacherTelegramID != full.TeacherTelegramID {
		t.Fatalf("expected contacts from register, got %+v", st)
	}

	gone := NewService(StaticRegister{}, ServiceConfig{Secret: "k"})
	if _, err := gone.GetSessionStudent(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized once removed from register, got %v", err)
	}

	down := NewService(failingRegister{}, ServiceConfig{Secret: "k"})
	st, err = down.GetSessionStudent(context.Background(), token)
	if err != nil {
		t.Fatalf("expected identity fallback, got %v", err)
	}
	if st.ID != "S001" || st.TuitionCode != "T01" || st.ParentEmail != "" {
		t.Fatalf("unexpected fallback student %+v", st)
	}
}

func TestParseRegister(t *testing.T) {
	rows := [][]string{
		{"Tuition_Code", "Student_ID", "Password", "Student_Name", "Parent_Email", "Teacher_Telegram_ID"},
		{"T01", "S001", "pw", "Asha", "p@example.com", "12345"},
		{"T01", "", "pw", "Blank"},
		{"T02", "S002", "pw2"},
	}
	got := ParseRegister(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ParentEmail != "p@example.com" || got[0].TeacherTelegramID != "12345" || got[0].Name != "Asha" {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[1].ID != "S002" || got[1].Name != "" {
		t.Fatalf("unexpected short row entry %+v", got[1])
	}
}

func TestXLSXRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	f := excelize.NewFile()
	if _, err := f.NewSheet(RegisterSheet); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	rows := [][]interface{}{
		{"Tuition_Code", "Student_ID", "Password", "Student_Name"},
		{"T01", "S001", "pw1", "Asha"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(RegisterSheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = f.Close()

	svc := NewService(NewXLSXRegister(path), ServiceConfig{Secret: "k"})
	st, err := svc.Verify(context.Background(), VerifyInput{TuitionCode: "T01", StudentID: "S001", Password: "pw1"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if st.Name != "Asha" {
		t.Fatalf("expected Asha, got %q", st.Name)
	}

	missing := NewService(NewXLSXRegister(filepath.Join(t.TempDir(), "none.xlsx")), ServiceConfig{Secret: "k"})
	if _, err := missing.Verify(context.Background(), VerifyInput{TuitionCode: "T01", StudentID: "S001", Password: "pw1"}); !errors.Is(err, ErrRegisterUnavailable) {
		t.Fatalf("expected register unavailable, got %v", err)
	}
}
