package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

const RegisterSheet = "Register"

// Student is the verified identity carried by a session.
type Student struct {
	ID                string `json:"student_id"`
	Name              string `json:"student_name"`
	TuitionCode       string `json:"tuition_code"`
	Email             string `json:"student_email,omitempty"`
	ParentEmail       string `json:"parent_email,omitempty"`
	TeacherEmail      string `json:"teacher_email,omitempty"`
	ParentTelegramID  string `json:"parent_telegram_id,omitempty"`
	TeacherTelegramID string `json:"teacher_telegram_id,omitempty"`
}

// RegisterEntry is one register row including the stored password.
type RegisterEntry struct {
	Student
	Password string
}

type Register interface {
	Entries(ctx context.Context) ([]RegisterEntry, error)
}

// XLSXRegister reads the Register sheet of a workbook. The parsed rows are
// kept until the file's modification time changes.
type XLSXRegister struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	entries []RegisterEntry
}

func NewXLSXRegister(path string) *XLSXRegister {
	return &XLSXRegister{path: strings.TrimSpace(path)}
}

func (r *XLSXRegister) Entries(ctx context.Context) ([]RegisterEntry, error) {
	_ = ctx
	if r.path == "" {
		return nil, ErrRegisterUnavailable
	}
	st, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegisterUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries != nil && st.ModTime().Equal(r.modTime) {
		return r.entries, nil
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open register: %w", err)
	}
	defer f.Close()

	sheet := ""
	for _, name := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(name), RegisterSheet) {
			sheet = name
			break
		}
	}
	if sheet == "" {
		return nil, fmt.Errorf("%w: sheet %q not found", ErrRegisterUnavailable, RegisterSheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read register rows: %w", err)
	}
	entries := ParseRegister(rows)
	r.entries = entries
	r.modTime = st.ModTime()
	return entries, nil
}

// ParseRegister maps a header-first grid to register entries. Header names
// are matched case-insensitively ignoring underscores and spaces. Rows with
// no Student_ID are skipped.
func ParseRegister(rows [][]string) []RegisterEntry {
	if len(rows) == 0 {
		return nil
	}
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.TrimSpace(h)))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]RegisterEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := cell(row, "studentid")
		if id == "" {
			continue
		}
		out = append(out, RegisterEntry{
			Student: Student{
				ID:                id,
				Name:              cell(row, "studentname"),
				TuitionCode:       cell(row, "tuitioncode"),
				Email:             cell(row, "studentemail"),
				ParentEmail:       cell(row, "parentemail"),
				TeacherEmail:      cell(row, "teacheremail"),
				ParentTelegramID:  cell(row, "parenttelegramid"),
				TeacherTelegramID: cell(row, "teachertelegramid"),
			},
			Password: cell(row, "password"),
		})
	}
	return out
}

// StaticRegister serves a fixed entry list.
type StaticRegister []RegisterEntry

func (s StaticRegister) Entries(ctx context.Context) ([]RegisterEntry, error) {
	return s, nil
}
