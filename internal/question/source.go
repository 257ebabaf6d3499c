package question

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Source loads one complete bank (Main and Remedial collections).
type Source interface {
	Load(ctx context.Context) (*Bank, error)
}

func buildBank(key string, mainRows, remedialRows [][]string) *Bank {
	b := &Bank{Key: key, LoadedAt: time.Now().UTC()}

	if len(mainRows) > 0 {
		var issues []RowIssue
		b.Main, issues = ParseMain(mainRows[0], mainRows[1:])
		b.Issues = append(b.Issues, issues...)
	}
	if len(remedialRows) > 0 {
		items, issues, linked := ParseRemedial(remedialRows[0], remedialRows[1:])
		b.Remedial = items
		b.RemedialLinked = linked
		b.Issues = append(b.Issues, issues...)
	}
	return b
}

type XLSXSource struct {
	key  string
	path string
}

func NewXLSXSource(key, path string) *XLSXSource {
	return &XLSXSource{key: key, path: strings.TrimSpace(path)}
}

func (s *XLSXSource) Load(ctx context.Context) (*Bank, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, fmt.Errorf("bank %s: %w", s.key, ErrSourceUnconfigured)
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	mainSheet := findSheet(f.GetSheetList(), SheetMain)
	if mainSheet == "" {
		return nil, fmt.Errorf("bank %s: %w", s.key, ErrMainSheetMissing)
	}
	mainRows, err := f.GetRows(mainSheet)
	if err != nil {
		return nil, fmt.Errorf("read main sheet: %w", err)
	}

	var remedialRows [][]string
	if remSheet := findSheet(f.GetSheetList(), SheetRemedial); remSheet != "" {
		remedialRows, err = f.GetRows(remSheet)
		if err != nil {
			return nil, fmt.Errorf("read remedial sheet: %w", err)
		}
	}

	return buildBank(s.key, mainRows, remedialRows), nil
}

func findSheet(sheets []string, name string) string {
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s
		}
	}
	return ""
}

// SQLSource reads a bank from the main_questions/remedial_questions tables.
type SQLSource struct {
	db  *sql.DB
	key string
}

func NewSQLSource(db *sql.DB, key string) *SQLSource {
	return &SQLSource{db: db, key: key}
}

var (
	mainColumns     = []string{"QuestionID", "SubtopicID", "QuestionText", "Option_A", "Option_B", "Option_C", "Option_D", "CorrectOption", "ImageURL", "Marks"}
	remedialColumns = []string{"RemedialQuestionID", "MainQuestionID", "QuestionText", "Option_A", "Option_B", "Option_C", "Option_D", "CorrectOption", "ImageURL", "Hint", "Marks"}
)

func (s *SQLSource) Load(ctx context.Context) (*Bank, error) {
	if s.db == nil {
		return nil, fmt.Errorf("bank %s: %w", s.key, ErrSourceUnconfigured)
	}

	mainRows, err := s.query(ctx, mainColumns, `
		SELECT question_id, subtopic_id, question_text, option_a, option_b, option_c, option_d,
		       correct_option, image_url, marks
		FROM main_questions
		WHERE bank = $1
		ORDER BY seq_no, question_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load main questions: %w", err)
	}

	remedialRows, err := s.query(ctx, remedialColumns, `
		SELECT remedial_question_id, main_question_id, question_text, option_a, option_b, option_c, option_d,
		       correct_option, image_url, hint, marks
		FROM remedial_questions
		WHERE bank = $1
		ORDER BY seq_no, remedial_question_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load remedial questions: %w", err)
	}

	return buildBank(s.key, mainRows, remedialRows), nil
}

// query returns the rows as a header-first string grid so both sources share
// the same parsing and validation.
func (s *SQLSource) query(ctx context.Context, header []string, q string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, q, s.key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := [][]string{header}
	for rows.Next() {
		rec := make([]string, len(header))
		dest := make([]any, len(header))
		for i := range rec {
			dest[i] = &rec[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
