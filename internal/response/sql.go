package response

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLSink stores rows in the responses table. It works against both the
// pgx and sqlite drivers.
type SQLSink struct {
	db *sql.DB
}

func NewSQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db}
}

const insertResponseSQL = `
	INSERT INTO responses (
		attempt_id, submitted_at, student_id, student_name, batch_code, subject, subtopic,
		question_no, given_answer, correct_answer, awarded, marks, attempt_type
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (s *SQLSink) Append(ctx context.Context, row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if err := insertRow(ctx, s.db, row); err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

func (s *SQLSink) AppendAttempt(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := validateAll(rows); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		if err := insertRow(ctx, tx, row); err != nil {
			return fmt.Errorf("append attempt row %s: %w", row.QuestionNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

func insertRow(ctx context.Context, q queryable, row Row) error {
	submitted := row.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	_, err := q.ExecContext(ctx, insertResponseSQL,
		row.AttemptID,
		submitted.UTC().UnixMilli(),
		strings.TrimSpace(row.StudentID),
		row.StudentName,
		row.BatchCode,
		row.Subject,
		row.Subtopic,
		row.QuestionNo,
		row.Given,
		row.Correct,
		row.Awarded,
		row.Marks,
		string(row.AttemptType),
	)
	return err
}

// HasMainAttempt reports whether a Main row exists for the student and
// subtopic. An empty subject matches any subject.
func (s *SQLSink) HasMainAttempt(ctx context.Context, studentID, subject, subtopic string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1
		FROM responses
		WHERE student_id = $1
		  AND subtopic = $2
		  AND attempt_type = 'Main'
		  AND ($3 = '' OR subject = $3)
		LIMIT 1
	`, strings.TrimSpace(studentID), strings.TrimSpace(subtopic), strings.TrimSpace(subject)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check main attempt: %w", err)
	}
	return true, nil
}

func (s *SQLSink) Query(ctx context.Context, f Filter) ([]Row, error) {
	conds := make([]string, 0, 6)
	args := make([]any, 0, 6)
	add := func(col, val string) {
		val = strings.TrimSpace(val)
		if val == "" {
			return
		}
		args = append(args, val)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}
	add("batch_code", f.BatchCode)
	add("subject", f.Subject)
	add("subtopic", f.Subtopic)
	add("student_id", f.StudentID)
	add("attempt_type", string(f.AttemptType))
	add("attempt_id", f.AttemptID)

	q := `
		SELECT attempt_id, submitted_at, student_id, student_name, batch_code, subject, subtopic,
		       question_no, given_answer, correct_answer, awarded, marks, attempt_type
		FROM responses`
	if len(conds) > 0 {
		q += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	q += "\n\t\tORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var (
			r           Row
			submittedMS int64
			attemptType string
		)
		if err := rows.Scan(
			&r.AttemptID, &submittedMS, &r.StudentID, &r.StudentName, &r.BatchCode, &r.Subject, &r.Subtopic,
			&r.QuestionNo, &r.Given, &r.Correct, &r.Awarded, &r.Marks, &attemptType,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.SubmittedAt = time.UnixMilli(submittedMS).UTC()
		r.AttemptType = AttemptType(attemptType)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

// SQLLatch relies on the teacher_notifications primary key: only the insert
// that actually creates the row reports true.
type SQLLatch struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLLatch(db *sql.DB) *SQLLatch {
	return &SQLLatch{db: db, now: time.Now}
}

func (l *SQLLatch) MarkAndCheck(ctx context.Context, batch, subject, subtopic string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO teacher_notifications (batch_code, subject, subtopic, notified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_code, subject, subtopic) DO NOTHING
	`, strings.TrimSpace(batch), strings.TrimSpace(subject), strings.TrimSpace(subtopic), l.now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("mark teacher notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark teacher notified rows: %w", err)
	}
	return n == 1, nil
}
