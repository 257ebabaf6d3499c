package response

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	internaldb "quizportal/internal/db"
)

func openTestDB(t *testing.T) *SQLSink {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := internaldb.Open(context.Background(), internaldb.Config{
		Driver: internaldb.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewSQLSink(conn)
}

func sampleRows(attemptID, student string, kind AttemptType, outcomes map[string]bool) []Row {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		r := Row{
			SubmittedAt: now,
			AttemptID:   attemptID,
			StudentID:   student,
			StudentName: "Student " + student,
			BatchCode:   "B1",
			Subject:     "Maths",
			Subtopic:    "Quadratic_1",
			QuestionNo:  id,
			Correct:     "4",
			Given:       "5",
			Marks:       1,
			AttemptType: kind,
		}
		if outcomes[id] {
			r.Given = "4"
			r.Awarded = 1
		}
		out = append(out, r)
	}
	return out
}

func TestSQLSinkAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	sink := openTestDB(t)

	rows := sampleRows("a1", "S1", AttemptMain, map[string]bool{"Q1": true, "Q2": false, "Q3": true})
	if err := sink.AppendAttempt(ctx, rows); err != nil {
		t.Fatalf("append attempt: %v", err)
	}
	other := sampleRows("a2", "S2", AttemptMain, map[string]bool{"Q1": false})
	other[0].BatchCode = "B2"
	if err := sink.Append(ctx, other[0]); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := sink.Query(ctx, Filter{BatchCode: "B1", Subject: "Maths"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows for batch B1, got %d", len(got))
	}
	if got[0].QuestionNo != "Q1" || !got[0].IsCorrect() || got[1].IsCorrect() {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if !got[0].SubmittedAt.Equal(rows[0].SubmittedAt) {
		t.Fatalf("expected submitted_at round trip, got %v", got[0].SubmittedAt)
	}

	byAttempt, err := sink.Query(ctx, Filter{AttemptID: "a2"})
	if err != nil {
		t.Fatalf("query by attempt: %v", err)
	}
	if len(byAttempt) != 1 || byAttempt[0].StudentID != "S2" {
		t.Fatalf("expected the single a2 row, got %+v", byAttempt)
	}

	all, err := sink.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 rows total, got %d", len(all))
	}
}

func TestSQLSinkAppendAttemptRejectsInvalidRows(t *testing.T) {
	ctx := context.Background()
	sink := openTestDB(t)

	rows := sampleRows("a1", "S1", AttemptMain, map[string]bool{"Q1": true, "Q2": true})
	rows[1].Awarded = 5 // violates awarded <= marks
	err := sink.AppendAttempt(ctx, rows)
	if !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
	got, err := sink.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", len(got))
	}
}

func TestSQLSinkHasMainAttempt(t *testing.T) {
	ctx := context.Background()
	sink := openTestDB(t)

	if err := sink.AppendAttempt(ctx, sampleRows("r1", "S1", AttemptRemedial, map[string]bool{"R1": true})); err != nil {
		t.Fatalf("append remedial: %v", err)
	}
	done, err := sink.HasMainAttempt(ctx, "S1", "Maths", "Quadratic_1")
	if err != nil {
		t.Fatalf("has main attempt: %v", err)
	}
	if done {
		t.Fatalf("remedial rows must not count as a main attempt")
	}

	if err := sink.AppendAttempt(ctx, sampleRows("m1", "S1", AttemptMain, map[string]bool{"Q1": true})); err != nil {
		t.Fatalf("append main: %v", err)
	}
	tests := []struct {
		student, subject, subtopic string
		want                       bool
	}{
		{"S1", "Maths", "Quadratic_1", true},
		{"S1", "", "Quadratic_1", true},
		{" S1 ", "Maths", "Quadratic_1", true},
		{"S1", "Science", "Quadratic_1", false},
		{"S1", "Maths", "Quadratic_2", false},
		{"S2", "Maths", "Quadratic_1", false},
	}
	for _, tc := range tests {
		got, err := sink.HasMainAttempt(ctx, tc.student, tc.subject, tc.subtopic)
		if err != nil {
			t.Fatalf("has main attempt: %v", err)
		}
		if got != tc.want {
			t.Fatalf("HasMainAttempt(%q,%q,%q): expected %v, got %v", tc.student, tc.subject, tc.subtopic, tc.want, got)
		}
	}
}

func TestSQLLatchTrueExactlyOnce(t *testing.T) {
	ctx := context.Background()
	sink := openTestDB(t)
	latch := NewSQLLatch(sink.db)

	var trues atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := latch.MarkAndCheck(ctx, "B1", "Maths", "Quadratic_1")
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				trues.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := trues.Load(); n != 1 {
		t.Fatalf("expected exactly one true, got %d", n)
	}

	ok, err := latch.MarkAndCheck(ctx, "B1", "Maths", "Quadratic_2")
	if err != nil || !ok {
		t.Fatalf("expected distinct triple to latch independently, got %v %v", ok, err)
	}
}
