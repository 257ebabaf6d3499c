package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizportal/internal/auth"
	"quizportal/internal/logger"
	"quizportal/internal/notify"
	"quizportal/internal/question"
	"quizportal/internal/report"
	"quizportal/internal/response"
	"quizportal/internal/shuffle"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrIdentityRequired  = errors.New("student identity required")
	ErrSubtopicNotFound  = errors.New("subtopic not found")
	ErrNoQuestions       = errors.New("no questions to grade")
	ErrDuplicateAttempt  = errors.New("main attempt already completed")
	ErrInvalidTicket     = errors.New("invalid remedial ticket")
	ErrTicketForbidden   = errors.New("remedial ticket belongs to another student")
	ErrNoRemedialContent = errors.New("no remedial content available")
	ErrRemedialSubmitted = errors.New("remedial quiz already submitted for this attempt")
)

type bankLoader interface {
	Resolve(bank, subject string) (question.BankConfig, error)
	Load(ctx context.Context, key string) (*question.Bank, error)
}

// Notifier delivers submission side messages. Failures never fail a
// submission.
type Notifier interface {
	TeacherFirstSubmission(ctx context.Context, n notify.FirstSubmission) error
	AttemptScored(ctx context.Context, n notify.ScoreNotice) error
}

type ServiceConfig struct {
	Latch       response.Latch
	Notifier    Notifier
	Tickets     *TicketSigner
	Logger      *logger.Logger
	AllowRetake bool
}

type Service struct {
	banks       bankLoader
	sink        response.Sink
	latch       response.Latch
	notifier    Notifier
	tickets     *TicketSigner
	log         *logger.Logger
	allowRetake bool

	now   func() time.Time
	newID func() string
}

func NewService(banks bankLoader, sink response.Sink, cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		banks:       banks,
		sink:        sink,
		latch:       cfg.Latch,
		notifier:    cfg.Notifier,
		tickets:     cfg.Tickets,
		log:         log.With("component", "quiz"),
		allowRetake: cfg.AllowRetake,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

type SubmitMainInput struct {
	Selector Selector
	Student  auth.Student
	Answers  AnswerSet
}

type SubmitRemedialInput struct {
	Ticket  string
	Student auth.Student
	Answers AnswerSet
}

func (s *Service) retakeAllowed(cfg question.BankConfig) bool {
	if cfg.AllowRetake != nil {
		return *cfg.AllowRetake
	}
	return s.allowRetake
}

func (s *Service) open(ctx context.Context, sel Selector) (question.BankConfig, *question.Bank, string, error) {
	if strings.TrimSpace(sel.SubtopicID) == "" {
		return question.BankConfig{}, nil, "", fmt.Errorf("%w: subtopic_id is required", ErrInvalidInput)
	}
	cfg, err := s.banks.Resolve(sel.Bank, sel.Subject)
	if err != nil {
		return question.BankConfig{}, nil, "", err
	}
	bank, err := s.banks.Load(ctx, cfg.Key)
	if err != nil {
		return question.BankConfig{}, nil, "", fmt.Errorf("load bank %s: %w", cfg.Key, err)
	}
	if len(bank.Issues) > 0 {
		s.log.Debug("bank has excluded rows", "bank", cfg.Key, "excluded", len(bank.Issues))
	}
	return cfg, bank, canonicalSubject(cfg), nil
}

// canonicalSubject names the subject rows are stored under. It comes from
// the resolved bank, never from the request, so every alias of a bank
// shares one attempt history and one teacher latch.
func canonicalSubject(cfg question.BankConfig) string {
	if t := strings.TrimSpace(cfg.Title); t != "" {
		return t
	}
	return cfg.Key
}

// remedialAttemptID derives the remedial attempt from its Main attempt, so
// a replayed ticket maps to rows that already exist.
func remedialAttemptID(mainAttemptID string) string {
	return mainAttemptID + "-remedial"
}

// MainQuiz returns the student's view of a subtopic's Main questions. The
// student may be nil (anonymous preview).
func (s *Service) MainQuiz(ctx context.Context, sel Selector, student *auth.Student) (*QuizView, error) {
	cfg, bank, subject, err := s.open(ctx, sel)
	if err != nil {
		return nil, err
	}
	subtopic := strings.TrimSpace(sel.SubtopicID)
	items := ItemsFromMain(bank.MainFor(subtopic))
	if len(items) == 0 {
		return nil, ErrSubtopicNotFound
	}

	studentID := ""
	if student != nil {
		studentID = student.ID
	}
	view := &QuizView{
		Bank:          cfg.Key,
		Subject:       subject,
		SubtopicID:    subtopic,
		AttemptType:   response.AttemptMain,
		Questions:     buildView(studentID, subtopic, items, shuffle.PurposeQuestions, shuffle.OptionsPurpose),
		TotalMarks:    totalMarks(items),
		RetakeAllowed: s.retakeAllowed(cfg),
	}
	if studentID != "" {
		done, err := s.sink.HasMainAttempt(ctx, studentID, subject, subtopic)
		if err != nil {
			s.log.Warn("main attempt lookup failed", "student_id", studentID, "subtopic", subtopic, "error", err)
		}
		view.AlreadyAttempted = done
	}
	return view, nil
}

func (s *Service) HasMainAttempt(ctx context.Context, sel Selector, student auth.Student) (bool, error) {
	if strings.TrimSpace(student.ID) == "" {
		return false, ErrIdentityRequired
	}
	_, _, subject, err := s.open(ctx, sel)
	if err != nil {
		return false, err
	}
	done, err := s.sink.HasMainAttempt(ctx, student.ID, subject, strings.TrimSpace(sel.SubtopicID))
	if err != nil {
		return false, fmt.Errorf("has main attempt: %w", err)
	}
	return done, nil
}

func (s *Service) SubmitMain(ctx context.Context, in SubmitMainInput) (*MainOutcome, error) {
	if strings.TrimSpace(in.Student.ID) == "" {
		return nil, ErrIdentityRequired
	}
	cfg, bank, subject, err := s.open(ctx, in.Selector)
	if err != nil {
		return nil, err
	}
	subtopic := strings.TrimSpace(in.Selector.SubtopicID)
	questions := bank.MainFor(subtopic)
	if len(questions) == 0 {
		return nil, ErrSubtopicNotFound
	}

	if !s.retakeAllowed(cfg) {
		done, err := s.sink.HasMainAttempt(ctx, in.Student.ID, subject, subtopic)
		switch {
		case err != nil:
			// the sink is unreachable; grading still proceeds and the
			// persistence status will report the outage
			s.log.Warn("duplicate attempt check failed", "student_id", in.Student.ID, "subtopic", subtopic, "error", err)
		case done:
			return nil, ErrDuplicateAttempt
		}
	}

	result, err := Grade(response.AttemptMain, ItemsFromMain(questions), in.Answers)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Student:    in.Student,
		Bank:       cfg,
		Subject:    subject,
		SubtopicID: subtopic,
		Kind:       response.AttemptMain,
		AttemptID:  s.newID(),
		Answers:    in.Answers,
		Result:     result,
	}
	sel := selectFromBank(bank, result.WrongIDs)
	sess.Remedial = &sel

	out := &MainOutcome{
		AttemptID:   sess.AttemptID,
		Result:      result,
		Persistence: s.persist(ctx, sess),
		Remedial: RemedialSummary{
			State:   sel.State,
			Message: sel.Message,
			Count:   len(sel.Questions),
		},
	}

	if sel.State == RemedialReady && s.tickets != nil {
		token, exp, err := s.tickets.Issue(RemedialTicket{
			AttemptID:  sess.AttemptID,
			StudentID:  in.Student.ID,
			Bank:       cfg.Key,
			Subject:    subject,
			SubtopicID: subtopic,
			WrongIDs:   result.WrongIDs,
		})
		if err != nil {
			s.log.Error("issue remedial ticket failed", "attempt_id", sess.AttemptID, "error", err)
		} else {
			out.Remedial.Ticket = token
			out.Remedial.ExpiresAt = &exp
		}
	}

	out.TeacherNotified = s.notifyTeacher(ctx, sess)
	s.notifyScore(ctx, sess)

	s.log.Info("main attempt graded",
		"attempt_id", sess.AttemptID,
		"student_id", in.Student.ID,
		"bank", cfg.Key,
		"subtopic", subtopic,
		"earned", result.Earned,
		"total", result.Total,
		"saved", out.Persistence.Saved,
	)
	return out, nil
}

func (s *Service) openTicket(ctx context.Context, token string, student auth.Student) (*RemedialTicket, question.BankConfig, *question.Bank, RemedialSelection, error) {
	var none RemedialSelection
	if strings.TrimSpace(student.ID) == "" {
		return nil, question.BankConfig{}, nil, none, ErrIdentityRequired
	}
	if s.tickets == nil {
		return nil, question.BankConfig{}, nil, none, ErrInvalidTicket
	}
	t, err := s.tickets.Parse(token)
	if err != nil {
		return nil, question.BankConfig{}, nil, none, err
	}
	if t.StudentID != student.ID {
		return nil, question.BankConfig{}, nil, none, ErrTicketForbidden
	}
	cfg, bank, _, err := s.open(ctx, Selector{Bank: t.Bank, Subject: t.Subject, SubtopicID: t.SubtopicID})
	if err != nil {
		return nil, question.BankConfig{}, nil, none, err
	}
	return t, cfg, bank, selectFromBank(bank, t.WrongIDs), nil
}

func (s *Service) RemedialQuiz(ctx context.Context, token string, student auth.Student) (*QuizView, error) {
	t, cfg, _, sel, err := s.openTicket(ctx, token, student)
	if err != nil {
		return nil, err
	}
	items := ItemsFromRemedial(sel.Questions)
	return &QuizView{
		Bank:        cfg.Key,
		Subject:     t.Subject,
		SubtopicID:  t.SubtopicID,
		AttemptType: response.AttemptRemedial,
		Questions:   buildView(student.ID, t.SubtopicID, items, shuffle.PurposeRemedialQuestions, shuffle.RemedialOptionsPurpose),
		TotalMarks:  totalMarks(items),
		Notice:      sel.Message,
	}, nil
}

func (s *Service) SubmitRemedial(ctx context.Context, in SubmitRemedialInput) (*RemedialOutcome, error) {
	t, cfg, _, sel, err := s.openTicket(ctx, in.Ticket, in.Student)
	if err != nil {
		return nil, err
	}
	if sel.State != RemedialReady {
		return nil, ErrNoRemedialContent
	}
	attemptID := remedialAttemptID(t.AttemptID)
	prior, err := s.sink.Query(ctx, response.Filter{
		StudentID:   in.Student.ID,
		Subtopic:    t.SubtopicID,
		AttemptType: response.AttemptRemedial,
		AttemptID:   attemptID,
	})
	switch {
	case err != nil:
		s.log.Warn("remedial replay check failed", "attempt_id", attemptID, "error", err)
	case len(prior) > 0:
		return nil, ErrRemedialSubmitted
	}

	result, err := Grade(response.AttemptRemedial, ItemsFromRemedial(sel.Questions), in.Answers)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Student:    in.Student,
		Bank:       cfg,
		Subject:    t.Subject,
		SubtopicID: t.SubtopicID,
		Kind:       response.AttemptRemedial,
		AttemptID:  attemptID,
		Answers:    in.Answers,
		Result:     result,
	}
	out := &RemedialOutcome{
		AttemptID:     sess.AttemptID,
		MainAttemptID: t.AttemptID,
		Result:        result,
		Persistence:   s.persist(ctx, sess),
	}
	s.notifyScore(ctx, sess)

	s.log.Info("remedial attempt graded",
		"attempt_id", sess.AttemptID,
		"main_attempt_id", t.AttemptID,
		"student_id", in.Student.ID,
		"earned", result.Earned,
		"total", result.Total,
		"saved", out.Persistence.Saved,
	)
	return out, nil
}

// persist writes the attempt synchronously. A failure is reported back in
// the outcome instead of failing the graded submission.
func (s *Service) persist(ctx context.Context, sess *Session) PersistStatus {
	rows := sess.Rows(s.now().UTC())
	if err := s.sink.AppendAttempt(ctx, rows); err != nil {
		s.log.Error("persist attempt failed",
			"attempt_id", sess.AttemptID,
			"student_id", sess.Student.ID,
			"attempt_type", string(sess.Kind),
			"rows", len(rows),
			"error", err,
		)
		return PersistStatus{Saved: false, Rows: len(rows), Error: "responses were not saved: " + err.Error()}
	}
	return PersistStatus{Saved: true, Rows: len(rows)}
}

func (s *Service) notifyTeacher(ctx context.Context, sess *Session) bool {
	batch := strings.TrimSpace(sess.Student.TuitionCode)
	if s.latch == nil || batch == "" {
		return false
	}
	first, err := s.latch.MarkAndCheck(ctx, batch, sess.Subject, sess.SubtopicID)
	if err != nil {
		s.log.Warn("teacher latch failed", "batch", batch, "subtopic", sess.SubtopicID, "error", err)
		return false
	}
	if !first || s.notifier == nil {
		return false
	}
	err = s.notifier.TeacherFirstSubmission(ctx, notify.FirstSubmission{
		BatchCode:     batch,
		Subject:       sess.Subject,
		Subtopic:      sess.SubtopicID,
		StudentID:     sess.Student.ID,
		StudentName:   sess.Student.Name,
		TeacherChatID: sess.Student.TeacherTelegramID,
		TeacherEmail:  sess.Student.TeacherEmail,
	})
	if err != nil {
		s.log.Warn("teacher notification failed", "batch", batch, "subtopic", sess.SubtopicID, "error", err)
		return false
	}
	return true
}

func (s *Service) notifyScore(ctx context.Context, sess *Session) {
	if s.notifier == nil || sess.Result == nil {
		return
	}
	n := notify.ScoreNotice{
		StudentID:     sess.Student.ID,
		StudentName:   sess.Student.Name,
		BatchCode:     sess.Student.TuitionCode,
		Subject:       sess.Subject,
		Subtopic:      sess.SubtopicID,
		AttemptType:   string(sess.Kind),
		Earned:        sess.Result.Earned,
		Total:         sess.Result.Total,
		WrongCount:    len(sess.Result.WrongIDs),
		ParentChatID:  sess.Student.ParentTelegramID,
		ParentEmail:   sess.Student.ParentEmail,
		TeacherEmail:  sess.Student.TeacherEmail,
		TeacherChatID: sess.Student.TeacherTelegramID,
	}
	if n.ParentEmail != "" || n.TeacherEmail != "" {
		pdf, err := report.RenderAttemptPDF(attemptSheet(sess))
		if err != nil {
			s.log.Warn("render attempt report failed", "attempt_id", sess.AttemptID, "error", err)
		} else {
			n.Report = pdf
			n.ReportName = fmt.Sprintf("%s_%s_%s.pdf", sess.Student.ID, sess.SubtopicID, strings.ToLower(string(sess.Kind)))
		}
	}
	if err := s.notifier.AttemptScored(ctx, n); err != nil {
		s.log.Warn("score notification failed", "attempt_id", sess.AttemptID, "error", err)
	}
}

func attemptSheet(sess *Session) report.AttemptSheet {
	lines := make([]report.AttemptLine, 0, len(sess.Result.Items))
	for _, it := range sess.Result.Items {
		lines = append(lines, report.AttemptLine{
			QuestionNo: it.ID,
			Text:       it.Text,
			Given:      it.Given,
			Correct:    it.Correct,
			Awarded:    it.Awarded,
			Marks:      it.Marks,
		})
	}
	return report.AttemptSheet{
		StudentID:   sess.Student.ID,
		StudentName: sess.Student.Name,
		BatchCode:   sess.Student.TuitionCode,
		Subject:     sess.Subject,
		Subtopic:    sess.SubtopicID,
		AttemptType: string(sess.Kind),
		Earned:      sess.Result.Earned,
		Total:       sess.Result.Total,
		Lines:       lines,
	}
}
