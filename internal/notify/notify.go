package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quizportal/internal/logger"
)

var ErrNoRecipient = errors.New("no notification recipient")

// FirstSubmission is sent once per (batch, subject, subtopic) when the first
// student of a batch submits.
type FirstSubmission struct {
	BatchCode     string
	Subject       string
	Subtopic      string
	StudentID     string
	StudentName   string
	TeacherChatID string
	TeacherEmail  string
}

// ScoreNotice reports one graded attempt to the parent (and teacher by
// email). Report is an optional PDF attachment.
type ScoreNotice struct {
	StudentID     string
	StudentName   string
	BatchCode     string
	Subject       string
	Subtopic      string
	AttemptType   string
	Earned        int
	Total         int
	WrongCount    int
	ParentChatID  string
	TeacherChatID string
	ParentEmail   string
	TeacherEmail  string
	Report        []byte
	ReportName    string
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type Mailer interface {
	Send(ctx context.Context, msg Mail) error
}

// Dispatcher fans notifications out to Telegram and email. Either channel may
// be nil.
type Dispatcher struct {
	telegram           Messenger
	mailer             Mailer
	defaultTeacherChat string
	log                *logger.Logger
}

type DispatcherConfig struct {
	Telegram           Messenger
	Mailer             Mailer
	DefaultTeacherChat string
	Logger             *logger.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		telegram:           cfg.Telegram,
		mailer:             cfg.Mailer,
		defaultTeacherChat: strings.TrimSpace(cfg.DefaultTeacherChat),
		log:                log.With("component", "notify"),
	}
}

func (d *Dispatcher) TeacherFirstSubmission(ctx context.Context, n FirstSubmission) error {
	chat := strings.TrimSpace(n.TeacherChatID)
	if chat == "" {
		chat = d.defaultTeacherChat
	}
	text := FirstSubmissionText(n)

	var errs []error
	sent := false
	if d.telegram != nil && chat != "" {
		if err := d.telegram.SendMessage(ctx, chat, text); err != nil {
			errs = append(errs, err)
		} else {
			sent = true
		}
	}
	if d.mailer != nil && strings.TrimSpace(n.TeacherEmail) != "" {
		err := d.mailer.Send(ctx, Mail{
			To:      []string{n.TeacherEmail},
			Subject: fmt.Sprintf("First submission: %s %s", n.BatchCode, n.Subtopic),
			Body:    text,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			sent = true
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !sent {
		return ErrNoRecipient
	}
	d.log.Info("teacher notified", "batch", n.BatchCode, "subject", n.Subject, "subtopic", n.Subtopic)
	return nil
}

func (d *Dispatcher) AttemptScored(ctx context.Context, n ScoreNotice) error {
	text := ScoreText(n)

	var errs []error
	if d.telegram != nil && strings.TrimSpace(n.ParentChatID) != "" {
		if err := d.telegram.SendMessage(ctx, n.ParentChatID, text); err != nil {
			errs = append(errs, err)
		}
	}

	to := make([]string, 0, 2)
	for _, addr := range []string{n.ParentEmail, n.TeacherEmail} {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if d.mailer != nil && len(to) > 0 {
		msg := Mail{
			To:      to,
			Subject: fmt.Sprintf("%s quiz result: %s %s", n.AttemptType, n.StudentName, n.Subtopic),
			Body:    text,
		}
		if len(n.Report) > 0 {
			msg.Attachments = []Attachment{{Name: n.ReportName, ContentType: "application/pdf", Data: n.Report}}
		}
		if err := d.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func FirstSubmissionText(n FirstSubmission) string {
	name := n.StudentName
	if name == "" {
		name = n.StudentID
	}
	return fmt.Sprintf("Batch %s: first submission for %s / %s by %s (%s).",
		n.BatchCode, n.Subject, n.Subtopic, name, n.StudentID)
}

func ScoreText(n ScoreNotice) string {
	name := n.StudentName
	if name == "" {
		name = n.StudentID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s completed the %s quiz for %s / %s.\n", name, n.AttemptType, n.Subject, n.Subtopic)
	fmt.Fprintf(&b, "Score: %d/%d", n.Earned, n.Total)
	if n.Total > 0 {
		fmt.Fprintf(&b, " (%.0f%%)", float64(n.Earned)*100/float64(n.Total))
	}
	if n.WrongCount > 0 {
		fmt.Fprintf(&b, "\nQuestions to review: %d", n.WrongCount)
	}
	return b.String()
}
