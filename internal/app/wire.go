package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quizportal/internal/app/observability"
	"quizportal/internal/auth"
	"quizportal/internal/db"
	"quizportal/internal/logger"
	"quizportal/internal/notify"
	"quizportal/internal/question"
	"quizportal/internal/quiz"
	"quizportal/internal/report"
	"quizportal/internal/response"

	goredis "github.com/redis/go-redis/v9"
)

// App is the assembled HTTP surface plus the resources it owns.
type App struct {
	Handler http.Handler
	DB      *sql.DB
	Redis   *goredis.Client
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// Handlers groups the per-package HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth    *auth.Handler
	Quiz    *quiz.Handler
	Banks   *question.Handler
	Reports *report.Handler
}

func Build(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	out := &App{}

	banksFile, err := question.LoadRegistryFile(cfg.BanksFile)
	if err != nil {
		return nil, err
	}

	if cfg.ResponseSink == "sql" || usesSQLBank(banksFile) {
		driver, err := db.ParseDriver(cfg.DBDriver)
		if err != nil {
			return nil, err
		}
		conn, err := db.Open(ctx, db.Config{
			Driver:          driver,
			DSN:             cfg.DBDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		out.DB = conn
	}

	registry, err := question.NewRegistry(banksFile, out.DB, cfg.QuestionCache)
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	inner, err := buildSink(cfg, out.DB)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	sink := response.NewRetryingSink(inner, cfg.PersistAttempts, cfg.PersistBackoff, log)

	var latch response.Latch
	switch {
	case strings.TrimSpace(cfg.RedisAddr) != "":
		out.Redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := out.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		latch = response.NewRedisLatch(out.Redis, "", 0)
	case out.DB != nil:
		latch = response.NewSQLLatch(out.DB)
	default:
		latch = response.NewMemoryLatch()
	}

	dispatcherCfg := notify.DispatcherConfig{
		DefaultTeacherChat: cfg.TelegramTeacherChatID,
		Logger:             log,
	}
	if tg := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAPIURL); tg != nil {
		dispatcherCfg.Telegram = tg
	}
	if m := notify.NewSMTPMailer(notify.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}); m != nil {
		dispatcherCfg.Mailer = m
	}

	authSvc := auth.NewService(auth.NewXLSXRegister(cfg.RegisterPath), auth.ServiceConfig{
		Secret:     cfg.AuthSecret,
		SessionTTL: cfg.SessionTTL,
	})

	quizSvc := quiz.NewService(registry, sink, quiz.ServiceConfig{
		Latch:       latch,
		Notifier:    notify.NewDispatcher(dispatcherCfg),
		Tickets:     quiz.NewTicketSigner(cfg.AuthSecret, cfg.RemedialTicketTTL),
		Logger:      log,
		AllowRetake: cfg.AllowRetake,
	})

	handlers := Handlers{
		Auth:    auth.NewHandler(authSvc, cfg.DashboardKey),
		Quiz:    quiz.NewHandler(quizSvc),
		Banks:   question.NewHandler(registry),
		Reports: report.NewHandler(report.NewService(sink)),
	}
	out.Handler = NewRouter(cfg, handlers, observability.NewCollector(out.DB, log))

	log.Info("app assembled",
		"response_sink", cfg.ResponseSink,
		"banks", len(registry.Banks()),
		"redis", out.Redis != nil,
		"telegram", dispatcherCfg.Telegram != nil,
		"smtp", dispatcherCfg.Mailer != nil,
	)
	return out, nil
}

func buildSink(cfg Config, conn *sql.DB) (response.Sink, error) {
	switch cfg.ResponseSink {
	case "sql":
		return response.NewSQLSink(conn), nil
	case "xlsx":
		return response.NewXLSXSink(cfg.ResponseXLSXPath), nil
	case "memory":
		return response.NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unsupported response sink %q", cfg.ResponseSink)
	}
}

func usesSQLBank(f question.RegistryFile) bool {
	for _, b := range f.Banks {
		if strings.EqualFold(strings.TrimSpace(b.Source), question.SourceSQL) {
			return true
		}
	}
	return false
}
