package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	HTTPAddr string
	LogMode  string

	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	ResponseSink     string
	ResponseXLSXPath string
	PersistAttempts  int
	PersistBackoff   time.Duration

	BanksFile     string
	RegisterPath  string
	QuestionCache time.Duration

	AuthSecret          string
	SessionTTL          time.Duration
	RemedialTicketTTL   time.Duration
	AllowRetake         bool
	DashboardKey        string
	CSRFEnforced        bool
	AuthRateLimitPerMin   int
	SubmitRateLimitPerMin int
	CORSAllowedOrigins    []string

	RedisAddr string

	TelegramBotToken      string
	TelegramAPIURL        string
	TelegramTeacherChatID string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// LoadConfig reads .env (when present) and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig() Config {
	_ = godotenv.Load()

	smtpPort := 587
	if p := stringsToInt(os.Getenv("SMTP_PORT")); p > 0 {
		smtpPort = p
	}

	return Config{
		AppEnv:   envOrDefault("APP_ENV", "development"),
		HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),
		LogMode:  envOrDefault("LOG_MODE", "dev"),

		DBDriver:          envOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:             os.Getenv("DB_DSN"),
		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins: intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		ResponseSink:     strings.ToLower(envOrDefault("RESPONSE_SINK", "sql")),
		ResponseXLSXPath: envOrDefault("RESPONSE_XLSX_PATH", "data/responses.xlsx"),
		PersistAttempts:  intOrDefault("PERSIST_MAX_ATTEMPTS", 3),
		PersistBackoff:   time.Duration(intOrDefault("PERSIST_RETRY_BACKOFF_MS", 200)) * time.Millisecond,

		BanksFile:     envOrDefault("BANKS_FILE", "config/banks.yaml"),
		RegisterPath:  envOrDefault("REGISTER_PATH", "data/register.xlsx"),
		QuestionCache: time.Duration(intOrDefault("QUESTION_CACHE_SECONDS", 60)) * time.Second,

		AuthSecret:          envOrDefault("AUTH_SECRET", "quizportal-dev-secret"),
		SessionTTL:          time.Duration(intOrDefault("SESSION_TTL_MINUTES", 480)) * time.Minute,
		RemedialTicketTTL:   time.Duration(intOrDefault("REMEDIAL_TICKET_TTL_MINUTES", 120)) * time.Minute,
		AllowRetake:         boolOrDefault("ALLOW_RETAKE", false),
		DashboardKey:        os.Getenv("DASHBOARD_KEY"),
		CSRFEnforced:        boolOrDefault("CSRF_ENFORCED", false),
		AuthRateLimitPerMin:   intOrDefault("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		SubmitRateLimitPerMin: intOrDefault("SUBMIT_RATE_LIMIT_PER_MINUTE", 20),
		CORSAllowedOrigins:    listOrDefault("CORS_ALLOWED_ORIGINS", nil),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:        os.Getenv("TELEGRAM_API_URL"),
		TelegramTeacherChatID: os.Getenv("TELEGRAM_TEACHER_CHAT_ID"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: smtpPort,
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envOrDefault("SMTP_FROM", "noreply@quizportal.local"),
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func listOrDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
