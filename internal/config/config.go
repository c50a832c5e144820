package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type AdviceProvider string

const (
	ProviderKyra   AdviceProvider = "kyra"
	ProviderOpenAI AdviceProvider = "openai"
	ProviderYandex AdviceProvider = "yandex"
)

type StorageBackend string

const (
	BackendCSV    StorageBackend = "csv"
	BackendSQLite StorageBackend = "sqlite"
)

type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8501"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Roles
	AdminMarker        string   `env:"ADMIN_MARKER" envDefault:"college"`
	AdminEmails        []string `env:"ADMIN_EMAILS" envSeparator:","`
	AdminAllowlistPath string   `env:"ADMIN_ALLOWLIST_PATH" envDefault:"data/admins.json"`

	// Advice backend
	AdviceProvider  AdviceProvider `env:"ADVICE_PROVIDER" envDefault:"kyra"`
	KyraAPIURL      string         `env:"KYRA_API_URL" envDefault:"http://kyra.kyras.in:8000/student-query"`
	AdviceTimeout   time.Duration  `env:"ADVICE_TIMEOUT" envDefault:"20s"`
	AdviceRetries   int            `env:"ADVICE_RETRIES" envDefault:"2"`
	AdviceRetryWait time.Duration  `env:"ADVICE_RETRY_WAIT" envDefault:"500ms"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Storage
	StorageBackend     StorageBackend `env:"STORAGE_BACKEND" envDefault:"csv"`
	QueriesFilePath    string         `env:"QUERIES_FILE_PATH" envDefault:"queries.csv"`
	ProjectsFilePath   string         `env:"PROJECTS_FILE_PATH" envDefault:"projects.csv"`
	SQLitePath         string         `env:"SQLITE_PATH" envDefault:"data/kyra.db"`
	PendingUploadsPath string         `env:"PENDING_UPLOADS_PATH" envDefault:"data/pending_uploads.json"`
	PendingUploadTTL   time.Duration  `env:"PENDING_UPLOAD_TTL" envDefault:"1h"`
	ChatLogMaxEntries  int            `env:"CHAT_LOG_MAX_ENTRIES" envDefault:"50"`
	ChatLogMaxSessions int            `env:"CHAT_LOG_MAX_SESSIONS" envDefault:"1000"`

	// Digest and notifications
	DigestCron          string `env:"DIGEST_CRON" envDefault:"0 21 * * *"`
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AdviceProvider {
	case ProviderKyra, ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("unknown advice provider: %s", c.AdviceProvider)
	}
	switch c.StorageBackend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	if c.AdviceRetries < 0 {
		return fmt.Errorf("ADVICE_RETRIES must be >= 0, got %d", c.AdviceRetries)
	}
	return nil
}
