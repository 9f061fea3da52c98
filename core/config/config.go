package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// TransportRocketChat selects the Rocket.Chat REST transport.
	TransportRocketChat = "rocketchat"
	// TransportTelegram selects the Telegram transport backed by telebot.
	TransportTelegram = "telegram"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// ChatConfig selects the chat backend and carries Rocket.Chat credentials.
// Either User/Password or UserID/AuthToken must be provided for Rocket.Chat.
type ChatConfig struct {
	Transport string `yaml:"transport" envconfig:"CHAT_TRANSPORT"`
	ServerURL string `yaml:"server_url" envconfig:"ROCKETCHAT_URL"`
	User      string `yaml:"user" envconfig:"ROCKETCHAT_USER"`
	Password  string `yaml:"password" envconfig:"ROCKETCHAT_PASSWORD"`
	UserID    string `yaml:"user_id" envconfig:"ROCKETCHAT_USER_ID"`
	AuthToken string `yaml:"auth_token" envconfig:"ROCKETCHAT_AUTH_TOKEN"`
}

// TelegramConfig holds Telegram bot settings used by the telegram transport.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// BufferSize bounds the number of inbound messages kept per chat.
	BufferSize int `yaml:"buffer_size" envconfig:"TELEGRAM_BUFFER_SIZE"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// PollConfig controls the room polling cycle.
type PollConfig struct {
	IntervalMS     int   `yaml:"interval_ms" envconfig:"POLL_INTERVAL_MS"`
	FetchCount     int   `yaml:"fetch_count" envconfig:"POLL_FETCH_COUNT"`
	PacingMS       int   `yaml:"pacing_ms" envconfig:"POLL_PACING_MS"`
	MaxConcurrency int   `yaml:"max_concurrency" envconfig:"POLL_MAX_CONCURRENCY"`
	SkipBacklog    *bool `yaml:"skip_backlog" envconfig:"POLL_SKIP_BACKLOG"`
	// ShutdownTimeoutMS bounds how long Stop waits for the final cycle.
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms" envconfig:"POLL_SHUTDOWN_TIMEOUT_MS"`
}

// SessionConfig controls dialog session expiry.
type SessionConfig struct {
	TTLSeconds           int      `yaml:"ttl_seconds" envconfig:"SESSION_TTL_SECONDS"`
	SweepIntervalSeconds int      `yaml:"sweep_interval_seconds" envconfig:"SESSION_SWEEP_INTERVAL_SECONDS"`
	SlidingTTL           bool     `yaml:"sliding_ttl" envconfig:"SESSION_SLIDING_TTL"`
	CancelKeywords       []string `yaml:"cancel_keywords" envconfig:"SESSION_CANCEL_KEYWORDS"`
}

// DedupConfig bounds the processed message id set; 0 keeps every id.
type DedupConfig struct {
	MaxEntries int `yaml:"max_entries" envconfig:"DEDUP_MAX_ENTRIES"`
}

// RateLimitConfig holds settings for per-sender rate limiting; 0 disables it.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// SenderConfig tunes the outbound message queue.
type SenderConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

// DatabaseConfig holds the optional journal database settings.
// The journal is kept in memory when Host is empty.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a journal database is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// HTTPConfig configures the admin HTTP listener; empty Listen disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// Config aggregates the bot configuration.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Poll      PollConfig      `yaml:"poll"`
	Session   SessionConfig   `yaml:"session"`
	Dedup     DedupConfig     `yaml:"dedup"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sender    SenderConfig    `yaml:"sender"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	transport := strings.ToLower(strings.TrimSpace(cfg.Chat.Transport))
	if transport == "" {
		transport = TransportRocketChat
	}
	switch transport {
	case TransportRocketChat:
		if strings.TrimSpace(cfg.Chat.ServerURL) == "" {
			return fmt.Errorf("chat.server_url is required for the rocketchat transport")
		}
		hasPassword := cfg.Chat.User != "" && cfg.Chat.Password != ""
		hasToken := cfg.Chat.UserID != "" && cfg.Chat.AuthToken != ""
		if !hasPassword && !hasToken {
			return fmt.Errorf("chat credentials are required: user/password or user_id/auth_token")
		}
		cfg.Chat.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.Chat.ServerURL), "/")
	case TransportTelegram:
		if err := normalizeTelegram(cfg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid chat.transport %q; allowed: rocketchat, telegram", cfg.Chat.Transport)
	}
	cfg.Chat.Transport = transport

	if cfg.Poll.IntervalMS <= 0 {
		cfg.Poll.IntervalMS = 3000
	}
	if cfg.Poll.FetchCount <= 0 {
		cfg.Poll.FetchCount = 10
	}
	if cfg.Poll.PacingMS < 0 {
		return fmt.Errorf("poll.pacing_ms must be >= 0")
	}
	if cfg.Poll.PacingMS == 0 {
		cfg.Poll.PacingMS = 100
	}
	if cfg.Poll.MaxConcurrency <= 0 {
		cfg.Poll.MaxConcurrency = 8
	}
	if cfg.Poll.SkipBacklog == nil {
		skip := true
		cfg.Poll.SkipBacklog = &skip
	}
	if cfg.Poll.ShutdownTimeoutMS <= 0 {
		cfg.Poll.ShutdownTimeoutMS = 10000
	}

	if cfg.Session.TTLSeconds <= 0 {
		cfg.Session.TTLSeconds = 300
	}
	if cfg.Session.SweepIntervalSeconds <= 0 {
		cfg.Session.SweepIntervalSeconds = 60
	}
	keywords := cfg.Session.CancelKeywords[:0]
	for _, kw := range cfg.Session.CancelKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		keywords = []string{"cancel", "отмена"}
	}
	cfg.Session.CancelKeywords = keywords

	if cfg.Dedup.MaxEntries < 0 {
		return fmt.Errorf("dedup.max_entries must be >= 0")
	}
	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	if cfg.Database.Enabled() {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 4
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = "migrations"
		}
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	if cfg.Telegram.BufferSize <= 0 {
		cfg.Telegram.BufferSize = 50
	}
	return nil
}

// PollInterval returns the outer poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// PollPacing returns the per-room pacing delay.
func (c *Config) PollPacing() time.Duration {
	return time.Duration(c.Poll.PacingMS) * time.Millisecond
}

// SessionTTL returns the maximum session age.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

// SweepInterval returns the reaper period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSeconds) * time.Second
}
