package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DefaultCron          = "0 8 * * *"
	DefaultSite          = "https://techcrunch.com"
	DefaultSessionID     = "10"
	DefaultModel         = "gpt-4o-mini"
	DefaultTelegramAPI   = "https://api.telegram.org/bot%s/%s"
	DefaultServerAddress = ":10001"
)

// Config holds all configuration for headliner
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains process-wide settings
type GeneralConfig struct {
	Timezone string `mapstructure:"timezone"` // empty means the process local zone
}

// Location resolves the configured timezone.
func (g GeneralConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(g.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(g.Timezone)
}

// ServerConfig contains the interactive HTTP front-end settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig selects and configures the language model provider
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, anthropic
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", l.Provider)
	}
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if l.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}
	return nil
}

// BrowserConfig controls the chromedp browser used by the agent tools
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	MaxChars          int           `mapstructure:"max_chars"`
}

// TelegramConfig holds the notifier credentials. Missing values disable delivery
// without failing startup.
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	ChatID      string        `mapstructure:"chat_id"`
	APIEndpoint string        `mapstructure:"api_endpoint"`
	ParseMode   string        `mapstructure:"parse_mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Configured reports whether both credentials are present.
func (t TelegramConfig) Configured() bool {
	return strings.TrimSpace(t.Token) != "" && strings.TrimSpace(t.ChatID) != ""
}

// AgentConfig bounds the agent loop
type AgentConfig struct {
	MaxSteps     int    `mapstructure:"max_steps"`
	SessionID    string `mapstructure:"session_id"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ScheduleConfig describes the daily headline job
type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Cron         string        `mapstructure:"cron"`
	Site         string        `mapstructure:"site"`
	Headlines    int           `mapstructure:"headlines"`
	Language     string        `mapstructure:"language"`
	Prompt       string        `mapstructure:"prompt"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SessionID    string        `mapstructure:"session_id"`
}

// QueueConfig sizes the run queue
type QueueConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// TelemetryConfig toggles the prometheus endpoint
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// Enabled reports whether redis should be used at all.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether run history should be persisted.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string from the discrete fields unless url is set.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// Normalize applies defaults for values viper could not default (zero durations, blanks).
func (c *Config) Normalize() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 5 * time.Minute
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" && c.LLM.Provider == "openai" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 2 * time.Minute
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Browser.MaxChars <= 0 {
		c.Browser.MaxChars = 20000
	}
	if c.Telegram.APIEndpoint == "" {
		c.Telegram.APIEndpoint = DefaultTelegramAPI
	}
	if c.Telegram.ParseMode == "" {
		c.Telegram.ParseMode = "Markdown"
	}
	if c.Telegram.Timeout <= 0 {
		c.Telegram.Timeout = 15 * time.Second
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 25
	}
	if c.Agent.SessionID == "" {
		c.Agent.SessionID = DefaultSessionID
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Schedule.Site == "" {
		c.Schedule.Site = DefaultSite
	}
	if c.Schedule.Headlines <= 0 {
		c.Schedule.Headlines = 5
	}
	if c.Schedule.Language == "" {
		c.Schedule.Language = "Portuguese"
	}
	if c.Schedule.PollInterval <= 0 {
		c.Schedule.PollInterval = 30 * time.Second
	}
	if c.Schedule.SessionID == "" {
		c.Schedule.SessionID = c.Agent.SessionID
	}
	if c.Queue.Capacity <= 0 {
		c.Queue.Capacity = 16
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "headliner"
	}
	if c.Storage.Redis.Timeout <= 0 {
		c.Storage.Redis.Timeout = 5 * time.Second
	}
}

// Validate checks every section. Telegram credentials are deliberately not required.
func (c *Config) Validate() error {
	if _, err := c.General.Location(); err != nil {
		return fmt.Errorf("general.timezone: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if c.Telegram.ParseMode != "Markdown" && c.Telegram.ParseMode != "MarkdownV2" && c.Telegram.ParseMode != "HTML" {
		return fmt.Errorf("telegram.parse_mode must be Markdown, MarkdownV2 or HTML")
	}
	if !strings.Contains(c.Telegram.APIEndpoint, "%s") {
		return fmt.Errorf("telegram.api_endpoint must contain token and method placeholders")
	}
	if err := c.Storage.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from an optional JSON file, the process environment
// (HEADLINER_* plus the legacy TELEGRAM_TOKEN/CHAT_ID/OPENAI_API_KEY names) and
// a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("browser.headless", true)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("HEADLINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load for process bootstrap: configuration errors are fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}

// bindLegacyEnv keeps the variable names used by existing deployments working.
// AutomaticEnv does not cover nested keys for Unmarshal, so every key of Config
// is bound to its HEADLINER_ name.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("telegram.token", "HEADLINER_TELEGRAM_TOKEN", "TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "HEADLINER_TELEGRAM_CHAT_ID", "CHAT_ID", "TELEGRAM_CHAT_ID")
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		if key == "telegram.token" || key == "telegram.chat_id" {
			continue
		}
		_ = v.BindEnv(key)
	}
}

// configKeys lists the dotted mapstructure keys of every leaf field of t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(f.Type, name)...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// providerAPIKey is the vendor variable read when llm.api_key is not set.
func providerAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := gotenv.OverLoad(name); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}
