// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aristath/pricesentry/internal/clientdata"
	"github.com/aristath/pricesentry/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir        string          `yaml:"data_dir"` // Always absolute after Load
	LogLevel       string          `yaml:"log_level"`
	MarketTimezone string          `yaml:"market_timezone"`
	Providers      ProvidersConfig `yaml:"providers"`
	Fetch          FetchConfig     `yaml:"fetch"`
	Cache          CacheConfig     `yaml:"cache"`
	Mail           MailConfig      `yaml:"mail"`
	R2             R2Config        `yaml:"r2"`
	Schedule       ScheduleConfig  `yaml:"schedule"`
	Port           int             `yaml:"port"`
	LogPretty      bool            `yaml:"log_pretty"`

	location *time.Location
}

// ProviderConfig configures one quote source
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// ProvidersConfig configures the provider chain
type ProvidersConfig struct {
	Yahoo            ProviderConfig `yaml:"yahoo"`
	Finnhub          ProviderConfig `yaml:"finnhub"`
	Polygon          ProviderConfig `yaml:"polygon"`
	Timeout          time.Duration  `yaml:"timeout"`
	RetryBaseDelay   time.Duration  `yaml:"retry_base_delay"`
	Concurrency      int            `yaml:"concurrency"`
	RetryMaxAttempts int            `yaml:"retry_max_attempts"`
}

// FetchConfig controls batch chunking
type FetchConfig struct {
	ChunkDelay time.Duration `yaml:"chunk_delay"`
	ChunkSize  int           `yaml:"chunk_size"`
}

// CacheConfig controls price freshness and the cache backend
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // sqlite or redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	TTLIntraday   time.Duration `yaml:"ttl_intraday"`
	TTLWeekly     time.Duration `yaml:"ttl_weekly"`
	Retention     time.Duration `yaml:"retention"`
	RedisDB       int           `yaml:"redis_db"`
}

// MailConfig selects and configures the alert transport
type MailConfig struct {
	Transport    string   `yaml:"transport"` // smtp or api
	Sender       string   `yaml:"sender"`
	Recipient    string   `yaml:"recipient"`
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPUsername string   `yaml:"smtp_username"`
	SMTPPassword string   `yaml:"smtp_password"`
	APIURL       string   `yaml:"api_url"`
	APIKey       string   `yaml:"api_key"`
	Bcc          []string `yaml:"bcc"`
	SMTPPort     int      `yaml:"smtp_port"`
}

// R2Config holds Cloudflare R2 credentials for archiving undelivered alerts
type R2Config struct {
	AccountID       string        `yaml:"account_id"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	Bucket          string        `yaml:"bucket"`
	Retention       time.Duration `yaml:"retention"`
}

// Enabled reports whether all R2 credentials are present
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.Bucket != ""
}

// ScheduleConfig holds cron specs (with seconds) for serve mode
type ScheduleConfig struct {
	AM          string `yaml:"am"`
	PM          string `yaml:"pm"`
	Cleanup     string `yaml:"cleanup"`
	Maintenance string `yaml:"maintenance"`
}

// Defaults returns the configuration used before any file or env is applied
func Defaults() *Config {
	return &Config{
		DataDir:        "./data",
		LogLevel:       "info",
		MarketTimezone: "America/New_York",
		Port:           8080,
		Providers: ProvidersConfig{
			Yahoo: ProviderConfig{
				BaseURL:     "https://query1.finance.yahoo.com",
				MinInterval: 5 * time.Second,
			},
			Finnhub: ProviderConfig{
				BaseURL:     "https://finnhub.io/api/v1",
				MinInterval: 1100 * time.Millisecond, // 60/min
			},
			Polygon: ProviderConfig{
				MinInterval: 15 * time.Second, // 5/min
			},
			Timeout:          15 * time.Second,
			RetryBaseDelay:   2 * time.Second,
			Concurrency:      3,
			RetryMaxAttempts: 3,
		},
		Fetch: FetchConfig{
			ChunkSize:  5,
			ChunkDelay: 2 * time.Second,
		},
		Cache: CacheConfig{
			Backend:     "sqlite",
			RedisAddr:   "localhost:6379",
			TTLIntraday: clientdata.TTLIntraday,
			TTLWeekly:   clientdata.TTLWeekly,
			Retention:   clientdata.Retention,
		},
		Mail: MailConfig{
			Transport: "smtp",
			SMTPPort:  587,
		},
		R2: R2Config{
			Retention: 90 * 24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			AM:          "0 35 9 * * MON-FRI",
			PM:          "0 30 15 * * MON-FRI",
			Cleanup:     "0 0 3 * * *",
			Maintenance: "0 30 3 * * *",
		},
	}
}

// Load reads configuration: .env, then the optional YAML file named by
// PRICESENTRY_CONFIG, then environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("PRICESENTRY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("PRICESENTRY_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)
	c.Port = getEnvAsInt("HTTP_PORT", c.Port)
	c.MarketTimezone = getEnv("MARKET_TIMEZONE", c.MarketTimezone)

	p := &c.Providers
	p.Yahoo.MinInterval = getEnvAsDuration("YAHOO_MIN_INTERVAL", p.Yahoo.MinInterval)
	p.Yahoo.BaseURL = getEnv("YAHOO_BASE_URL", p.Yahoo.BaseURL)
	p.Finnhub.APIKey = getEnv("FINNHUB_API_KEY", p.Finnhub.APIKey)
	p.Finnhub.MinInterval = getEnvAsDuration("FINNHUB_MIN_INTERVAL", p.Finnhub.MinInterval)
	p.Finnhub.BaseURL = getEnv("FINNHUB_BASE_URL", p.Finnhub.BaseURL)
	p.Polygon.APIKey = getEnv("POLYGON_API_KEY", p.Polygon.APIKey)
	p.Polygon.MinInterval = getEnvAsDuration("POLYGON_MIN_INTERVAL", p.Polygon.MinInterval)
	p.Timeout = getEnvAsDuration("PROVIDER_TIMEOUT", p.Timeout)
	p.Concurrency = getEnvAsInt("PROVIDER_CONCURRENCY", p.Concurrency)
	p.RetryBaseDelay = getEnvAsDuration("RETRY_BASE_DELAY", p.RetryBaseDelay)
	p.RetryMaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", p.RetryMaxAttempts)

	c.Fetch.ChunkSize = getEnvAsInt("BATCH_CHUNK_SIZE", c.Fetch.ChunkSize)
	c.Fetch.ChunkDelay = getEnvAsDuration("BATCH_CHUNK_DELAY", c.Fetch.ChunkDelay)

	c.Cache.TTLIntraday = getEnvAsDuration("CACHE_TTL_INTRADAY", c.Cache.TTLIntraday)
	c.Cache.TTLWeekly = getEnvAsDuration("CACHE_TTL_WEEKLY", c.Cache.TTLWeekly)
	c.Cache.Retention = getEnvAsDuration("CACHE_RETENTION", c.Cache.Retention)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvAsInt("REDIS_DB", c.Cache.RedisDB)

	m := &c.Mail
	m.Transport = getEnv("MAIL_TRANSPORT", m.Transport)
	m.Sender = getEnv("ALERT_SENDER", m.Sender)
	m.Recipient = getEnv("ALERT_RECIPIENT", m.Recipient)
	m.Bcc = getEnvAsList("ALERT_BCC", m.Bcc)
	m.SMTPHost = getEnv("SMTP_HOST", m.SMTPHost)
	m.SMTPPort = getEnvAsInt("SMTP_PORT", m.SMTPPort)
	m.SMTPUsername = getEnv("SMTP_USERNAME", m.SMTPUsername)
	m.SMTPPassword = getEnv("SMTP_PASSWORD", m.SMTPPassword)
	m.APIURL = getEnv("MAIL_API_URL", m.APIURL)
	m.APIKey = getEnv("MAIL_API_KEY", m.APIKey)

	c.R2.AccountID = getEnv("R2_ACCOUNT_ID", c.R2.AccountID)
	c.R2.AccessKeyID = getEnv("R2_ACCESS_KEY_ID", c.R2.AccessKeyID)
	c.R2.SecretAccessKey = getEnv("R2_SECRET_ACCESS_KEY", c.R2.SecretAccessKey)
	c.R2.Bucket = getEnv("R2_BUCKET", c.R2.Bucket)
	c.R2.Retention = getEnvAsDuration("R2_ARCHIVE_RETENTION", c.R2.Retention)

	c.Schedule.AM = getEnv("SCHEDULE_AM", c.Schedule.AM)
	c.Schedule.PM = getEnv("SCHEDULE_PM", c.Schedule.PM)
	c.Schedule.Cleanup = getEnv("SCHEDULE_CLEANUP", c.Schedule.Cleanup)
	c.Schedule.Maintenance = getEnv("SCHEDULE_MAINTENANCE", c.Schedule.Maintenance)
}

// Validate checks configuration and resolves the market timezone
func (c *Config) Validate() error {
	var errs []error

	loc, err := time.LoadLocation(c.MarketTimezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.MarketTimezone, err))
	} else {
		c.location = loc
	}

	for name, d := range map[string]time.Duration{
		"yahoo min interval":   c.Providers.Yahoo.MinInterval,
		"finnhub min interval": c.Providers.Finnhub.MinInterval,
		"polygon min interval": c.Providers.Polygon.MinInterval,
		"provider timeout":     c.Providers.Timeout,
		"intraday cache TTL":   c.Cache.TTLIntraday,
		"weekly cache TTL":     c.Cache.TTLWeekly,
		"cache retention":      c.Cache.Retention,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.Providers.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("provider concurrency must be positive"))
	}
	if c.Providers.RetryMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry max attempts must be positive"))
	}
	if c.Fetch.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("batch chunk size must be positive"))
	}

	switch c.Cache.Backend {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	switch c.Mail.Transport {
	case "smtp", "api":
	default:
		errs = append(errs, fmt.Errorf("unknown mail transport %q", c.Mail.Transport))
	}

	for _, addr := range append([]string{c.Mail.Recipient, c.Mail.Sender}, c.Mail.Bcc...) {
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			errs = append(errs, fmt.Errorf("invalid email address %q: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the market timezone, falling back to UTC before Validate runs
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// CurrentSession is the single place the AM/PM session is derived from the clock
func (c *Config) CurrentSession(now time.Time) domain.Session {
	return domain.SessionAt(now, c.Location())
}

// MailEnabled reports whether alerts can be delivered at all
func (c *Config) MailEnabled() bool {
	if c.Mail.Recipient == "" {
		return false
	}
	if c.Mail.Transport == "api" {
		return c.Mail.APIURL != ""
	}
	return c.Mail.SMTPHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1.5s") or bare seconds ("15")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
