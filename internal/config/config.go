// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port        string `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
	Environment string `yaml:"environment"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds a lib/pq connection url.
func (c DBConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, sslmode,
	)
}

type DKIMConfig struct {
	Selector string `yaml:"selector"`
	Domain   string `yaml:"domain"`
	KeyPath  string `yaml:"key_path"`
}

type SMTPConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	From         string        `yaml:"from"`
	FromName     string        `yaml:"from_name"`
	ImplicitTLS  bool          `yaml:"implicit_tls"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxPerSecond int           `yaml:"max_per_second"`
	DKIM         DKIMConfig    `yaml:"dkim"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type MQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// NewsletterConfig tunes the broadcast dispatcher.
type NewsletterConfig struct {
	BatchSize          int           `yaml:"batch_size"`
	ItemDelay          time.Duration `yaml:"item_delay"`
	BatchDelay         time.Duration `yaml:"batch_delay"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryBackoff       time.Duration `yaml:"retry_backoff"`
	UnsubscribeBaseURL string        `yaml:"unsubscribe_base_url"`
	IncludeErrorDetail bool          `yaml:"include_error_detail"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	JWT        JWTConfig        `yaml:"jwt"`
	MQ         MQConfig         `yaml:"mq"`
	Redis      RedisConfig      `yaml:"redis"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used when no file or env overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", BaseURL: "http://localhost:8080", Environment: "development"},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "ngo", SSLMode: "disable"},
		SMTP:   SMTPConfig{Port: "587", FromName: "NGO Newsletter", Timeout: 30 * time.Second},
		JWT:    JWTConfig{TTL: 24 * time.Hour},
		MQ:     MQConfig{Queue: "newsletter_broadcasts"},
		Redis:  RedisConfig{LockTTL: 30 * time.Minute},
		Newsletter: NewsletterConfig{
			BatchSize:          5,
			ItemDelay:          200 * time.Millisecond,
			BatchDelay:         2 * time.Second,
			RetryBackoff:       500 * time.Millisecond,
			IncludeErrorDetail: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), then the yaml file at path (if present), then
// applies environment overrides. Environment wins.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	overrideFromEnv(cfg)

	if cfg.Newsletter.UnsubscribeBaseURL == "" {
		cfg.Newsletter.UnsubscribeBaseURL = cfg.Server.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret (JWT_SECRET) is required")
	}
	if c.Newsletter.BatchSize < 1 {
		return fmt.Errorf("config: newsletter.batch_size must be >= 1, got %d", c.Newsletter.BatchSize)
	}
	if c.Newsletter.ItemDelay < 0 || c.Newsletter.BatchDelay < 0 {
		return errors.New("config: newsletter delays must not be negative")
	}
	if c.Newsletter.MaxRetries < 0 {
		return errors.New("config: newsletter.max_retries must not be negative")
	}
	return nil
}

// IsProduction gates verbose error detail in responses.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
