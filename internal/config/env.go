package config

import (
	"os"
	"strconv"
	"time"
)

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.BaseURL, "SERVER_BASE_URL")
	setString(&cfg.Server.Environment, "APP_ENV")

	setString(&cfg.DB.Host, "DB_HOST")
	setInt(&cfg.DB.Port, "DB_PORT")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.Name, "DB_NAME")
	setString(&cfg.DB.SSLMode, "DB_SSLMODE")

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USER")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTP.From, "SMTP_FROM")
	setString(&cfg.SMTP.FromName, "SMTP_FROM_NAME")
	setBool(&cfg.SMTP.ImplicitTLS, "SMTP_IMPLICIT_TLS")
	setInt(&cfg.SMTP.MaxPerSecond, "SMTP_MAX_PER_SECOND")
	setString(&cfg.SMTP.DKIM.Selector, "SMTP_DKIM_SELECTOR")
	setString(&cfg.SMTP.DKIM.Domain, "SMTP_DKIM_DOMAIN")
	setString(&cfg.SMTP.DKIM.KeyPath, "SMTP_DKIM_KEY_PATH")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setDuration(&cfg.JWT.TTL, "JWT_TTL")

	setString(&cfg.MQ.URL, "AMQP_URL")
	setString(&cfg.MQ.Queue, "AMQP_QUEUE")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setInt(&cfg.Newsletter.BatchSize, "NEWSLETTER_BATCH_SIZE")
	setDuration(&cfg.Newsletter.ItemDelay, "NEWSLETTER_ITEM_DELAY")
	setDuration(&cfg.Newsletter.BatchDelay, "NEWSLETTER_BATCH_DELAY")
	setInt(&cfg.Newsletter.MaxRetries, "NEWSLETTER_MAX_RETRIES")
	setDuration(&cfg.Newsletter.RetryBackoff, "NEWSLETTER_RETRY_BACKOFF")
	setString(&cfg.Newsletter.UnsubscribeBaseURL, "NEWSLETTER_UNSUBSCRIBE_BASE_URL")
	setBool(&cfg.Newsletter.IncludeErrorDetail, "NEWSLETTER_INCLUDE_ERROR_DETAIL")

	setString(&cfg.Log.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
