package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks business rules on the loaded configuration.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.Ledger.validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.Push.validate(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := c.Archive.validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.RateLimit.AuthAttempts <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit: auth_attempts and window must be positive")
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if _, err := time.LoadLocation(l.TimeZone); err != nil {
		return fmt.Errorf("time_zone %q: %w", l.TimeZone, err)
	}
	if l.BackdateDays < 0 {
		return fmt.Errorf("backdate_days must be >= 0 (got %d)", l.BackdateDays)
	}
	if l.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0 (got %d)", l.RetryAttempts)
	}
	if l.RetryBase <= 0 {
		return fmt.Errorf("retry_base must be positive")
	}
	if l.ReconcileConcurrency < 1 {
		return fmt.Errorf("reconcile_concurrency must be >= 1 (got %d)", l.ReconcileConcurrency)
	}
	return nil
}

func (p *PushConfig) validate() error {
	if (p.VAPIDPublicKey == "") != (p.VAPIDPrivateKey == "") {
		return fmt.Errorf("vapid_public_key and vapid_private_key must be set together")
	}
	if p.ReminderHour < 0 || p.ReminderHour > 23 {
		return fmt.Errorf("reminder_hour must be 0-23 (got %d)", p.ReminderHour)
	}
	return nil
}

func (a *ArchiveConfig) validate() error {
	if !a.Enabled() {
		return nil
	}
	if a.AccessKey == "" || a.SecretKey == "" {
		return fmt.Errorf("access_key and secret_key are required with a bucket")
	}
	if len(a.Passphrase) < 12 {
		return fmt.Errorf("passphrase must be at least 12 characters")
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error (got %q)", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json (got %q)", l.Format)
	}
	return nil
}
