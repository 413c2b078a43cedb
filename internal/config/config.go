package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Push      PushConfig      `yaml:"push"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"timebank.db"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"       env-required:"true"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER"       env-default:"timebank"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"720h"`
}

// LedgerConfig tunes the balance engine.
type LedgerConfig struct {
	TimeZone             string        `yaml:"time_zone"             env:"LEDGER_TIME_ZONE"             env-default:"Asia/Seoul"`
	BackdateDays         int           `yaml:"backdate_days"         env:"LEDGER_BACKDATE_DAYS"         env-default:"1"`
	RetryAttempts        int           `yaml:"retry_attempts"        env:"LEDGER_RETRY_ATTEMPTS"        env-default:"3"`
	RetryBase            time.Duration `yaml:"retry_base"            env:"LEDGER_RETRY_BASE"            env-default:"20ms"`
	AuditInterval        time.Duration `yaml:"audit_interval"        env:"LEDGER_AUDIT_INTERVAL"        env-default:"1h"`
	ReconcileConcurrency int           `yaml:"reconcile_concurrency" env:"LEDGER_RECONCILE_CONCURRENCY" env-default:"4"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"  env:"PUSH_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `yaml:"vapid_private_key" env:"PUSH_VAPID_PRIVATE_KEY"`
	Subscriber      string `yaml:"subscriber"        env:"PUSH_SUBSCRIBER"        env-default:"admin@timebank.local"`
	// ReminderHour is the local hour after which unmarked schedules are
	// reminded about.
	ReminderHour int `yaml:"reminder_hour" env:"PUSH_REMINDER_HOUR" env-default:"20"`
}

// Enabled reports whether both VAPID keys are configured.
func (c PushConfig) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// ArchiveConfig points at S3-compatible storage for account archives and
// database snapshots.
type ArchiveConfig struct {
	Endpoint   string `yaml:"endpoint"   env:"ARCHIVE_ENDPOINT"`
	Bucket     string `yaml:"bucket"     env:"ARCHIVE_BUCKET"`
	Region     string `yaml:"region"     env:"ARCHIVE_REGION"     env-default:"us-east-1"`
	AccessKey  string `yaml:"access_key" env:"ARCHIVE_ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"ARCHIVE_SECRET_KEY"`
	Passphrase string `yaml:"passphrase" env:"ARCHIVE_PASSPHRASE"`
}

func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// RateLimitConfig limits login and registration attempts per client IP.
type RateLimitConfig struct {
	AuthAttempts int           `yaml:"auth_attempts" env:"RATE_LIMIT_AUTH_ATTEMPTS" env-default:"10"`
	Window       time.Duration `yaml:"window"        env:"RATE_LIMIT_WINDOW"        env-default:"1m"`
}
