// Package config loads runtime settings from TASKDESK_* environment variables,
// optionally layered over a YAML file named by TASKDESK_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration.
type Config struct {
	Environment string       `yaml:"environment"`
	LogLevel    string       `yaml:"log_level"`
	Server      ServerConfig `yaml:"server"`
	Database    DBConfig     `yaml:"database"`
	Auth        AuthConfig   `yaml:"auth"`
	Redis       RedisConfig  `yaml:"redis"`
	Audit       AuditConfig  `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// Requests per minute per client IP on the credential endpoints.
	AuthRateLimit int `yaml:"auth_rate_limit"`
	// Proxy addresses or CIDR blocks allowed to set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DBConfig struct {
	DSN            string        `yaml:"dsn"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
	ConnMaxLife    time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuditConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Environment: EnvDevelopment,
		LogLevel:    "info",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:4200"},
			AuthRateLimit:   30,
		},
		Database: DBConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			ConnMaxLife:  30 * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  24 * time.Hour,
			Issuer:    "taskdesk",
		},
		Audit: AuditConfig{WriteTimeout: 5 * time.Second},
	}
}

// Load builds the configuration: defaults, then the optional YAML file, then env.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("TASKDESK_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setString(&cfg.Environment, "TASKDESK_ENV")
	setString(&cfg.LogLevel, "TASKDESK_LOG_LEVEL")
	setString(&cfg.Server.Addr, "TASKDESK_HTTP_ADDR")
	errs = append(errs,
		setDuration(&cfg.Server.ReadTimeout, "TASKDESK_READ_TIMEOUT"),
		setDuration(&cfg.Server.WriteTimeout, "TASKDESK_WRITE_TIMEOUT"),
		setDuration(&cfg.Server.IdleTimeout, "TASKDESK_IDLE_TIMEOUT"),
		setDuration(&cfg.Server.ShutdownTimeout, "TASKDESK_SHUTDOWN_TIMEOUT"),
		setInt(&cfg.Server.AuthRateLimit, "TASKDESK_AUTH_RATE_LIMIT"),
	)
	if v, ok := lookup("TASKDESK_CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("TASKDESK_TRUSTED_PROXIES"); ok {
		cfg.Server.TrustedProxies = splitList(v)
	}

	setString(&cfg.Database.DSN, "TASKDESK_PG_DSN")
	errs = append(errs,
		setInt(&cfg.Database.MaxOpenConns, "TASKDESK_PG_MAX_OPEN_CONNS"),
		setInt(&cfg.Database.MaxIdleConns, "TASKDESK_PG_MAX_IDLE_CONNS"),
		setBool(&cfg.Database.MigrateOnStart, "TASKDESK_MIGRATE_ON_START"),
	)

	setString(&cfg.Auth.JWTSecret, "TASKDESK_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "TASKDESK_JWT_ISSUER")
	errs = append(errs, setDuration(&cfg.Auth.TokenTTL, "TASKDESK_TOKEN_TTL"))

	setString(&cfg.Redis.URL, "TASKDESK_REDIS_URL")
	errs = append(errs, setDuration(&cfg.Audit.WriteTimeout, "TASKDESK_AUDIT_WRITE_TIMEOUT"))
	return errors.Join(errs...)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("http addr is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Production() && len(c.Auth.JWTSecret) < 16 {
		return errors.New("jwt secret must be at least 16 bytes in production")
	}
	if c.Audit.WriteTimeout <= 0 {
		return errors.New("audit write timeout must be positive")
	}
	return nil
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool { return c.Environment == EnvProduction }

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
