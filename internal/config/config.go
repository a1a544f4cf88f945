// Package config loads server settings from .env, the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. YAML keys mirror the env names in
// lower snake case.
type Config struct {
	Stage    string `yaml:"stage"`
	Port     string `yaml:"port"`
	HostAPI  string `yaml:"host_api"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`

	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	WSAuthTimeout time.Duration `yaml:"ws_auth_timeout"`
	WSSendBuffer  int           `yaml:"ws_send_buffer"`

	SentryDSN string `yaml:"sentry_dsn"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	PresenceTTL   time.Duration `yaml:"presence_ttl"`

	// DomainName enables autocert TLS unless InsecureHTTP is set.
	DomainName   string `yaml:"domain_name"`
	Email        string `yaml:"email"`
	InsecureHTTP bool   `yaml:"insecure_http"`
}

const devJWTSecret = "teslo-dev-secret"

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		Stage:          "dev",
		Port:           "3000",
		HostAPI:        "http://localhost:3000/api",
		DBPath:         "teslo.db",
		LogLevel:       "info",
		LogFormat:      "console",
		JWTTTL:         2 * time.Hour,
		UploadDir:      "static/uploads",
		MaxUploadBytes: 5 << 20,
		WSAuthTimeout:  10 * time.Second,
		WSSendBuffer:   256,
		PresenceTTL:    2 * time.Minute,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if any),
// then the environment (after loading .env if it exists).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("TESLO_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" && !cfg.IsProd() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	setString(&c.Stage, "STAGE")
	setString(&c.Port, "PORT")
	setString(&c.HostAPI, "HOST_API")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.UploadDir, "UPLOAD_DIR")
	setString(&c.SentryDSN, "SENTRY_DSN")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.DomainName, "DOMAIN_NAME")
	setString(&c.Email, "EMAIL")

	var errs []error
	errs = append(errs,
		setDuration(&c.JWTTTL, "JWT_TTL"),
		setDuration(&c.WSAuthTimeout, "WS_AUTH_TIMEOUT"),
		setDuration(&c.PresenceTTL, "PRESENCE_TTL"),
		setInt(&c.WSSendBuffer, "WS_SEND_BUFFER"),
		setInt(&c.RedisDB, "REDIS_DB"),
		setInt64(&c.MaxUploadBytes, "MAX_UPLOAD_BYTES"),
	)
	if v := os.Getenv("INSECURE_HTTP"); v != "" {
		c.InsecureHTTP = v == "true" || v == "1"
	}
	return errors.Join(errs...)
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("config: JWT_SECRET is required in prod"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("config: JWT_TTL must be positive"))
	}
	if c.WSAuthTimeout <= 0 {
		errs = append(errs, errors.New("config: WS_AUTH_TIMEOUT must be positive"))
	}
	if c.WSSendBuffer <= 0 {
		errs = append(errs, errors.New("config: WS_SEND_BUFFER must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("config: MAX_UPLOAD_BYTES must be positive"))
	}
	if c.RedisAddr != "" && c.PresenceTTL <= 0 {
		errs = append(errs, errors.New("config: PRESENCE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProd() bool { return c.Stage == "prod" }

// UseTLS reports whether the server should terminate TLS through autocert.
func (c *Config) UseTLS() bool { return c.DomainName != "" && !c.InsecureHTTP }

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}
