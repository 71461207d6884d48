// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`

	// PaymentHandle is shown on public bills, e.g. a Venmo username.
	PaymentHandle string `yaml:"payment_handle"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	CORSOrigin    string `yaml:"cors_origin"`
	PublicBaseURL string `yaml:"public_base_url"`

	// StaticDir, when set, is served for every path not claimed by the API.
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig selects the store. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

type AuthConfig struct {
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// GeminiConfig configures the model-backed split computer. An empty APIKey
// disables the analyze endpoint.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig points at an S3-compatible bucket for receipt images.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
}

// Enabled reports whether image uploads are configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "./data/receipts.db"},
		Auth:     AuthConfig{SessionTTL: 7 * 24 * time.Hour},
		Gemini:   GeminiConfig{Model: "gemini-2.5-flash", Timeout: 60 * time.Second},
		Storage:  StorageConfig{Region: "auto"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_PATH (if any), then environment overrides. Outside production a
// .env file in the working directory is loaded first.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SERVER_ADDR")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	setString(&c.Server.CORSOrigin, "CORS_ORIGIN")
	setString(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.Server.StaticDir, "STATIC_PATH")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Auth.Password, "AUTH_PASSWORD")
	setString(&c.Auth.PasswordHash, "AUTH_PASSWORD_HASH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")

	setString(&c.Storage.Endpoint, "R2_ENDPOINT")
	setString(&c.Storage.Region, "R2_REGION")
	setString(&c.Storage.AccessKey, "R2_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "R2_SECRET_KEY")
	setString(&c.Storage.Bucket, "R2_BUCKET")
	setString(&c.Storage.PublicURL, "R2_PUBLIC_URL")

	setString(&c.PaymentHandle, "PAYMENT_HANDLE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		setDuration(&c.Auth.SessionTTL, "SESSION_TTL"),
		setDuration(&c.Gemini.Timeout, "GEMINI_TIMEOUT"),
		setBool(&c.Auth.SecureCookie, "SECURE_COOKIE"),
	)
	return errors.Join(errs...)
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("AUTH_PASSWORD or AUTH_PASSWORD_HASH is required"))
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("session TTL must be positive"))
	}
	if c.Gemini.APIKey != "" && c.Gemini.Timeout <= 0 {
		errs = append(errs, errors.New("gemini timeout must be positive"))
	}
	if c.Storage.Bucket != "" && !c.Storage.Enabled() {
		errs = append(errs, errors.New("R2_ACCESS_KEY and R2_SECRET_KEY are required with R2_BUCKET"))
	}
	return errors.Join(errs...)
}

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
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
