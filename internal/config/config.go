package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Development fallbacks used when no secret is configured.
const (
	DevSessionSecret = "quiz-builder-dev-fallback-secret"
	DevAdminSecret   = "change-me-in-production"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port" validate:"required,numeric"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
		SecureCookie bool   `yaml:"secure_cookie"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
	Feed struct {
		Backend string `yaml:"backend" validate:"oneof=memory redis postgres"`
		Channel string `yaml:"channel" validate:"required"`
	} `yaml:"feed"`
	Auth struct {
		SessionSecret string `yaml:"session_secret"`
		AdminSecret   string `yaml:"admin_secret"`
		TokenTTL      string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Quiz struct {
		LowTimeWarning     int    `yaml:"low_time_warning" validate:"gte=0"`
		AutoSubmitDelay    string `yaml:"auto_submit_delay"`
		MaxFullscreenExits int    `yaml:"max_fullscreen_exits" validate:"gte=0"`
	} `yaml:"quiz"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"log"`

	// Warnings lists fallbacks applied while loading, for the caller to log.
	Warnings []string `yaml:"-"`
}

// Default returns a config for a memory-backed development server.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Cache.TTL = "10m"
	cfg.Feed.Backend = "memory"
	cfg.Feed.Channel = "quiz_results"
	cfg.Auth.TokenTTL = "24h"
	cfg.Quiz.LowTimeWarning = 300
	cfg.Quiz.AutoSubmitDelay = "2s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path over the defaults, then applies .env and environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = DevSessionSecret
		cfg.Warnings = append(cfg.Warnings, "SESSION_SECRET not set; using the development fallback")
	}
	if cfg.Auth.AdminSecret == "" {
		cfg.Auth.AdminSecret = DevAdminSecret
		cfg.Warnings = append(cfg.Warnings, "ADMIN_SECRET not set; using the development fallback")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Feed.Backend == "redis" && cfg.Redis.Addr == "" {
		return cfg, errors.New("invalid config: feed backend redis needs redis.addr")
	}
	if cfg.Feed.Backend == "postgres" && cfg.Postgres.URL == "" {
		return cfg, errors.New("invalid config: feed backend postgres needs postgres.url")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.SessionSecret, "SESSION_SECRET")
	setString(&cfg.Auth.AdminSecret, "ADMIN_SECRET")
	setString(&cfg.Feed.Backend, "FEED_BACKEND")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = v
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
