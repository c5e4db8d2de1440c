package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents application configuration loaded from an optional config
// file and environment variables. Environment variables win over the file.
type Config struct {
	AppEnv                   string        `json:"app_env" yaml:"app_env" toml:"app_env"`
	Port                     string        `json:"port" yaml:"port" toml:"port"`
	GeminiAPIKey             string        `json:"gemini_api_key" yaml:"gemini_api_key" toml:"gemini_api_key"`
	GeminiModel              string        `json:"gemini_model" yaml:"gemini_model" toml:"gemini_model"`
	GeminiBaseURL            string        `json:"gemini_base_url" yaml:"gemini_base_url" toml:"gemini_base_url"`
	GeminiTimeout            time.Duration `json:"-" yaml:"-" toml:"-"`
	GeminiTimeoutSeconds     int           `json:"gemini_timeout_seconds" yaml:"gemini_timeout_seconds" toml:"gemini_timeout_seconds"`
	GeminiAttempts           int           `json:"gemini_attempts" yaml:"gemini_attempts" toml:"gemini_attempts"`
	MaxConcurrentGenerations int           `json:"max_concurrent_generations" yaml:"max_concurrent_generations" toml:"max_concurrent_generations"`
	MaxUploadBytes           int64         `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	SessionIdleTTL           time.Duration `json:"-" yaml:"-" toml:"-"`
	SessionIdleTTLMinutes    int           `json:"session_idle_ttl_minutes" yaml:"session_idle_ttl_minutes" toml:"session_idle_ttl_minutes"`
	CORSAllowedOrigins       []string      `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	RateLimitPerMin          int           `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	TrustProxyHeaders        bool          `json:"trust_proxy_headers" yaml:"trust_proxy_headers" toml:"trust_proxy_headers"`
	HTTPReadTimeout          time.Duration `json:"-" yaml:"-" toml:"-"`
	HTTPWriteTimeout         time.Duration `json:"-" yaml:"-" toml:"-"`
	HTTPIdleTimeout          time.Duration `json:"-" yaml:"-" toml:"-"`
}

// LoadConfig loads configuration from CONFIG_FILE (when set) and environment
// variables and applies defaults where needed. A missing Gemini key is not an
// error here; callers check it before each generation.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.AppEnv = getEnv("APP_ENV", firstNonEmpty(cfg.AppEnv, "development"))
	cfg.Port = getEnv("PORT", firstNonEmpty(cfg.Port, "8080"))
	cfg.GeminiAPIKey = strings.TrimSpace(getEnv("GEMINI_API_KEY", getEnv("API_KEY", cfg.GeminiAPIKey)))
	cfg.GeminiModel = getEnv("GEMINI_MODEL", firstNonEmpty(cfg.GeminiModel, "gemini-2.5-flash-image"))
	cfg.GeminiBaseURL = getEnv("GEMINI_BASE_URL", firstNonEmpty(cfg.GeminiBaseURL, "https://generativelanguage.googleapis.com/v1beta"))
	cfg.GeminiTimeoutSeconds = getEnvInt("GEMINI_TIMEOUT_SECONDS", cfg.GeminiTimeoutSeconds)
	cfg.GeminiAttempts = getEnvInt("GEMINI_ATTEMPTS", orDefault(cfg.GeminiAttempts, 1))
	cfg.MaxConcurrentGenerations = getEnvInt("MAX_CONCURRENT_GENERATIONS", orDefault(cfg.MaxConcurrentGenerations, 4))
	cfg.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(orDefault64(cfg.MaxUploadBytes, 10<<20))))
	cfg.SessionIdleTTLMinutes = getEnvInt("SESSION_IDLE_TTL_MINUTES", orDefault(cfg.SessionIdleTTLMinutes, 60))
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MINUTE", orDefault(cfg.RateLimitPerMin, 30))
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", cfg.TrustProxyHeaders)

	cfg.GeminiTimeout = time.Second * time.Duration(cfg.GeminiTimeoutSeconds)
	cfg.SessionIdleTTL = time.Minute * time.Duration(cfg.SessionIdleTTLMinutes)
	cfg.HTTPReadTimeout = time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15))
	cfg.HTTPWriteTimeout = time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120))
	cfg.HTTPIdleTimeout = time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60))

	if cfg.GeminiAttempts < 1 {
		return nil, fmt.Errorf("GEMINI_ATTEMPTS must be at least 1")
	}
	if cfg.GeminiTimeoutSeconds < 0 {
		return nil, fmt.Errorf("GEMINI_TIMEOUT_SECONDS must not be negative")
	}
	if cfg.MaxConcurrentGenerations < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_GENERATIONS must be at least 1")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

// LoadConfigFile reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// HasGeminiKey reports whether the generation credential is configured.
func (c *Config) HasGeminiKey() bool {
	return c != nil && c.GeminiAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func orDefault64(v, fallback int64) int64 {
	if v == 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
