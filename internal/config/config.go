package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"coursemind/internal/models"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DatabasePath string // SQLite file path, ":memory:" for ephemeral
	RedisURL     string // empty selects the in-process cache backend
	Environment  string

	// Provider configuration
	OpenAIAPIKey string
	GeminiAPIKey string
	Provider     models.ProviderRef // parsed once from "provider:model"

	// Content settings file (YAML); empty uses built-in defaults
	SettingsPath string

	// Completion tuning
	MaxOutputTokens int

	// Background jobs (link refresh, cache sweep)
	JobsEnabled bool
}

// Load loads configuration from environment variables with defaults. An
// unparseable provider reference falls back to the default with a returned
// error so main can decide whether to continue.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "3001"),
		DatabasePath: getEnv("DATABASE_PATH", "coursemind.db"),
		RedisURL:     getEnv("REDIS_URL", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		SettingsPath: getEnv("SETTINGS_PATH", ""),

		MaxOutputTokens: getIntEnv("LLM_MAX_TOKENS", 1000),
		JobsEnabled:     getBoolEnv("JOBS_ENABLED", true),
	}

	ref, err := models.ParseProviderRef(getEnv("LLM_PROVIDER", "openai:gpt-4o-mini"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse LLM_PROVIDER: %w", err)
	}
	cfg.Provider = ref
	return cfg, nil
}

// APIKeyFor returns the key for a provider kind.
func (c *Config) APIKeyFor(kind models.ProviderKind) string {
	switch kind {
	case models.ProviderOpenAI:
		return c.OpenAIAPIKey
	case models.ProviderGoogle:
		return c.GeminiAPIKey
	}
	return ""
}

// Settings is the YAML-backed content configuration: per-kind source
// toggles, selective mode, and the external-link fetch policy.
type Settings struct {
	ShareContext     *bool    `yaml:"share_context"`
	InternetFallback bool     `yaml:"internet_fallback"`
	FileUploadMode   bool     `yaml:"file_upload_mode"`
	Selective        bool     `yaml:"selective"`
	ActivityIDs      []int64  `yaml:"activity_ids"`
	DisabledSources  []string `yaml:"disabled_sources"`

	Links LinkSettings `yaml:"links"`
}

// LinkSettings configures the external-link ingestor.
type LinkSettings struct {
	AllowedDomains  []string `yaml:"allowed_domains"`
	UserAgent       string   `yaml:"user_agent"`
	FetchTimeoutSec int      `yaml:"fetch_timeout_seconds"`
	RefreshTTLHours int      `yaml:"refresh_ttl_hours"`
	GlobalRate      float64  `yaml:"global_rate"`
}

// DefaultSettings enables everything with no external domains allowed.
func DefaultSettings() *Settings {
	return &Settings{}
}

// LoadSettings reads the YAML settings file. An empty path returns the
// defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	return &settings, nil
}

// SourceConfig materializes the per-build content configuration.
func (s *Settings) SourceConfig() models.SourceConfig {
	cfg := models.DefaultSourceConfig()
	if s.ShareContext != nil {
		cfg.ShareContext = *s.ShareContext
	}
	cfg.InternetFallback = s.InternetFallback
	cfg.FileUploadMode = s.FileUploadMode
	cfg.Selective = s.Selective
	cfg.ActivityIDs = append([]int64(nil), s.ActivityIDs...)
	for _, name := range s.DisabledSources {
		cfg.Enabled[models.SourceKind(strings.TrimSpace(name))] = false
	}
	return cfg
}

// FetchTimeout returns the link fetch timeout with the default applied.
func (s *Settings) FetchTimeout() time.Duration {
	if s.Links.FetchTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.Links.FetchTimeoutSec) * time.Second
}

// RefreshTTL returns the link refresh TTL with the default applied.
func (s *Settings) RefreshTTL() time.Duration {
	if s.Links.RefreshTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.Links.RefreshTTLHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
