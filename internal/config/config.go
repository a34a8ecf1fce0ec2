package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragchat/internal/service"
)

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	UploadDir         string   `yaml:"upload_dir"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	StaticDir         string   `yaml:"static_dir"`
	SessionTTLMinutes int      `yaml:"session_ttl_minutes"`
	MaxSessions       int      `yaml:"max_sessions"`
}

// IngestConfig configures chunking and embedding fan-out.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	EmbedWorkers int `yaml:"embed_workers"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// Dimension is needed only for models missing from the built-in table.
	Dimension int `yaml:"dimension,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type"`
	// Dimension sizes the hashing embedder.
	Dimension int                   `yaml:"dimension"`
	CacheSize int                   `yaml:"cache_size"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig points at the OpenAI-compatible chat completions service.
type GeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RateLimitConfig holds per-route request budgets such as "10/minute".
type RateLimitConfig struct {
	Default        string `yaml:"default"`
	ModelInfo      string `yaml:"model_info"`
	ProcessedFiles string `yaml:"processed_files"`
	Config         string `yaml:"config"`
	Upload         string `yaml:"upload"`
	Chat           string `yaml:"chat"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level"`
	Format           string   `yaml:"format"`
	OutputPaths      []string `yaml:"output_paths"`
	ErrorOutputPaths []string `yaml:"error_output_paths"`
}

// PDFConfig configures PDF extraction.
type PDFConfig struct {
	LicenseKeyEnv string `yaml:"license_key_env"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig         `yaml:"server"`
	Ingest     IngestConfig         `yaml:"ingest"`
	Embedder   EmbedderConfig       `yaml:"embedder"`
	Generator  GeneratorConfig      `yaml:"generator"`
	Chat       service.ChatSettings `yaml:"chat"`
	RateLimits RateLimitConfig      `yaml:"rate_limits"`
	Log        LogConfig            `yaml:"log"`
	PDF        PDFConfig            `yaml:"pdf"`
}

// SessionTTL returns the idle lifetime of a browser session.
func (c ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml, and
// falls back to built-in defaults. It returns the path used, or "" for defaults.
func LoadDefault() (*AppConfig, string, error) {
	candidates := []string{"config.yaml"}
	if userPath, err := defaultUserConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects values the application cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing", "openai":
	default:
		return fmt.Errorf("unknown embedder: %q", c.Embedder.Type)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:              "127.0.0.1:5000",
			UploadDir:         "uploads",
			MaxUploadBytes:    16 * 1024 * 1024,
			AllowedExtensions: []string{"pdf"},
			SessionTTLMinutes: 24 * 60,
			MaxSessions:       10000,
		},
		Ingest:   IngestConfig{ChunkSize: 200, EmbedWorkers: 4},
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 384, CacheSize: 1024},
		Generator: GeneratorConfig{
			BaseURL:     "http://127.0.0.1:1234/v1",
			TimeoutSecs: 120,
		},
		Chat: service.DefaultChatSettings(),
		RateLimits: RateLimitConfig{
			Default:        "50/hour",
			ModelInfo:      "10/minute",
			ProcessedFiles: "10/minute",
			Config:         "10/minute",
			Upload:         "10/hour",
			Chat:           "30/minute",
		},
		Log: LogConfig{Level: "info", Format: "json"},
		PDF: PDFConfig{LicenseKeyEnv: "UNIDOC_LICENSE_API_KEY"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Ingest.EmbedWorkers <= 0 {
		cfg.Ingest.EmbedWorkers = 1
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = cfg.Generator.BaseURL
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 120
	}
	if cfg.Server.SessionTTLMinutes <= 0 {
		cfg.Server.SessionTTLMinutes = 24 * 60
	}
	if cfg.Server.MaxSessions <= 0 {
		cfg.Server.MaxSessions = 10000
	}
	if len(cfg.Server.AllowedExtensions) == 0 {
		cfg.Server.AllowedExtensions = []string{"pdf"}
	}
}
