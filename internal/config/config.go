// Package config provides configuration loading and structs for the furui pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Chunking ChunkingConfig `yaml:"chunking"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Generate GenerateConfig `yaml:"generate"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// CorpusConfig holds the corpus root and the fixed per-item artifact names.
type CorpusConfig struct {
	Root         string `yaml:"root"`
	TextFile     string `yaml:"text_file"`
	ResultFile   string `yaml:"result_file"`
	RecipeFile   string `yaml:"recipe_file"`
	PDFFile      string `yaml:"pdf_file"`
	MetadataFile string `yaml:"metadata_file"`
}

// ChunkingConfig holds token-budget settings for document splitting.
type ChunkingConfig struct {
	MaxTokens int    `yaml:"max_tokens"`
	Encoding  string `yaml:"encoding"`
}

// LLMConfig holds provider selection and call settings. The API key is read
// from the environment variable named by APIKeyEnv, never from the file.
type LLMConfig struct {
	Provider            string  `yaml:"provider"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
	Temperature         float64 `yaml:"temperature"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
}

// Timeout returns the per-call timeout as a duration.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// PipelineConfig holds batch driver settings.
type PipelineConfig struct {
	Workers      int    `yaml:"workers"`
	ChunkRetries int    `yaml:"chunk_retries"`
	Progress     string `yaml:"progress"`
}

// GenerateConfig holds settings for the recipe generation stage.
type GenerateConfig struct {
	MaxCompletionTokens int `yaml:"max_completion_tokens"`
}

// LedgerConfig holds run-ledger settings.
type LedgerConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EnabledOrDefault returns whether the ledger is enabled; defaults to true when unset.
func (l *LedgerConfig) EnabledOrDefault() bool {
	if l.Enabled != nil {
		return *l.Enabled
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FetchConfig holds arXiv acquisition settings.
type FetchConfig struct {
	BaseURL      string `yaml:"base_url"`
	Query        string `yaml:"query"`
	Year         int    `yaml:"year"`
	MaxResults   int    `yaml:"max_results"`
	PageSize     int    `yaml:"page_size"`
	DelaySeconds int    `yaml:"delay_seconds"`
}

// Delay returns the politeness delay between arXiv requests.
func (f *FetchConfig) Delay() time.Duration {
	return time.Duration(f.DelaySeconds) * time.Second
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Corpus.Root = expandPath(cfg.Corpus.Root, configDir)
	cfg.Ledger.Path = expandPath(cfg.Ledger.Path, configDir)

	return &cfg, nil
}

// Default returns a config with all defaults applied and paths expanded
// relative to the working directory, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg.Corpus.Root = expandPath(cfg.Corpus.Root, cwd)
	cfg.Ledger.Path = expandPath(cfg.Ledger.Path, cwd)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" expands to the home directory, as do bare relative paths.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
