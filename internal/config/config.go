// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// UploadExtensions is the allow-list for uploaded files.
	UploadExtensions []string `yaml:"upload_extensions"`
}

// StorageConfig selects and locates the document store backend.
type StorageConfig struct {
	// Backend is "json" (single flat file) or "sqlite".
	Backend    string `yaml:"backend"`
	JSONPath   string `yaml:"json_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// EmbeddingConfig holds embedding service settings. The API key is read from
// the environment, never from the config file.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

// LLMConfig holds completion service settings.
type LLMConfig struct {
	Model string `yaml:"model"`
}

// ChunkingConfig holds the segment chunking policy (sizes in runes).
type ChunkingConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	TopK    int `yaml:"top_k"`
	MaxTopK int `yaml:"max_top_k"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
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
	cfg.Storage.JSONPath = expandPath(cfg.Storage.JSONPath, configDir)
	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a
// config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// StorePath returns the path of the active storage backend.
func (c *Config) StorePath() string {
	if c.Storage.Backend == "sqlite" {
		return c.Storage.SQLitePath
	}
	return c.Storage.JSONPath
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
