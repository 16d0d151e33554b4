package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/CTAG07/pagetags/pkg/templating"
)

// ServerConfig holds the configuration for the HTTP servers and storage.
type ServerConfig struct {
	ServerAddr    string            `json:"server_addr"`
	ApiAddr       string            `json:"api_addr"`
	LogLevel      string            `json:"log_level"`
	DatabasePath  string            `json:"database_path"`
	TemplateDir   string            `json:"template_dir"`
	PageTemplate  string            `json:"page_template"`
	IndexTemplate string            `json:"index_template"`
	Headers       map[string]string `json:"headers"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig              `json:"server_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ServerAddr:    ":7277",
		ApiAddr:       ":7278",
		LogLevel:      "info",
		DatabasePath:  "./data/pagetags.db?_journal_mode=WAL&_busy_timeout=5000",
		TemplateDir:   "./data/templates",
		PageTemplate:  "page.tmpl.html",
		IndexTemplate: "index.tmpl.html",
		Headers: map[string]string{
			"Content-Type":           "text/html; charset=utf-8",
			"X-Content-Type-Options": "nosniff",
		},
	}
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	templates := templating.DefaultConfig()
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: &templates,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err = writeConfig(path, config); err != nil {
				// The server can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Templates == nil {
		templates := templating.DefaultConfig()
		config.Templates = &templates
	}
	return config, nil
}

func writeConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// ConfigManager handles thread-safe access to configuration and pushes
// template settings to the TemplateManager.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	tm         *templating.TemplateManager
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigManager{
		config:     cfg,
		configPath: path,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetTemplateManager registers the template manager to receive config updates.
func (cm *ConfigManager) SetTemplateManager(tm *templating.TemplateManager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.tm = tm
}

func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// Get returns a copy of the current configuration. The nested configs are
// copied as well, so callers may not modify the live state through it.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	server.Headers = maps.Clone(cm.config.Server.Headers)
	templates := *cm.config.Templates
	return Config{Server: &server, Templates: &templates}
}

// Update validates the new configuration against the TemplateManager, then
// saves it to disk. A template configuration the manager rejects leaves both
// the live and the saved configuration untouched.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Server == nil || newConfig.Templates == nil {
		return fmt.Errorf("configuration requires both server_config and template_config")
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.tm != nil {
		if err := cm.tm.SetConfig(*newConfig.Templates); err != nil {
			return fmt.Errorf("template configuration rejected: %w", err)
		}
	}

	*cm.config = newConfig
	if err := writeConfig(cm.configPath, cm.config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	cm.logger.Info("Configuration updated", "path", cm.configPath)
	return nil
}
