package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Market struct {
		Mode       string        `yaml:"mode"` // live | replay
		Interval   time.Duration `yaml:"interval"`
		ReplayFile string        `yaml:"replay_file"`
		Symbols    []string      `yaml:"symbols"`
	} `yaml:"market"`
	Oracle struct {
		// BaseURL points at an OpenAI-compatible chat endpoint; for a local
		// Ollama instance that is http://localhost:11434/v1.
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		DefaultModel string        `yaml:"default_model"`
		Timeout      time.Duration `yaml:"timeout"`
		HistoryDepth int           `yaml:"history_depth"`
	} `yaml:"oracle"`
	Equity struct {
		Retention int `yaml:"retention"` // max equity snapshots kept per agent
	} `yaml:"equity"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PHANTOMEX_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Oracle.BaseURL = strings.TrimRight(v, "/") + "/v1"
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Market.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKET_MODE"); v != "" {
		c.Market.Mode = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Market.Mode != "live" && c.Market.Mode != "replay" {
		return fmt.Errorf("market.mode must be 'live' or 'replay', got '%s'", c.Market.Mode)
	}
	if c.Market.Mode == "replay" && c.Market.ReplayFile == "" {
		return fmt.Errorf("market.replay_file is required in replay mode")
	}
	if c.Market.Interval <= 0 {
		return fmt.Errorf("market.interval must be positive")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	if c.Oracle.HistoryDepth < 0 {
		return fmt.Errorf("oracle.history_depth cannot be negative")
	}
	if c.Equity.Retention <= 0 {
		return fmt.Errorf("equity.retention must be positive")
	}
	return nil
}
