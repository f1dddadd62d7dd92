// internal/config/config.go

// Package config loads settings from built-in defaults, an optional YAML file,
// a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Narration NarrationConfig `koanf:"narration"`
	Recommend RecommendConfig `koanf:"recommend"`
	Roster    RosterConfig    `koanf:"roster"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// NarrationConfig points at an OpenAI-compatible chat completions endpoint.
// An empty APIKey leaves the AI page reporting "not configured".
type NarrationConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

type RecommendConfig struct {
	MinPercent float64 `koanf:"min_percent"`
	TopN       int     `koanf:"top_n"`
}

// RosterConfig holds the choices offered by the forms.
type RosterConfig struct {
	Children   []string `koanf:"children"`
	MealTypes  []string `koanf:"meal_types"`
	CareGivers []string `koanf:"care_givers"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8011,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "mymealtracker.db",
		},
		Narration: NarrationConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4.1-mini",
			Temperature: 0.2,
			MaxTokens:   40,
			Timeout:     30 * time.Second,
		},
		Recommend: RecommendConfig{
			MinPercent: 70,
			TopN:       3,
		},
		Roster: RosterConfig{
			Children:   []string{"Essence", "Gabriella"},
			MealTypes:  []string{"Breakfast", "Lunch", "Dinner"},
			CareGivers: []string{"Gabriel", "Nahja"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration. A missing .env or YAML file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"meal_log_db_path":      "database.path",
	"openai_api_key":        "narration.api_key",
	"openai_base_url":       "narration.base_url",
	"openai_model":          "narration.model",
	"narration_temperature": "narration.temperature",
	"narration_max_tokens":  "narration.max_tokens",
	"narration_timeout":     "narration.timeout",
	"recommend_min_percent": "recommend.min_percent",
	"recommend_top_n":       "recommend.top_n",
	"roster_children":       "roster.children",
	"roster_meal_types":     "roster.meal_types",
	"roster_care_givers":    "roster.care_givers",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
}

// envTransformFunc maps known environment variables to config paths and
// drops everything else.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

var sliceConfigPaths = []string{
	"roster.children",
	"roster.meal_types",
	"roster.care_givers",
}

// processSliceFields splits comma-separated env values for list settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Recommend.MinPercent < 0 || c.Recommend.MinPercent > 100 {
		return fmt.Errorf("recommend.min_percent must be between 0 and 100, got %v", c.Recommend.MinPercent)
	}
	if c.Recommend.TopN < 1 {
		return fmt.Errorf("recommend.top_n must be at least 1, got %d", c.Recommend.TopN)
	}
	if len(c.Roster.Children) == 0 {
		return errors.New("roster.children must not be empty")
	}
	if len(c.Roster.MealTypes) == 0 {
		return errors.New("roster.meal_types must not be empty")
	}
	if len(c.Roster.CareGivers) == 0 {
		return errors.New("roster.care_givers must not be empty")
	}
	if c.Narration.MaxTokens < 1 {
		return fmt.Errorf("narration.max_tokens must be positive, got %d", c.Narration.MaxTokens)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
