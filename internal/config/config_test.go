// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// chdirTemp runs the test from an empty directory so no stray .env or
// config.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path != "mymealtracker.db" {
		t.Errorf("Database.Path = %q, want mymealtracker.db", cfg.Database.Path)
	}
	if cfg.Narration.Model != "gpt-4.1-mini" {
		t.Errorf("Narration.Model = %q", cfg.Narration.Model)
	}
	if cfg.Narration.Temperature != 0.2 || cfg.Narration.MaxTokens != 40 {
		t.Errorf("Narration = %+v, want temperature 0.2 and 40 tokens", cfg.Narration)
	}
	if cfg.Recommend.MinPercent != 70 || cfg.Recommend.TopN != 3 {
		t.Errorf("Recommend = %+v, want 70/3", cfg.Recommend)
	}
	if !reflect.DeepEqual(cfg.Roster.MealTypes, []string{"Breakfast", "Lunch", "Dinner"}) {
		t.Errorf("Roster.MealTypes = %v", cfg.Roster.MealTypes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults failed validation: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8011 {
		t.Errorf("Server.Port = %d, want 8011", cfg.Server.Port)
	}
	if cfg.Narration.APIKey != "" {
		t.Errorf("Narration.APIKey = %q, want empty", cfg.Narration.APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("MEAL_LOG_DB_PATH", "/tmp/meals.db")
	t.Setenv("RECOMMEND_TOP_N", "5")
	t.Setenv("NARRATION_TIMEOUT", "5s")
	t.Setenv("ROSTER_CHILDREN", "Alice, Bob ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Narration.APIKey != "sk-test" {
		t.Errorf("Narration.APIKey = %q", cfg.Narration.APIKey)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/meals.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Recommend.TopN != 5 {
		t.Errorf("Recommend.TopN = %d, want 5", cfg.Recommend.TopN)
	}
	if cfg.Narration.Timeout != 5*time.Second {
		t.Errorf("Narration.Timeout = %v, want 5s", cfg.Narration.Timeout)
	}
	if !reflect.DeepEqual(cfg.Roster.Children, []string{"Alice", "Bob"}) {
		t.Errorf("Roster.Children = %v, want [Alice Bob]", cfg.Roster.Children)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "meal-log.yaml")
	content := `
server:
  port: 7000
roster:
  care_givers:
    - Grandma
    - Grandpa
recommend:
  min_percent: 60
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Roster.CareGivers, []string{"Grandma", "Grandpa"}) {
		t.Errorf("Roster.CareGivers = %v", cfg.Roster.CareGivers)
	}
	if cfg.Recommend.MinPercent != 60 {
		t.Errorf("Recommend.MinPercent = %v, want 60", cfg.Recommend.MinPercent)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_MODEL=gpt-test\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("OPENAI_MODEL", "")
	os.Unsetenv("OPENAI_MODEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Narration.Model != "gpt-test" {
		t.Errorf("Narration.Model = %q, want gpt-test from .env", cfg.Narration.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"min percent above 100", func(c *Config) { c.Recommend.MinPercent = 101 }},
		{"zero top n", func(c *Config) { c.Recommend.TopN = 0 }},
		{"no children", func(c *Config) { c.Roster.Children = nil }},
		{"no meal types", func(c *Config) { c.Roster.MealTypes = []string{} }},
		{"no caregivers", func(c *Config) { c.Roster.CareGivers = nil }},
		{"zero max tokens", func(c *Config) { c.Narration.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8011}
	if got := s.Addr(); got != "127.0.0.1:8011" {
		t.Errorf("Addr() = %q", got)
	}
}
