package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
port: "8086"
logLevel: debug
databaseURL: "postgres://localhost/auramind"
authURL: "https://auth.example.com"
aiProvider: claude
allowedOrigins:
  - "https://app.example.com"
chatRateLimitPerMinute: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8086" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.AIProvider != "claude" {
		t.Errorf("AIProvider = %q", cfg.AIProvider)
	}
	if cfg.ChatRateLimitPerMinute != 20 {
		t.Errorf("ChatRateLimitPerMinute = %d", cfg.ChatRateLimitPerMinute)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
port: "8086"
databaseURL: "postgres://localhost/auramind"
authURL: "https://auth.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.ChatRateLimitPerMinute != 10 {
		t.Errorf("ChatRateLimitPerMinute = %d, want 10", cfg.ChatRateLimitPerMinute)
	}
	if cfg.AccountRateLimitPerMinute != 5 {
		t.Errorf("AccountRateLimitPerMinute = %d, want 5", cfg.AccountRateLimitPerMinute)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8086"
databaseURL: "postgres://localhost/auramind"
authURL: "https://auth.example.com"
aiProvider: claude
`)
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("DATABASE_URL", "postgres://override/auramind")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AIProvider != "gemini" {
		t.Errorf("AIProvider = %q, want gemini", cfg.AIProvider)
	}
	if cfg.DatabaseURL != "postgres://override/auramind" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no port", "databaseURL: x\nauthURL: y\n"},
		{"no database", "port: \"8086\"\nauthURL: y\n"},
		{"no auth url", "port: \"8086\"\ndatabaseURL: x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}
