package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Responder.Label != "ToRead" {
		t.Errorf("label = %q, want ToRead", cfg.Responder.Label)
	}
	if cfg.Responder.Body != DefaultReplyBody {
		t.Errorf("unexpected default body %q", cfg.Responder.Body)
	}
	minIv, maxIv, err := cfg.Intervals()
	if err != nil {
		t.Fatalf("Intervals() error: %v", err)
	}
	if minIv != 45*time.Second || maxIv != 120*time.Second {
		t.Errorf("intervals = [%s, %s), want [45s, 2m0s)", minIv, maxIv)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("PORT", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "replybot.toml")
	content := `
[server]
port = 8080

[responder]
label = "Later"
dry_run = true

[schedule]
min_interval = "1m"
max_interval = "5m"

[ledger]
path = "replies.db"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Responder.Label != "Later" || !cfg.Responder.DryRun {
		t.Errorf("responder = %+v", cfg.Responder)
	}
	if cfg.Ledger.Path != "replies.db" {
		t.Errorf("ledger path = %q", cfg.Ledger.Path)
	}
	// untouched keys keep their defaults
	if cfg.Auth.TokenPath != "token.json" {
		t.Errorf("token path = %q, want default", cfg.Auth.TokenPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4242")
	t.Setenv("REPLYBOT_LABEL", "Auto")
	t.Setenv("REPLYBOT_TOKEN_STORE", "keyring")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("port = %d, want 4242", cfg.Server.Port)
	}
	if cfg.Responder.Label != "Auto" {
		t.Errorf("label = %q, want Auto", cfg.Responder.Label)
	}
	if cfg.Auth.TokenStore != TokenStoreKeyring {
		t.Errorf("token store = %q", cfg.Auth.TokenStore)
	}
}

func TestLoad_BadPortEnvIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want fallback 3000", cfg.Server.Port)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	t.Setenv("PORT", "")
	if _, err := Load("/nonexistent/path/replybot.toml"); err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "replybot.toml")
	if err := os.WriteFile(cfgPath, []byte("not valid [[ toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() should return error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty-interval", mutate: func(c *Config) { c.Schedule.MaxInterval = c.Schedule.MinInterval }},
		{name: "bad-duration", mutate: func(c *Config) { c.Schedule.MinInterval = "soon" }},
		{name: "bad-store", mutate: func(c *Config) { c.Auth.TokenStore = "vault" }},
		{name: "empty-label", mutate: func(c *Config) { c.Responder.Label = " " }},
		{name: "bad-port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "bad-timeout", mutate: func(c *Config) { c.Responder.CallTimeout = "forever" }},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
