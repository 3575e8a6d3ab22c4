package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "replybot.toml"

// DefaultReplyBody is the canned text sent to every unreplied message.
const DefaultReplyBody = "Hey,\n\nI won't be able to reply at this moment.I will get back to you ASAP !!\n\nThank you"

// Config holds all replybot configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Responder ResponderConfig `toml:"responder"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig controls the HTTP trigger.
type ServerConfig struct {
	Port int `toml:"port"`
}

// AuthConfig locates the OAuth client secret and the saved token.
type AuthConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	TokenPath       string `toml:"token_path"`
	TokenStore      string `toml:"token_store"` // "file" or "keyring"
	KeyringAccount  string `toml:"keyring_account"`
	OpenBrowser     bool   `toml:"open_browser"`
}

// ResponderConfig controls a single cycle.
type ResponderConfig struct {
	Label       string `toml:"label"`
	Query       string `toml:"query"`
	Body        string `toml:"body"`
	RPS         int    `toml:"rps"`
	CallTimeout string `toml:"call_timeout"`
	DryRun      bool   `toml:"dry_run"`
}

// ScheduleConfig bounds the randomized delay between cycles.
type ScheduleConfig struct {
	MinInterval string `toml:"min_interval"`
	MaxInterval string `toml:"max_interval"`
}

// LedgerConfig points at the SQLite reply log. An empty path disables it.
type LedgerConfig struct {
	Path string `toml:"path"`
}

// LogConfig selects the slog level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Token store kinds.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 3000},
		Auth: AuthConfig{
			CredentialsPath: "credentials.json",
			TokenPath:       "token.json",
			TokenStore:      TokenStoreFile,
			KeyringAccount:  "default",
			OpenBrowser:     true,
		},
		Responder: ResponderConfig{
			Label:       "ToRead",
			Query:       "in:inbox is:unread -in:chats -from:me",
			Body:        DefaultReplyBody,
			RPS:         4,
			CallTimeout: "30s",
		},
		Schedule: ScheduleConfig{
			MinInterval: "45s",
			MaxInterval: "120s",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from path, then applies environment overrides.
// A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Auth.CredentialsPath = getEnvString("REPLYBOT_CREDENTIALS", cfg.Auth.CredentialsPath)
	cfg.Auth.TokenPath = getEnvString("REPLYBOT_TOKEN", cfg.Auth.TokenPath)
	cfg.Auth.TokenStore = getEnvString("REPLYBOT_TOKEN_STORE", cfg.Auth.TokenStore)
	cfg.Responder.Label = getEnvString("REPLYBOT_LABEL", cfg.Responder.Label)
	cfg.Responder.RPS = getEnvInt("REPLYBOT_RPS", cfg.Responder.RPS)
	cfg.Ledger.Path = getEnvString("REPLYBOT_LEDGER", cfg.Ledger.Path)
	cfg.Log.Level = getEnvString("REPLYBOT_LOG_LEVEL", cfg.Log.Level)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Auth.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("unknown token store %q (use %q or %q)", c.Auth.TokenStore, TokenStoreFile, TokenStoreKeyring)
	}
	if strings.TrimSpace(c.Responder.Label) == "" {
		return errors.New("responder label must not be empty")
	}
	if _, err := c.CallTimeout(); err != nil {
		return err
	}
	minIv, maxIv, err := c.Intervals()
	if err != nil {
		return err
	}
	if minIv <= 0 || maxIv <= minIv {
		return fmt.Errorf("schedule interval [%s, %s) must be positive and non-empty", minIv, maxIv)
	}
	return nil
}

// Intervals parses the schedule bounds.
func (c *Config) Intervals() (time.Duration, time.Duration, error) {
	minIv, err := time.ParseDuration(c.Schedule.MinInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("parse min_interval: %w", err)
	}
	maxIv, err := time.ParseDuration(c.Schedule.MaxInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("parse max_interval: %w", err)
	}
	return minIv, maxIv, nil
}

// CallTimeout parses the per-call Gmail timeout. Zero disables it.
func (c *Config) CallTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Responder.CallTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Responder.CallTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse call_timeout: %w", err)
	}
	return d, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}
