package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/joshsymonds/replybot/internal/bot"
	"github.com/joshsymonds/replybot/internal/config"
	"github.com/joshsymonds/replybot/internal/credential"
	"github.com/joshsymonds/replybot/internal/gmail"
	"github.com/joshsymonds/replybot/internal/ledger"
	"github.com/joshsymonds/replybot/internal/rate"
	"github.com/joshsymonds/replybot/internal/responder"
	"github.com/joshsymonds/replybot/internal/runtime"
	"github.com/joshsymonds/replybot/internal/scheduler"
)

// version is set via ldflags at build time.
var version = "dev"

type rootFlags struct {
	configPath string
	port       int
	label      string
	logLevel   string
	dryRun     bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		runtime.DefaultLogger().Error("replybot failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "replybot",
		Short:         "Gmail auto-responder",
		Long:          "Replies once to every unread inbox message, then files it under a label.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultPath, "config file path")
	root.PersistentFlags().IntVar(&flags.port, "port", 0, "HTTP port (overrides config and PORT)")
	root.PersistentFlags().StringVar(&flags.label, "label", "", "archive label name")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "log replies without sending or moving mail")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newAuthorizeCmd(flags))
	root.AddCommand(newRunOnceCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	return root
}

// app is the resolved configuration shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: runtime.NewLogger(cfg.Log.Level)}, nil
}

func applyFlags(cfg *config.Config, flags *rootFlags) {
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}
	if strings.TrimSpace(flags.label) != "" {
		cfg.Responder.Label = strings.TrimSpace(flags.label)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.dryRun {
		cfg.Responder.DryRun = true
	}
}

func (a *app) credentialStore() credential.Store {
	if a.cfg.Auth.TokenStore == config.TokenStoreKeyring {
		return credential.NewKeyringStore(a.cfg.Auth.KeyringAccount)
	}
	return credential.NewFileStore(a.cfg.Auth.TokenPath)
}

func (a *app) authorizer(out io.Writer) *credential.Authorizer {
	consent := credential.LoopbackConsent{Out: out, OpenBrowser: a.cfg.Auth.OpenBrowser}
	return credential.NewAuthorizer(a.credentialStore(), a.cfg.Auth.CredentialsPath, consent.Func(), a.logger)
}

func (a *app) responderOptions() (responder.Options, error) {
	timeout, err := a.cfg.CallTimeout()
	if err != nil {
		return responder.Options{}, err
	}
	return responder.Options{
		Query:       gmail.Query{Raw: a.cfg.Responder.Query},
		Body:        a.cfg.Responder.Body,
		DryRun:      a.cfg.Responder.DryRun,
		CallTimeout: timeout,
	}, nil
}

// limiter returns the configured request limiter and its release func.
func (a *app) limiter() (rate.Limiter, func()) {
	if a.cfg.Responder.RPS <= 0 {
		return rate.Unlimited{}, func() {}
	}
	bucket := rate.NewTokenBucket(a.cfg.Responder.RPS)
	return bucket, bucket.Stop
}

// openLedger returns nil when no ledger path is configured.
func (a *app) openLedger(ctx context.Context) (*ledger.Store, error) {
	if strings.TrimSpace(a.cfg.Ledger.Path) == "" {
		return nil, nil
	}
	store, err := ledger.Open(ctx, a.cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, nil
}

func (a *app) newBot(out io.Writer, limiter rate.Limiter, store *ledger.Store) (*bot.Bot, error) {
	opts, err := a.responderOptions()
	if err != nil {
		return nil, err
	}
	minIv, maxIv, err := a.cfg.Intervals()
	if err != nil {
		return nil, err
	}
	cfg := bot.Config{
		Authorizer: a.authorizer(out),
		NewClient: func(ctx context.Context, ts oauth2.TokenSource) (gmail.Client, error) {
			return runtime.NewGmailClient(ctx, ts)
		},
		Label:     a.cfg.Responder.Label,
		Responder: opts,
		Limiter:   limiter,
		Scheduler: scheduler.New(minIv, maxIv, a.logger),
		Logger:    a.logger,
	}
	if store != nil {
		cfg.Recorder = store
	}
	return bot.New(cfg), nil
}
