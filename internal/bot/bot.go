// Package bot owns the replybot lifecycle: authorize, resolve the archive label,
// then run responder cycles on the scheduler until stopped.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/joshsymonds/replybot/internal/gmail"
	"github.com/joshsymonds/replybot/internal/metrics"
	"github.com/joshsymonds/replybot/internal/rate"
	"github.com/joshsymonds/replybot/internal/responder"
	"github.com/joshsymonds/replybot/internal/scheduler"
)

// State is the lifecycle position of a Bot.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

// Authorizer yields a token source for the mailbox owner.
type Authorizer interface {
	Authorize(ctx context.Context) (oauth2.TokenSource, error)
}

// ClientFactory builds a Gmail client from an authorized token source.
type ClientFactory func(ctx context.Context, ts oauth2.TokenSource) (gmail.Client, error)

// Config wires a Bot.
type Config struct {
	Authorizer Authorizer
	NewClient  ClientFactory
	Label      string
	Responder  responder.Options
	Limiter    rate.Limiter
	Recorder   responder.Recorder
	Scheduler  *scheduler.Scheduler
	Logger     *slog.Logger
}

// Totals accumulates cycle results since the bot was created.
type Totals struct {
	Seen     int `json:"seen"`
	Replied  int `json:"replied"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Status is a point-in-time snapshot of a Bot.
type Status struct {
	State     State                  `json:"state"`
	LabelID   gmail.LabelID          `json:"label_id,omitempty"`
	StartedAt *time.Time             `json:"started_at,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
	Scheduled bool                   `json:"scheduled"`
	Cycles    int                    `json:"cycles"`
	LastCycle *responder.CycleResult `json:"last_cycle,omitempty"`
	Totals    Totals                 `json:"totals"`
}

// Bot is safe for concurrent use.
type Bot struct {
	cfg    Config
	logger *slog.Logger
	sched  *scheduler.Scheduler
	clock  func() time.Time

	// lifecycle serializes Start and Stop; mu guards the fields below it.
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	labelID   gmail.LabelID
	startedAt time.Time
	lastErr   string
	cycles    int
	lastCycle *responder.CycleResult
	totals    Totals
	cancel    context.CancelFunc
	bootDone  chan struct{}
}

// New returns an idle Bot.
func New(cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.New(45*time.Second, 120*time.Second, logger)
	}
	return &Bot{
		cfg:    cfg,
		logger: logger,
		sched:  sched,
		clock:  time.Now,
		state:  StateIdle,
	}
}

// Start begins bootstrap in the background and reports whether it did so.
// It only acts from idle, failed or stopped. ctx bounds the bot's whole run.
func (b *Bot) Start(ctx context.Context) bool {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	switch b.state {
	case StateIdle, StateFailed, StateStopped:
	default:
		state := b.state
		b.mu.Unlock()
		b.logger.DebugContext(ctx, "start ignored", "state", state)
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.state = StateStarting
	b.lastErr = ""
	b.cancel = cancel
	b.bootDone = done
	b.mu.Unlock()

	go b.bootstrap(runCtx, done)
	return true
}

// Stop halts the scheduler and waits for any in-flight cycle. It reports
// whether there was anything to stop.
func (b *Bot) Stop() bool {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	if b.state != StateStarting && b.state != StateRunning {
		b.mu.Unlock()
		return false
	}
	b.state = StateStopped
	cancel, done := b.cancel, b.bootDone
	b.cancel, b.bootDone = nil, nil
	b.mu.Unlock()

	cancel()
	<-done
	b.sched.Stop()
	b.logger.Info("bot stopped")
	return true
}

// Status returns a snapshot of the bot.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		State:     b.state,
		LabelID:   b.labelID,
		LastError: b.lastErr,
		Scheduled: b.sched.Running(),
		Cycles:    b.cycles,
		Totals:    b.totals,
	}
	if !b.startedAt.IsZero() {
		t := b.startedAt
		st.StartedAt = &t
	}
	if b.lastCycle != nil {
		c := *b.lastCycle
		st.LastCycle = &c
	}
	return st
}

// Prepare authorizes, builds a client and resolves the archive label.
// The returned service is ready for RunCycle.
func (b *Bot) Prepare(ctx context.Context) (gmail.LabelID, *responder.Service, error) {
	ts, err := b.cfg.Authorizer.Authorize(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("authorize: %w", err)
	}
	client, err := b.cfg.NewClient(ctx, ts)
	if err != nil {
		return "", nil, fmt.Errorf("build client: %w", err)
	}
	labelID, err := gmail.EnsureLabel(ctx, client, b.cfg.Label)
	if err != nil {
		return "", nil, fmt.Errorf("resolve label %q: %w", b.cfg.Label, err)
	}
	svc := responder.NewService(client, b.cfg.Limiter, b.logger, b.cfg.Responder)
	svc.Recorder = b.cfg.Recorder
	return labelID, svc, nil
}

func (b *Bot) bootstrap(ctx context.Context, done chan struct{}) {
	defer close(done)

	labelID, svc, err := b.Prepare(ctx)
	if err != nil {
		b.fail(ctx, err)
		return
	}
	b.logger.InfoContext(ctx, "label resolved", "label", b.cfg.Label, "label_id", labelID)

	job := func(ctx context.Context) {
		b.observe(svc.RunCycle(ctx, labelID))
	}
	if err := b.sched.Start(ctx, job); err != nil {
		b.fail(ctx, fmt.Errorf("start scheduler: %w", err))
		return
	}

	b.mu.Lock()
	starting := b.state == StateStarting
	if starting {
		b.state = StateRunning
		b.labelID = labelID
		b.startedAt = b.clock()
	}
	b.mu.Unlock()
	if !starting {
		return
	}
	metrics.IncrementBootstrap(metrics.StatusSuccess)
	b.logger.InfoContext(ctx, "bot running")
}

func (b *Bot) fail(ctx context.Context, err error) {
	b.mu.Lock()
	starting := b.state == StateStarting
	if starting {
		b.state = StateFailed
		b.lastErr = err.Error()
		b.cancel()
		b.cancel, b.bootDone = nil, nil
	}
	b.mu.Unlock()
	if !starting {
		// Stop canceled the bootstrap
		b.logger.DebugContext(ctx, "bootstrap abandoned", "error", err)
		return
	}
	metrics.IncrementBootstrap(metrics.StatusFailed)
	b.logger.ErrorContext(ctx, "bot start failed", "error", err)
}

func (b *Bot) observe(res responder.CycleResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles++
	b.lastCycle = &res
	b.totals.Seen += res.Seen
	b.totals.Replied += res.Replied
	b.totals.Archived += res.Archived
	b.totals.Failed += res.Failed
	b.totals.Skipped += res.Skipped
}
