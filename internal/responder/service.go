package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/replybot/internal/gmail"
	"github.com/joshsymonds/replybot/internal/ledger"
	"github.com/joshsymonds/replybot/internal/metrics"
	"github.com/joshsymonds/replybot/internal/rate"
)

func metadataHeaders() []string {
	return []string{gmail.HeaderSubject, gmail.HeaderFrom, gmail.HeaderMessageID}
}

// Options controls one responder cycle.
type Options struct {
	Query       gmail.Query
	Body        string
	DryRun      bool
	CallTimeout time.Duration // per Gmail call; zero means no extra deadline
}

// Recorder receives one entry per handled message.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

// Service answers unreplied mail and archives it.
type Service struct {
	Client   gmail.Client
	Limiter  rate.Limiter
	Logger   *slog.Logger
	Recorder Recorder
	Clock    func() time.Time
	NewID    func() string
	Options  Options
}

// NewService constructs a Service with the default query and no ledger.
func NewService(client gmail.Client, limiter rate.Limiter, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	if opts.Query.Raw == "" {
		opts.Query = gmail.UnrepliedQuery
	}
	return &Service{
		Client:  client,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
		NewID:   uuid.NewString,
		Options: opts,
	}
}

// CycleResult summarizes one RunCycle.
type CycleResult struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Listed    bool          `json:"listed"`
	Seen      int           `json:"seen"`
	Replied   int           `json:"replied"`
	Archived  int           `json:"archived"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

// RunCycle lists unreplied mail and handles each message in provider order.
// It never returns an error: every fault is logged and scoped to the message it hit.
func (s *Service) RunCycle(ctx context.Context, labelID gmail.LabelID) CycleResult {
	res := CycleResult{CycleID: s.NewID(), StartedAt: s.Clock()}
	log := s.Logger.With("cycle", res.CycleID)
	defer func() {
		res.Duration = s.Clock().Sub(res.StartedAt)
		metrics.RecordCycle(res.Listed, res.Seen, res.Duration)
	}()

	ids, err := s.listUnreplied(ctx)
	if err != nil {
		log.ErrorContext(ctx, "error while fetching unreplied emails", "error", err)
		return res
	}
	res.Listed = true
	res.Seen = len(ids)
	if len(ids) == 0 {
		log.DebugContext(ctx, "no unreplied messages")
		return res
	}
	log.InfoContext(ctx, "found unreplied messages", "count", len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			log.InfoContext(ctx, "cycle interrupted", "remaining", len(ids)-res.Replied-res.Failed-res.Skipped)
			break
		}
		out := s.handle(ctx, log, res.CycleID, id, labelID)
		switch {
		case out.skipped:
			res.Skipped++
		case out.sent:
			res.Replied++
		default:
			res.Failed++
		}
		if out.archived {
			res.Archived++
		}
	}
	log.InfoContext(ctx, "cycle complete",
		"seen", res.Seen, "replied", res.Replied, "archived", res.Archived,
		"failed", res.Failed, "skipped", res.Skipped)
	return res
}

type outcome struct {
	sent     bool
	archived bool
	skipped  bool
}

func (s *Service) handle(
	ctx context.Context,
	log *slog.Logger,
	cycleID string,
	id gmail.MessageID,
	labelID gmail.LabelID,
) outcome {
	log = log.With("message_id", string(id))
	entry := ledger.Entry{CycleID: cycleID, MessageID: string(id), ThreadID: string(id)}

	var meta gmail.MessageMeta
	err := s.call(ctx, "get metadata", func(ctx context.Context) error {
		var getErr error
		meta, getErr = s.Client.GetMetadata(ctx, id, metadataHeaders())
		return getErr
	})
	var reply Reply
	if err == nil {
		reply, err = BuildReply(meta, s.Options.Body)
	}
	if err != nil {
		entry.Error = err.Error()
		if errors.Is(err, ErrMissingHeader) || errors.Is(err, ErrNoAddress) {
			// the message stays unread in the inbox and is retried next cycle
			log.WarnContext(ctx, "skipping message", "error", err)
			metrics.IncrementReply(metrics.StatusSkipped)
			s.record(ctx, log, entry)
			return outcome{skipped: true}
		}
		log.ErrorContext(ctx, "error fetching message", "error", err)
		metrics.IncrementReply(metrics.StatusFailed)
		s.record(ctx, log, entry)
		return outcome{}
	}
	entry.ThreadID = string(reply.ThreadID)
	entry.To = reply.To
	entry.Subject = reply.Subject

	if s.Options.DryRun {
		log.InfoContext(ctx, "dry-run: would reply", "to", reply.To, "subject", reply.Subject)
		return outcome{sent: true}
	}

	var out outcome
	if err := s.call(ctx, "send reply", func(ctx context.Context) error {
		return s.Client.Send(ctx, reply.Outgoing())
	}); err != nil {
		log.ErrorContext(ctx, "error sending email", "to", reply.To, "error", err)
		metrics.IncrementReply(metrics.StatusFailed)
		entry.Error = err.Error()
	} else {
		log.InfoContext(ctx, "successfully replied", "to", reply.To, "subject", reply.Subject)
		metrics.IncrementReply(metrics.StatusSuccess)
		out.sent = true
	}
	entry.Sent = out.sent

	// the move is attempted even when the send failed
	ops := gmail.ModifyOps{AddLabels: []gmail.LabelID{labelID}, RemoveLabels: []gmail.LabelID{gmail.LabelInbox}}
	if err := s.call(ctx, "move to label", func(ctx context.Context) error {
		return s.Client.Modify(ctx, id, ops)
	}); err != nil {
		log.ErrorContext(ctx, "error while moving email to label", "label", string(labelID), "error", err)
		metrics.IncrementArchive(metrics.StatusFailed)
		if entry.Error == "" {
			entry.Error = err.Error()
		}
	} else {
		log.InfoContext(ctx, "moved email to label", "label", string(labelID))
		metrics.IncrementArchive(metrics.StatusSuccess)
		out.archived = true
	}
	entry.Archived = out.archived
	s.record(ctx, log, entry)
	return out
}

func (s *Service) listUnreplied(ctx context.Context) ([]gmail.MessageID, error) {
	var ids []gmail.MessageID
	err := s.call(ctx, "list unreplied", func(ctx context.Context) error {
		var listErr error
		ids, listErr = s.Client.ListMessages(ctx, s.Options.Query)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// call waits on the limiter and bounds fn by the configured call timeout.
func (s *Service) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if s.Options.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Options.CallTimeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, e ledger.Entry) {
	if s.Recorder == nil {
		return
	}
	e.HandledAt = s.Clock()
	if err := s.Recorder.Record(ctx, e); err != nil {
		log.WarnContext(ctx, "failed to record reply", "error", err)
	}
}
