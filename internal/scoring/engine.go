package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"playpoints/internal/config"
	"playpoints/internal/logging"
	"playpoints/internal/metrics"
	"playpoints/internal/models"
	"playpoints/internal/outbox"
)

// outboxBatch caps how many queued entries one tick replays
const outboxBatch = 500

// SnapshotProvider reads live presence state from the gateway cache
type SnapshotProvider interface {
	GuildIDs() []string
	Snapshot(guildID string) (models.GuildSnapshot, bool)
}

// LedgerStore appends point entries
type LedgerStore interface {
	AppendLedgerEntry(ctx context.Context, entry models.LedgerEntry) error
}

// GuildConfigs resolves per-guild configuration
type GuildConfigs interface {
	Guild(guildID string) *config.GuildConfig
}

// Engine awards points from live presence once per tick
type Engine struct {
	snapshots SnapshotProvider
	ledger    LedgerStore
	outbox    outbox.Outbox
	guilds    GuildConfigs
	logger    *logging.Logger
	metrics   *metrics.Metrics
	location  *time.Location
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithOutbox queues failed ledger writes for replay
func WithOutbox(o outbox.Outbox) Option {
	return func(e *Engine) { e.outbox = o }
}

// WithMetrics records awarded points and write failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the tick clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the canonical zone used for the even-minute rule
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// NewEngine creates a new scoring engine
func NewEngine(snapshots SnapshotProvider, ledger LedgerStore, guilds GuildConfigs, logger *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		snapshots: snapshots,
		ledger:    ledger,
		guilds:    guilds,
		logger:    logger.With("component", "scoring"),
		outbox:    outbox.Discard{},
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick evaluates every guild once. Per-member write failures are logged and
// queued; they never abort the pass.
func (e *Engine) Tick(ctx context.Context) error {
	now := e.now()
	e.replayOutbox(ctx)

	evenMinute := now.In(e.location).Minute()%2 == 0
	for _, guildID := range e.snapshots.GuildIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, ok := e.snapshots.Snapshot(guildID)
		if !ok {
			continue
		}
		cfg := e.guilds.Guild(guildID)
		awards := Evaluate(snap, cfg.IsIgnored, evenMinute)

		credited := 0
		for _, award := range awards {
			entry := models.LedgerEntry{
				UserID:          award.UserID,
				GuildID:         guildID,
				Points:          award.Points,
				InteractionType: models.InteractionMinuteTick,
				CreatedAt:       now,
			}
			if err := e.ledger.AppendLedgerEntry(ctx, entry); err != nil {
				e.handleWriteFailure(ctx, entry, err)
				continue
			}
			credited += award.Points
		}

		e.metrics.ObservePoints(guildID, credited)
		e.logger.Debug("tick_completed", "guild_id", guildID, "members", len(awards), "points", credited)
	}
	return nil
}

func (e *Engine) handleWriteFailure(ctx context.Context, entry models.LedgerEntry, err error) {
	e.metrics.ObserveLedgerFailure()
	if qerr := e.outbox.Enqueue(ctx, entry); qerr != nil {
		e.logger.Error("ledger_append_lost",
			"guild_id", entry.GuildID,
			"user_id", entry.UserID,
			"points", entry.Points,
			"error", err,
			"outbox_error", qerr,
		)
		return
	}
	e.logger.Warn("ledger_append_queued",
		"guild_id", entry.GuildID,
		"user_id", entry.UserID,
		"points", entry.Points,
		"error", err,
	)
}

func (e *Engine) replayOutbox(ctx context.Context) {
	n, err := e.outbox.Drain(ctx, outboxBatch, func(entry models.LedgerEntry) error {
		return e.ledger.AppendLedgerEntry(ctx, entry)
	})
	if n > 0 {
		e.metrics.ObserveOutboxReplayed(n)
		e.logger.Info("outbox_replayed", "entries", n)
	}
	if err != nil {
		e.logger.Warn("outbox_replay_stopped", "replayed", n, "error", err)
	}
}

// ErrInvalidPenalty is returned for a non-positive penalty amount
var ErrInvalidPenalty = errors.New("penalty must be a positive number of points")

// Penalize appends a negative entry removing points from a member
func (e *Engine) Penalize(ctx context.Context, guildID, userID string, points int, reason string) error {
	if points <= 0 {
		return ErrInvalidPenalty
	}
	entry := models.LedgerEntry{
		UserID:          userID,
		GuildID:         guildID,
		Points:          -points,
		InteractionType: models.InteractionPenalty,
		CreatedAt:       e.now(),
	}
	if err := e.ledger.AppendLedgerEntry(ctx, entry); err != nil {
		e.metrics.ObserveLedgerFailure()
		return fmt.Errorf("failed to apply penalty: %w", err)
	}
	e.logger.Info("penalty_applied", "guild_id", guildID, "user_id", userID, "points", points, "reason", reason)
	return nil
}
