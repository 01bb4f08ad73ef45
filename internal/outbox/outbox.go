package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"playpoints/internal/models"
)

// DefaultKey is the Redis list holding undelivered ledger entries
const DefaultKey = "playpoints:ledger:outbox"

// Outbox holds ledger entries whose append failed until they can be replayed
type Outbox interface {
	Enqueue(ctx context.Context, entry models.LedgerEntry) error
	// Drain replays queued entries in order through deliver, stopping at the
	// first delivery error. It returns how many entries were delivered.
	Drain(ctx context.Context, max int, deliver func(models.LedgerEntry) error) (int, error)
}

// Redis is an Outbox backed by a Redis list. Delivery is at-least-once: an
// entry is removed only after deliver succeeds.
type Redis struct {
	rdb *redis.Client
	key string
}

// New connects to Redis at dsn
func New(dsn string) (*Redis, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ConnMaxLifetime = 30 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return NewWithClient(rdb, DefaultKey), nil
}

// NewWithClient wraps an existing client
func NewWithClient(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

// Close closes the Redis client
func (o *Redis) Close() error {
	return o.rdb.Close()
}

type record struct {
	UserID          string    `json:"user_id"`
	GuildID         string    `json:"guild_id"`
	Points          int       `json:"points"`
	InteractionType string    `json:"interaction_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// Enqueue appends entry to the retry queue
func (o *Redis) Enqueue(ctx context.Context, entry models.LedgerEntry) error {
	payload, err := json.Marshal(record(entry))
	if err != nil {
		return fmt.Errorf("failed to encode outbox entry: %w", err)
	}
	if err := o.rdb.RPush(ctx, o.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

// Drain hands up to max queued entries to deliver, oldest first
func (o *Redis) Drain(ctx context.Context, max int, deliver func(models.LedgerEntry) error) (int, error) {
	delivered := 0
	for delivered < max {
		raw, err := o.rdb.LIndex(ctx, o.key, 0).Result()
		if errors.Is(err, redis.Nil) {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("failed to read outbox: %w", err)
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Unreadable entries would block the queue forever.
			if err := o.rdb.LPop(ctx, o.key).Err(); err != nil {
				return delivered, fmt.Errorf("failed to drop corrupt outbox entry: %w", err)
			}
			continue
		}

		if err := deliver(models.LedgerEntry(rec)); err != nil {
			return delivered, err
		}
		if err := o.rdb.LPop(ctx, o.key).Err(); err != nil {
			return delivered, fmt.Errorf("failed to pop outbox entry: %w", err)
		}
		delivered++
	}
	return delivered, nil
}

// Len returns the number of queued entries
func (o *Redis) Len(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, o.key).Result()
}

// Discard drops failed entries. It is used when no Redis is configured.
type Discard struct{}

func (Discard) Enqueue(context.Context, models.LedgerEntry) error {
	return errors.New("no ledger outbox configured")
}

func (Discard) Drain(context.Context, int, func(models.LedgerEntry) error) (int, error) {
	return 0, nil
}
