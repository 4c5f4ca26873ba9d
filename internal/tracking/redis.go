package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finlens-ai/invoice-engine/internal/domain"
)

const redisKeyPrefix = "invoice-engine:processed:"

// Redis is a Tracker backed by Redis, for deployments where runs repeat on a
// schedule and processed state must survive restarts.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Tracker = (*Redis)(nil)

// RedisConfig configures the Redis tracker. A zero TTL keeps entries forever.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping verifies connectivity, for startup checks.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return domain.IOError("redis ping failed", err)
	}
	return nil
}

func (r *Redis) IsProcessed(ctx context.Context, fileID, sheetID string) (bool, error) {
	entry, err := r.get(ctx, fileID, sheetID)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Status == StatusCompleted, nil
}

func (r *Redis) MarkProcessing(ctx context.Context, entry Entry) error {
	entry.Status = StatusProcessing
	entry.ProcessedAt = time.Now().UTC()
	return r.put(ctx, entry)
}

func (r *Redis) MarkCompleted(ctx context.Context, fileID, sheetID string) error {
	return r.transition(ctx, fileID, sheetID, StatusCompleted, "")
}

func (r *Redis) MarkFailed(ctx context.Context, fileID, sheetID, reason string) error {
	return r.transition(ctx, fileID, sheetID, StatusFailed, reason)
}

func (r *Redis) transition(ctx context.Context, fileID, sheetID string, status Status, reason string) error {
	entry, err := r.get(ctx, fileID, sheetID)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &Entry{FileID: fileID, SheetID: sheetID}
	}
	entry.Status = status
	entry.Error = reason
	entry.ProcessedAt = time.Now().UTC()
	return r.put(ctx, *entry)
}

func (r *Redis) get(ctx context.Context, fileID, sheetID string) (*Entry, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+trackingKey(fileID, sheetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.IOError("failed to read tracking entry", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, domain.IOError("corrupt tracking entry", err)
	}
	return &entry, nil
}

func (r *Redis) put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return domain.IOError("failed to encode tracking entry", err)
	}
	key := redisKeyPrefix + trackingKey(entry.FileID, entry.SheetID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return domain.IOError("failed to write tracking entry", err)
	}
	return nil
}
