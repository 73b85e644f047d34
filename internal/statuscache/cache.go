package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crestonhq/researchd/internal/metrics"
)

// ErrMiss is returned when no cached status exists for a session
var ErrMiss = errors.New("status not cached")

// Entry is the cached view of a session's lifecycle state, kept hot for
// polling clients so status reads don't hit Postgres on every poll.
type Entry struct {
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cache is a Redis-backed session status cache. Writes happen on every
// status transition; a short TTL bounds staleness if a transition write is
// ever lost.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and returns a cache
func New(addr, password string, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		ttl:    24 * time.Hour,
		logger: logger,
	}, nil
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying Redis client for health checks
func (c *Cache) Client() *redis.Client {
	return c.client
}

func key(sessionID string) string {
	return "research:status:" + sessionID
}

// Set records a session's current status. Failures are logged, not
// propagated: the database remains the source of truth.
func (c *Cache) Set(ctx context.Context, sessionID, status, errorMessage string) {
	entry := Entry{
		SessionID:    sessionID,
		Status:       status,
		ErrorMessage: errorMessage,
		UpdatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(sessionID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Status cache write failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// Get returns the cached status for a session, or ErrMiss
func (c *Cache) Get(ctx context.Context, sessionID string) (*Entry, error) {
	data, err := c.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.StatusCacheHits.WithLabelValues("miss").Inc()
		return nil, ErrMiss
	}
	if err != nil {
		metrics.StatusCacheHits.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("status cache read: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		metrics.StatusCacheHits.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("status cache decode: %w", err)
	}
	metrics.StatusCacheHits.WithLabelValues("hit").Inc()
	return &entry, nil
}
