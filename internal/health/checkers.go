package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const degradedLatency = 100 * time.Millisecond

// PostgresChecker pings the database pool
type PostgresChecker struct {
	db *sqlx.DB
}

func NewPostgresChecker(db *sqlx.DB) *PostgresChecker {
	return &PostgresChecker{db: db}
}

func (p *PostgresChecker) Name() string     { return "postgres" }
func (p *PostgresChecker) IsCritical() bool { return true }

func (p *PostgresChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "postgres", Critical: true}

	if err := p.db.PingContext(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Postgres ping failed"
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Duration > degradedLatency {
		result.Status = StatusDegraded
		result.Message = "Postgres responding with high latency"
	} else {
		result.Status = StatusHealthy
	}
	return result
}

// RedisChecker pings the status cache. Redis is not critical: session
// status falls back to the database when the cache is down.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string     { return "redis" }
func (r *RedisChecker) IsCritical() bool { return false }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis"}

	if err := r.client.Ping(ctx).Err(); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Duration > degradedLatency {
		result.Status = StatusDegraded
		result.Message = "Redis responding with high latency"
	} else {
		result.Status = StatusHealthy
	}
	return result
}

// EngineChecker probes the research engine's health endpoint. The engine
// being down degrades the service rather than failing it: sessions queue
// and retry.
type EngineChecker struct {
	baseURL string
	client  *http.Client
}

func NewEngineChecker(baseURL string) *EngineChecker {
	return &EngineChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (e *EngineChecker) Name() string     { return "research_engine" }
func (e *EngineChecker) IsCritical() bool { return false }

func (e *EngineChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "research_engine"}

	if e.baseURL == "" {
		result.Status = StatusDegraded
		result.Message = "research engine not configured"
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	resp, err := e.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "research engine unreachable"
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("status %d", resp.StatusCode)
		result.Message = "research engine unhealthy"
		return result
	}
	result.Status = StatusHealthy
	return result
}
