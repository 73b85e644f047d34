package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus represents the result of a health check
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult contains the result of a single component check
type CheckResult struct {
	Component string        `json:"component"`
	Status    CheckStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker is one component probe
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	IsCritical() bool
}

// Manager runs registered checkers and serves probe endpoints. Readiness
// requires all critical checkers healthy; liveness only requires the
// process to respond.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs all checkers and returns per-component results plus the
// aggregate status
func (m *Manager) Check(ctx context.Context) (CheckStatus, []CheckResult) {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	overall := StatusHealthy
	results := make([]CheckResult, 0, len(checkers))
	for _, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		result := checker.Check(checkCtx)
		cancel()
		results = append(results, result)

		switch {
		case result.Status == StatusUnhealthy && checker.IsCritical():
			overall = StatusUnhealthy
		case result.Status != StatusHealthy && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall, results
}

// Ready reports whether every critical dependency is reachable
func (m *Manager) Ready(ctx context.Context) bool {
	overall, _ := m.Check(ctx)
	return overall != StatusUnhealthy
}

func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/readiness", m.handleReadiness)
	mux.HandleFunc("/liveness", m.handleLiveness)
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall, results := m.Check(r.Context())
	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC(),
	})
}

func (m *Manager) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !m.Ready(r.Context()) {
		http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (m *Manager) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"alive"}`))
}
