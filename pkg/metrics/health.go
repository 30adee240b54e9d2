package metrics

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus orders from best to worst.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// DegradedErrorRate is the share of failed decrypts above which the vault
// reports itself degraded.
const DegradedErrorRate = 0.01

// CheckFunc returns nil when the checked component is usable.
type CheckFunc func() error

// CheckResult is one check's outcome.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthMetrics summarises the collector for /health.
type HealthMetrics struct {
	Encrypts      uint64  `json:"encrypts"`
	Decrypts      uint64  `json:"decrypts"`
	DecryptErrors uint64  `json:"decrypt_errors"`
	AuthFailures  uint64  `json:"auth_failures"`
	ErrorRate     float64 `json:"error_rate,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Metrics   *HealthMetrics         `json:"metrics,omitempty"`
}

// HealthCheck runs the registered checks and folds in the decrypt error
// rate. Any failing check makes the vault unhealthy; an error rate above
// DegradedErrorRate only degrades it.
type HealthCheck struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	collector *Collector
	started   time.Time
	version   string
}

func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		checks:    map[string]CheckFunc{},
		collector: collector,
		started:   time.Now(),
		version:   version,
	}
}

// AddCheck registers or replaces the check called name.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	h.checks[name] = check
	h.mu.Unlock()
}

func (h *HealthCheck) Check() HealthResponse {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for name, check := range checks {
		start := time.Now()
		res := CheckResult{Status: HealthStatusHealthy}
		if err := check(); err != nil {
			res.Status, res.Message = HealthStatusUnhealthy, err.Error()
		}
		res.Latency = time.Since(start).String()
		resp.Checks[name] = res
		resp.Status = worse(resp.Status, res.Status)
	}

	if h.collector == nil {
		return resp
	}
	snap := h.collector.Snapshot()
	m := &HealthMetrics{
		Encrypts:      snap.Encrypts,
		Decrypts:      snap.Decrypts,
		DecryptErrors: snap.TotalDecryptErrors(),
		AuthFailures:  snap.AuthFailures,
	}
	if attempts := m.Decrypts + m.DecryptErrors; attempts > 0 {
		m.ErrorRate = float64(m.DecryptErrors) / float64(attempts)
		if m.ErrorRate > DegradedErrorRate {
			resp.Status = worse(resp.Status, HealthStatusDegraded)
		}
	}
	resp.Metrics = m
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusCode(s HealthStatus) int {
	if s == HealthStatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Handler serves the full HealthResponse; degraded still answers 200.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := h.Check()
		writeJSON(w, statusCode(resp.Status), resp)
	})
}

// LivenessHandler answers 200 while the process runs.
func (h *HealthCheck) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler answers 503 while any check fails, e.g. before the
// keypair exists.
func (h *HealthCheck) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := h.Check().Status
		writeJSON(w, statusCode(status), map[string]any{
			"status": status,
			"ready":  status != HealthStatusUnhealthy,
		})
	})
}

// MemoryCheck fails once the in-use heap exceeds limit bytes.
func MemoryCheck(limit uint64) CheckFunc {
	return func() error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapInuse > limit {
			return fmt.Errorf("heap in use %d exceeds %d bytes", ms.HeapInuse, limit)
		}
		return nil
	}
}
