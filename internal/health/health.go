// Package health отдаёт состояние процесса и его зависимостей для probe-ов.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status — состояние компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check описывает результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Critical   bool   `json:"critical"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Ready сообщает, можно ли направлять трафик: degraded считается готовым.
func (r Response) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Checker проверяет одну зависимость.
type Checker interface {
	Check(ctx context.Context) Check
}

type probe struct {
	checker  Checker
	critical bool
}

// Handler агрегирует проверки. Отказ критичной зависимости (хранилище) делает сервис
// unhealthy; отказ некритичной (брокер, Redis) понижает его до degraded.
type Handler struct {
	mu      sync.RWMutex
	probes  map[string]probe
	version string
	started time.Time
	timeout time.Duration
}

// NewHandler создаёт handler.
func NewHandler(version string) *Handler {
	return &Handler{
		probes:  map[string]probe{},
		version: version,
		started: time.Now(),
		timeout: defaultCheckTimeout,
	}
}

// RegisterChecker добавляет или заменяет проверку name.
func (h *Handler) RegisterChecker(name string, checker Checker, critical bool) {
	h.mu.Lock()
	h.probes[name] = probe{checker: checker, critical: critical}
	h.mu.Unlock()
}

// Report запускает все проверки параллельно, каждую не дольше timeout.
func (h *Handler) Report(ctx context.Context) Response {
	h.mu.RLock()
	probes := make(map[string]probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		checks = make(map[string]Check, len(probes))
	)
	for name, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := p.checker.Check(ctx)
			check.Critical = p.critical
			if !p.critical && check.Status == StatusUnhealthy {
				check.Status = StatusDegraded
			}
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overall = StatusUnhealthy
			break
		}
		if check.Status == StatusDegraded {
			overall = StatusDegraded
		}
	}

	return Response{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
}

// ServeHTTP отдаёт подробный отчёт; 503, если сервис unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())
	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler отвечает 503, пока недоступна хоть одна критичная зависимость.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.Report(r.Context()).Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// PingChecker оборачивает функцию вида Ping(ctx).
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: c.name, Status: StatusHealthy}
	if err := c.ping(ctx); err != nil {
		check.Status, check.Message = StatusUnhealthy, err.Error()
	}
	check.DurationMs = time.Since(start).Milliseconds()
	return check
}
