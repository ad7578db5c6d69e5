package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MinhajJamraiz/natours/pkg/httputil"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Report is the body of the health endpoints.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type check struct {
	fn       Check
	critical bool
}

// Handler serves liveness and readiness. A failing critical check makes the
// service unready (503); a failing optional check only degrades it.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	now     func() time.Time
}

func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{checks: make(map[string]check), timeout: timeout, now: time.Now}
}

// Critical registers a check the service cannot serve without.
func (h *Handler) Critical(name string, fn Check) { h.register(name, fn, true) }

// Optional registers a check whose failure only degrades the service.
func (h *Handler) Optional(name string, fn Check) { h.register(name, fn, false) }

func (h *Handler) register(name string, fn Check, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: critical}
}

// Names lists the registered checks.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes every check concurrently.
func (h *Handler) Run(ctx context.Context) Report {
	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for n, c := range h.checks {
		checks[n] = c
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for name, c := range checks {
		g.Go(func() error {
			res := CheckResult{Status: StatusUp, Critical: c.critical}
			if err := c.fn(gctx); err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := StatusUp
	for _, r := range results {
		if r.Status != StatusDown {
			continue
		}
		if r.Critical {
			status = StatusDown
			break
		}
		status = StatusDegraded
	}
	return Report{Status: status, Timestamp: h.now().UTC(), Checks: results}
}

// Live answers 200 while the process runs.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, Report{Status: StatusUp, Timestamp: h.now().UTC()})
}

// Ready runs the checks and answers 503 when a critical one fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rep := h.Run(r.Context())
	code := http.StatusOK
	if rep.Status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, rep)
}
