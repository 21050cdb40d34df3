package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready when the expense store answers. The directory
// loads on demand and the mirror may be down, so both are reported without
// failing readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]any)

	if _, err := s.expenses.List(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	switch {
	case s.directory == nil:
		checks["directory"] = "not_configured"
	default:
		if snap, err := s.directory.Snapshot(); err != nil {
			checks["directory"] = "not_loaded"
		} else {
			checks["directory"] = map[string]any{"academies": len(snap.Academies), "asOf": snap.AsOf}
		}
	}

	if s.sync != nil {
		checks["mirror"] = s.sync.Status()
	} else {
		checks["mirror"] = "not_configured"
	}

	checks["rate_limiter"] = map[string]any{
		"login_clients": s.loginLimiter.ActiveClients(),
		"write_clients": s.writeLimiter.ActiveClients(),
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	trace := s.tracer.GetMetrics()
	var expenses int
	if list, err := s.expenses.List(r.Context()); err == nil {
		expenses = len(list)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", trace.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", trace.ServerErrors)
	metric("http_suspicious_requests_total", "counter", "Requests rejected as scans", s.detector.Suspicious())
	metric("rate_limiter_active_clients", "gauge", "Clients tracked by the write limiter", s.writeLimiter.ActiveClients())
	metric("expenses", "gauge", "Expenses currently stored", expenses)
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
	if s.sync != nil {
		st := s.sync.Status()
		metric("mirror_dirty", "gauge", "1 while local changes wait for the mirror", boolGauge(st.Dirty))
		metric("mirror_loaded", "gauge", "1 once the mirror copy was pulled", boolGauge(st.Loaded))
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
