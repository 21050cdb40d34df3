package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"yesan/internal/directory"
	applog "yesan/internal/log"
	"yesan/internal/middleware/ratelimit"
	"yesan/internal/middleware/security"
	"yesan/internal/middleware/trace"
	"yesan/internal/mirror"
	"yesan/internal/services"
)

// SyncController is the manual mirror control surface. Both the inline
// syncer and the AMQP publisher satisfy it.
type SyncController interface {
	Status() mirror.Status
	Pull(ctx context.Context) error
	PushNow(ctx context.Context) error
}

// Deps are the services behind the API. Directory and Gate are optional;
// without them the directory routes answer 503.
type Deps struct {
	Expenses  *services.ExpenseService
	Directory *directory.Service
	Gate      *directory.Gate
	Sync      SyncController
	Logger    *applog.Logger
}

// Options tune the server.
type Options struct {
	// SessionTTL is the cookie lifetime; it should match the session cache.
	SessionTTL time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// RequestTimeout bounds handler execution and the server's I/O timeouts.
	RequestTimeout time.Duration
	// MaxUploadBytes bounds receipt images and CSV files.
	MaxUploadBytes int64
	// LoginLimit and WriteLimit override the default per-IP limits.
	LoginLimit ratelimit.Config
	WriteLimit ratelimit.Config
}

func (o *Options) defaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 12 * time.Hour
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.LoginLimit.Limit <= 0 {
		o.LoginLimit = ratelimit.LoginConfig()
	}
	if o.WriteLimit.Limit <= 0 {
		o.WriteLimit = ratelimit.DefaultConfig()
	}
}

// Server is the API server.
type Server struct {
	http.Server

	expenses  *services.ExpenseService
	directory *directory.Service
	gate      *directory.Gate
	sync      SyncController
	logger    *applog.Logger
	opts      Options

	detector     *security.Detector
	tracer       *trace.Middleware
	loginLimiter *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	opts.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		expenses:     deps.Expenses,
		directory:    deps.Directory,
		gate:         deps.Gate,
		sync:         deps.Sync,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		opts:         opts,
		started:      time.Now(),
		detector:     security.NewDetector(logger),
		loginLimiter: ratelimit.NewLimiter(opts.LoginLimit),
		writeLimiter: ratelimit.NewLimiter(opts.WriteLimit),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, opts.RequestTimeout, `{"error":"request timed out"}`)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.RequestTimeout,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/directory/login", s.limitLogin(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /api/directory/logout", s.handleLogout)
	mux.Handle("GET /api/directory/academies", s.requireSession(s.handleSearch))
	mux.Handle("GET /api/directory/suggest", s.requireSession(s.handleSuggest))
	mux.Handle("GET /api/directory/academies/{name}", s.requireSession(s.handleAcademy))
	mux.Handle("POST /api/directory/reload", s.requireSession(s.handleReload))

	mux.HandleFunc("GET /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.Handle("POST /api/expenses", s.limitWrites(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/by-category", s.handleByCategory)
	mux.HandleFunc("GET /api/expenses/by-month", s.handleByMonth)
	mux.Handle("PUT /api/expenses/{id}", s.limitWrites(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.limitWrites(s.handleDeleteExpense))
	mux.Handle("POST /api/expenses/{id}/paid-now", s.limitWrites(s.handlePaidNow))
	mux.Handle("PUT /api/expenses/{id}/reimbursement", s.limitWrites(s.handleReimbursement))

	mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	mux.Handle("POST /api/receipts", s.limitWrites(s.handleUploadReceipt))
	mux.HandleFunc("GET /api/export.csv", s.handleExport)
	mux.Handle("POST /api/import", s.limitWrites(s.handleImport))
	mux.Handle("POST /api/reset", s.limitWrites(s.handleReset))

	mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)
	mux.Handle("POST /api/sync/pull", s.limitWrites(s.handleSyncPull))
	mux.Handle("POST /api/sync/push", s.limitWrites(s.handleSyncPush))
}

func (s *Server) limitLogin(next http.Handler) http.Handler {
	return s.loginLimiter.Middleware(s.detector.ExtractClientIP, s.onLimit)(next)
}

func (s *Server) limitWrites(next http.HandlerFunc) http.Handler {
	return s.writeLimiter.Middleware(s.detector.ExtractClientIP, s.onLimit)(next)
}

func (s *Server) onLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	logger := applog.FromContext(r.Context())
	switch code := StatusFor(err); {
	case code >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldOperation, op, applog.FieldError, err, applog.FieldStatusCode, code)
	default:
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldOperation, op, applog.FieldError, err, applog.FieldStatusCode, code)
	}
	resp.Write(w)
}

// Shutdown stops the limiters and gracefully shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		s.writeLimiter.Stop()

		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopping",
			applog.FieldOperation, applog.OpShutdown,
			"requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"suspicious", s.detector.Suspicious())

		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ListenAndServe treats http.ErrServerClosed as a clean stop.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
