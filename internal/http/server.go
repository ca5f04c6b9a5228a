package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetpro/internal/log"
	"budgetpro/internal/middleware/ratelimit"
	"budgetpro/internal/middleware/security"
	"budgetpro/internal/middleware/trace"
	"budgetpro/internal/services"
)

// Deps are the services the API is served from.
type Deps struct {
	Items          *services.ItemService
	Accounts       *services.AccountService
	Query          *services.QueryService
	Mutation       *services.MutationService
	Budgets        *services.BudgetService
	Reconciliation *services.ReconciliationService
	// Ready reports store readiness for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	deps    Deps
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}

	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /items", s.handleLinkItem)
	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("POST /items/{id}/sync", s.handleSyncItem)
	mux.HandleFunc("POST /link/token", s.handleCreateLinkToken)

	mux.HandleFunc("GET /accounts", s.handleListAccounts)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("PATCH /transactions/{id}/category", s.handleSetCategory)

	mux.HandleFunc("POST /budget/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /budget/categories", s.handleListCategories)
	mux.HandleFunc("DELETE /budget/categories/{id}", s.handleArchiveCategory)
	mux.HandleFunc("POST /budget/periods", s.handleCreatePeriod)
	mux.HandleFunc("GET /budget/periods/{id}", s.handleGetPeriod)
	mux.HandleFunc("GET /budget/periods/{id}/allocations", s.handleListAllocations)
	mux.HandleFunc("GET /budget/periods/{id}/summary", s.handlePeriodSummary)
	mux.HandleFunc("POST /budget/allocations", s.handleSetAllocation)

	detector := security.NewDetector()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP, logger)

	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded").Write(w, r)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(detector.Middleware(limited(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w, r)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "store unavailable").Write(w, r)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w, r)
}
