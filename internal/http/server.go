package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"babybudget/internal/core"
	"babybudget/internal/log"
	"babybudget/internal/metrics"
	mwauth "babybudget/internal/middleware/auth"
	"babybudget/internal/middleware/ratelimit"
	"babybudget/internal/middleware/security"
	"babybudget/internal/middleware/trace"
	"babybudget/internal/services"
)

// BudgetAPI is the part of the budget service the handlers need.
type BudgetAPI interface {
	SetPeriodBudget(ctx context.Context, userID string, p core.PeriodBudget) (core.PeriodBudget, error)
	ListPeriodBudgets(ctx context.Context, userID string) ([]core.PeriodBudget, error)
	MonthOverview(ctx context.Context, userID string, year, month int) (core.MonthOverview, error)
	AddSpending(ctx context.Context, userID string, n core.NewSpending) (services.AddedSpending, error)
	AddSpendings(ctx context.Context, userID string, items []core.NewSpending) ([]core.SpendingEntry, error)
	ListSpending(ctx context.Context, userID string) (services.SpendingList, error)
	ListSpendingByCategory(ctx context.Context, userID, category string) (services.CategoryList, error)
	UpdateSpending(ctx context.Context, userID, uid string, n core.NewSpending) (core.SpendingEntry, error)
	DeleteSpending(ctx context.Context, userID, uid string) error
	DeleteBudget(ctx context.Context, userID string) error
	Ready(ctx context.Context) error
}

type Options struct {
	Logger   *log.Logger
	Tokens   mwauth.Verifier
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics
	Detector *security.Detector
	Headers  *security.HeadersConfig
}

type Server struct {
	http.Server
	api     BudgetAPI
	router  *mux.Router
	logger  *log.Logger
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
// Every /budget route requires a bearer token.
func NewServer(addr string, api BudgetAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := opts.Detector
	if detector == nil {
		detector = security.NewDetector(logger)
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	s := &Server{
		api:     api,
		router:  mux.NewRouter(),
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		now:     time.Now,
	}

	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Cannot " + r.Method + " " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(s.allowedMethods(r)).Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	routes := r.PathPrefix("/budget").Subrouter()
	routes.Use(mwauth.Middleware(opts.Tokens, func(w http.ResponseWriter, r *http.Request, err error) {
		UnauthorizedError("Unauthorized").Write(w)
	}))
	if s.limiter != nil {
		routes.Use(s.limiter.Middleware(func(r *http.Request) string {
			if id := mwauth.UserID(r.Context()); id != "" {
				return "user:" + id
			}
			return "ip:" + detector.ExtractClientIP(r)
		}, s.onRateLimited))
	}

	routes.HandleFunc("", s.handleSetPeriodBudget).Methods(http.MethodPost)
	routes.HandleFunc("", s.handleListPeriodBudgets).Methods(http.MethodGet)
	routes.HandleFunc("", s.handleDeleteBudget).Methods(http.MethodDelete)
	routes.HandleFunc("/overview", s.handleMonthOverview).Methods(http.MethodGet)
	routes.HandleFunc("/spending", s.handleAddSpending).Methods(http.MethodPost)
	routes.HandleFunc("/spendings", s.handleAddSpendings).Methods(http.MethodPost)
	routes.HandleFunc("/spending", s.handleListSpending).Methods(http.MethodGet)
	routes.HandleFunc("/spending/{category}", s.handleListSpendingByCategory).Methods(http.MethodGet)
	routes.HandleFunc("/spending/{uid}", s.handleUpdateSpending).Methods(http.MethodPut)
	routes.HandleFunc("/spending/{uid}", s.handleDeleteSpending).Methods(http.MethodDelete)

	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP, s.observe)
	var handler http.Handler = r
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited()
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests, please try again later").Write(w)
}

// observe feeds request metrics labelled by route template.
func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	if s.metrics == nil {
		return
	}
	route := "unmatched"
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	s.metrics.ObserveHTTP(r.Method, route, status, d)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// allowedMethods lists the methods registered for the request's path.
func (s *Server) allowedMethods(r *http.Request) string {
	var allowed []string
	seen := map[string]bool{}
	_ = s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			if seen[m] {
				continue
			}
			candidate := r.Clone(r.Context())
			candidate.Method = m
			var match mux.RouteMatch
			if route.Match(candidate, &match) {
				seen[m] = true
				allowed = append(allowed, m)
			}
		}
		return nil
	})
	return strings.Join(allowed, ", ")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Ready(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "Service not ready").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
