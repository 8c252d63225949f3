package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendly/internal/auth"
	"spendly/internal/core"
	applog "spendly/internal/log"
	"spendly/internal/middleware/ratelimit"
	"spendly/internal/middleware/security"
	"spendly/internal/middleware/trace"
	"spendly/internal/services"
)

// Service ports used by the handlers.
type (
	Accounts interface {
		Register(ctx context.Context, in services.RegisterInput) (services.AuthResult, error)
		Login(ctx context.Context, email, password string) (services.AuthResult, error)
		Me(ctx context.Context, userID string) (core.User, error)
		UpdateProfile(ctx context.Context, userID string, p services.ProfilePatch) (core.User, error)
	}

	ExpenseWriter interface {
		Create(ctx context.Context, userID string, in services.ExpenseInput) (core.Expense, error)
		Update(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error)
		Delete(ctx context.Context, userID, id string) error
	}

	ExpenseReader interface {
		List(ctx context.Context, userID string, q services.ListQuery) (services.ListResult, error)
		Export(ctx context.Context, userID string, f core.Filter) ([]core.Expense, error)
		MonthlyTrend(ctx context.Context, userID string) ([]core.MonthTotal, error)
		Stats(ctx context.Context, userID string) (core.Stats, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

var (
	_ Accounts      = (*services.UserService)(nil)
	_ ExpenseWriter = (*services.ExpenseService)(nil)
	_ ExpenseReader = (*services.ReportService)(nil)
)

// Deps are the collaborators of the API.
type Deps struct {
	Accounts Accounts
	Expenses ExpenseWriter
	Reports  ExpenseReader
	Tokens   auth.Verifier
	Store    Pinger
	Logger   *applog.Logger
}

type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server
	deps Deps
	opts Options

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}

	s := &Server{
		deps:     deps,
		opts:     opts,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.deps.Logger.WithComponent(applog.ComponentHTTP), trace.RequestIDFromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, tooManyRequests))
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Use(security.NoStore)

		r.Post("/users/register", s.handleRegister)
		r.Post("/users/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.deps.Tokens))

			r.Get("/users/me", s.handleMe)
			r.Put("/users/me", s.handleUpdateProfile)
			r.Get("/categories", handleCategories)

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", s.handleCreateExpense)
				r.Get("/", s.handleListExpenses)
				r.Get("/export", s.handleExportExpenses)
				r.Get("/stats", s.handleStats)
				r.Get("/stats/chart.png", s.handleTrendChart)
				r.Get("/stats/categories.png", s.handleCategoryChart)
				r.Put("/{id}", s.handleUpdateExpense)
				r.Delete("/{id}", s.handleDeleteExpense)
			})
		})
	})

	return r
}

// Shutdown stops the background sweepers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "Store unavailable").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
