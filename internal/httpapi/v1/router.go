package v1

import (
    "net/http"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/go-playground/validator/v10"
    "log/slog"

    "github.com/tinoosan/banking/internal/service/account"
)

// Server wires handlers and middleware using Chi.
// Business rules live in the account service; handlers only translate.
type Server struct {
    svc      account.Service
    ready    []ReadyChecker
    validate *validator.Validate
    log      *slog.Logger
    rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging and panic recovery. Every ReadyChecker
// must pass for /readyz to report ready.
func New(svc account.Service, logger *slog.Logger, ready ...ReadyChecker) *Server {
    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(requestLogger(logger))
    r.Use(recoverer(logger))
    r.Use(metricsMiddleware)

    s := &Server{
        svc:      svc,
        ready:    ready,
        validate: validator.New(),
        log:      logger,
        rt:       r,
    }
    s.routes()
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
    s.rt.Route("/v1", s.accountRoutes)
    // Same surface under the legacy /api prefix.
    s.rt.Route("/api", s.accountRoutes)
    // Health and metrics (unversioned)
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}

func (s *Server) accountRoutes(r chi.Router) {
    r.With(s.validatePostAccount()).Post("/accounts", s.postAccount)
    r.Get("/accounts", s.listAccounts)
    r.With(s.validateTransfer()).Post("/accounts/transfer", s.postTransfer)
    r.Get("/accounts/{id}", s.getAccount)
    r.Delete("/accounts/{id}", s.deleteAccount)
    r.With(s.validateMovement()).Put("/accounts/{id}/deposit", s.deposit)
    r.With(s.validateMovement()).Put("/accounts/{id}/withdraw", s.withdraw)
    r.Get("/accounts/{id}/transactions", s.listTransactions)
}
