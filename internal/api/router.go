package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Verify(ctx context.Context, raw string) (auth.Identity, error)
}

type BookingService interface {
	ListAvailable(ctx context.Context) ([]booking.Slot, error)
	Book(ctx context.Context, userID, slotID uuid.UUID) (*booking.Booking, error)
	MyBookings(ctx context.Context, userID uuid.UUID) ([]booking.Booking, error)
	AllBookings(ctx context.Context) ([]booking.Booking, error)
}

type RouterConfig struct {
	Auth    AuthService
	Booking BookingService
	Log     *zap.Logger

	Postgres Checker
	Redis    Checker

	Env         string
	Version     string
	CORSOrigins []string
	// AuthLimiter throttles /register and /login; nil disables throttling.
	AuthLimiter    *RateLimiter
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(notFoundHandler)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/", bannerHandler)

	mountRoutes(r, cfg, log)
	r.Route("/api", func(r chi.Router) {
		mountRoutes(r, cfg, log)
	})

	return r
}

func mountRoutes(r chi.Router, cfg RouterConfig, log *zap.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthLimiter.Middleware)
		r.Post("/register", registerHandler(cfg.Auth, log))
		r.Post("/login", loginHandler(cfg.Auth, log))
	})

	r.Get("/slots", listSlotsHandler(cfg.Booking, log))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Auth, log))

		r.With(RequireRole(auth.RolePatient)).Post("/book", bookHandler(cfg.Booking, log))
		r.With(RequireRole(auth.RolePatient)).Get("/my-bookings", myBookingsHandler(cfg.Booking, log))
		r.With(RequireRole(auth.RoleAdmin)).Get("/all-bookings", allBookingsHandler(cfg.Booking, log))
	})
}
