package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/muflih795/YBG-Database-3/internal/backup"
	"github.com/muflih795/YBG-Database-3/internal/handler"
	"github.com/muflih795/YBG-Database-3/internal/handoff"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
	"github.com/muflih795/YBG-Database-3/internal/metrics"
	"github.com/muflih795/YBG-Database-3/internal/middleware"
	ws "github.com/muflih795/YBG-Database-3/internal/websocket"
)

const (
	claimLimit  = 10
	claimWindow = time.Minute
)

type Options struct {
	Service  *loyalty.Service
	Verifier middleware.TokenVerifier
	Hub      *ws.Hub
	Metrics  *metrics.Metrics
	Backups  *backup.Manager
	Linker   *handoff.Linker
	// Ping reports whether the ledger database is reachable.
	Ping func(ctx context.Context) error

	SessionCookie string
	WSOrigins     []string
}

type Server struct {
	opts        Options
	pointsH     *handler.PointsHandler
	rewardH     *handler.RewardHandler
	adminH      *handler.AdminHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Server {
	return &Server{
		opts:        opts,
		pointsH:     handler.NewPointsHandler(opts.Service, logger),
		rewardH:     handler.NewRewardHandler(opts.Service, opts.Linker, logger),
		adminH:      handler.NewAdminHandler(opts.Service, opts.Backups, logger),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Instrument)
	}
	r.Use(middleware.Authenticate(s.opts.Verifier, s.opts.SessionCookie))
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.healthHandler)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	if s.opts.Hub != nil {
		r.Get("/ws", ws.HandleWebSocket(s.opts.Hub, s.opts.WSOrigins, s.logger))
	}

	// Reads answer anonymous callers with empty data.
	r.Get("/points", s.pointsH.Balance)
	r.Get("/points/history", s.pointsH.History)
	r.Get("/rewards", s.rewardH.List)
	r.Get("/rewards/claimed", s.rewardH.Claimed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/points/earn", s.pointsH.Earn)
		r.Get("/membership", s.pointsH.Membership)
		r.With(middleware.RateLimit(s.rateLimiter, middleware.UserOrIP, claimLimit, claimWindow)).
			Post("/rewards/claim", s.rewardH.Claim)
		r.Post("/rewards/claimed/send", s.rewardH.Send)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/rewards", s.adminH.ListRewards)
		r.Post("/rewards", s.adminH.CreateReward)
		r.Put("/rewards/{id}", s.adminH.UpdateReward)
		r.Get("/backups", s.adminH.ListBackups)
		r.Post("/backups", s.adminH.RunBackup)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			s.logger.Error("health check", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.Write([]byte(`{"status":"ok"}`))
}
