package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/intake"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/service"
	"github.com/digkill/magicpixa/internal/token"
)

// Options are the listener and access settings of the HTTP server.
type Options struct {
	Addr          string
	AdminUsername string
	AdminPassword string
	RateLimit     config.RateLimit
	// WriteTimeout must outlast the slowest chained provider call.
	WriteTimeout time.Duration
}

// Services are the domain components the handlers call into.
type Services struct {
	Studio      *service.Studio
	Generations *service.GenerationService
	Users       *service.UserService
	Plans       *service.PlanService
	Promos      *service.PromoService
	Ledger      *ledger.Ledger
	Normalizer  *intake.Normalizer
	Tokens      *token.JWT
}

type Server struct {
	opts    Options
	log     *slog.Logger
	svc     Services
	limiter *limiter
	alerts  *alertLog
	router  *chi.Mux

	unsubscribe func()
}

func NewServer(opts Options, log *slog.Logger, svc Services) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		opts:    opts,
		log:     log,
		svc:     svc,
		limiter: newLimiter(opts.RateLimit),
		alerts:  newAlertLog(50),
		router:  r,
	}
	s.unsubscribe = svc.Ledger.Emitter().Subscribe(func(err *ledger.PermissionError) {
		s.log.Error("credit store permission denied", "path", err.Path, "op", err.Operation, "err", err.Err)
		s.alerts.add(err)
	})

	r.Use(s.accessLog)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(s.identityMiddleware)
		api.Get("/plans", s.handlePlans)
		api.Post("/intake", s.handleIntake)

		api.Group(func(gen chi.Router) {
			gen.Use(s.rateLimit)
			gen.Post("/analyze", s.handleAnalyze)
			gen.Post("/generate", s.handleGenerate)
			gen.Post("/analyze-colorizer", s.handleAnalyzeColorizer)
			gen.Post("/generate-colorizer", s.handleGenerateColorizer)
			gen.Post("/multi-generate", s.handleMultiGenerate)
			gen.Post("/studio/photo", s.handleStudioPhoto)
			gen.Post("/studio/colorize", s.handleStudioColorize)
		})

		api.Get("/credits", s.handleCredits)
		api.Post("/credits/deduct", s.handleDeduct)
		api.Get("/account", s.handleGetAccount)
		api.Post("/account", s.handleSignUp)
		api.Get("/creations", s.handleCreations)
		api.Post("/promo", s.handleRedeemPromo)
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Get("/users", s.handleListUsers)
		admin.Post("/credits", s.handleGrantCredits)
		admin.Post("/tokens", s.handleIssueToken)
		admin.Get("/alerts", s.handleAlerts)
		admin.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleListPromos)
			r.Post("/", s.handleCreatePromo)
			r.Delete("/{id}", s.handleDeletePromo)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.opts.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		s.unsubscribe()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeError(w, http.StatusBadRequest, msg)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func parseLimit(r *http.Request, def, limit int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, limit)
}
