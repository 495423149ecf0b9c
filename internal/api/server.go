// Package api is the HTTP surface: generation, auth, billing and admin routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/metrics"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/service"
)

type Authenticator interface {
	Authenticate(ctx context.Context, creds identity.Credentials) (*identity.Result, error)
}

type Generator interface {
	Registry() *registry.Registry
	Generate(ctx context.Context, userID string, raw []byte) (*service.Outcome, *generation.Error)
	Summary(ctx context.Context, userID string) (*service.CreditsSummary, error)
	History(ctx context.Context, userID string) ([]models.CreditTransaction, error)
}

type Accounts interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*identity.User, error)
	SignOut(ctx context.Context, accessToken string)
	AdminLogin(ctx context.Context, email, password string) (*service.AdminLogin, error)
	AdminStatus(ctx context.Context, accessToken string) service.AdminStatus
	IsAdmin(ctx context.Context, userID string) (bool, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
}

type Billing interface {
	Pricing(ctx context.Context) ([]service.PricingPlan, error)
	Checkout(ctx context.Context, userID, plan, priceID string) (string, error)
	LoginRedirect(plan, priceID string) string
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	Subscriptions(ctx context.Context, userID string) ([]service.SubscriptionView, error)
}

type Orders interface {
	List(ctx context.Context, req service.OrderRequest) (*service.OrdersPage, error)
}

type Config struct {
	Addr              string
	GenerationTimeout time.Duration
	MetricsEnabled    bool
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	auth     Authenticator
	gen      Generator
	accounts Accounts
	billing  Billing
	orders   Orders
	validate *validator.Validate
	router   *chi.Mux
}

func NewServer(cfg Config, log *slog.Logger, auth Authenticator, gen Generator, accounts Accounts, billing Billing, orders Orders) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	s := &Server{
		cfg:      cfg,
		log:      log,
		auth:     auth,
		gen:      gen,
		accounts: accounts,
		billing:  billing,
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   r,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.With(generateCORS).Post("/ai/generate", s.handleGenerate)
		r.With(generateCORS).Options("/ai/generate", s.handleGenerateOptions)
		r.Get("/models", s.handleModels)
		r.Get("/credits", s.handleCredits)
		r.Get("/credits/history", s.handleCreditHistory)

		r.Post("/auth/signup", s.handleSignUp)
		r.Get("/auth/user", s.handleUser)
		r.Post("/auth/signout", s.handleSignOut)

		r.Get("/subscriptions", s.handleSubscriptions)
		r.Get("/pricing", s.handlePricing)
		r.Get("/checkout", s.handleCheckout)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		r.Post("/admin/auth/login", s.handleAdminLogin)
		r.Get("/admin/auth/status", s.handleAdminStatus)
		r.Group(func(protected chi.Router) {
			protected.Use(s.requireAdmin)
			protected.Post("/admin/users/set-role", s.handleSetRole)
			protected.Post("/admin/orders", s.handleOrders)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.GenerationTimeout + 15*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.cfg.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// requestMetrics labels requests by route pattern so ids in paths do not
// explode label cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.Error("handler error", "msg", msg, "err", err)
	s.writeError(w, http.StatusInternalServerError, msg)
}
