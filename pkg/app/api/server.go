// Package api implements app.Runner for the credits API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apphttp "github.com/comicvault/credits/pkg/app/http"
	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/cache"
	"github.com/comicvault/credits/pkg/catalogstore"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/ledger"
	ledgerservice "github.com/comicvault/credits/pkg/ledger/service"
	"github.com/comicvault/credits/pkg/ledgerstore"
	"github.com/comicvault/credits/pkg/noncestore"
	"github.com/comicvault/credits/pkg/payment"
	paymentservice "github.com/comicvault/credits/pkg/payment/service"
	"github.com/comicvault/credits/pkg/pgutil"
	reconcilerpkg "github.com/comicvault/credits/pkg/reconciler"
	sessionservice "github.com/comicvault/credits/pkg/session/service"
	unlockservice "github.com/comicvault/credits/pkg/unlock/service"
	"github.com/comicvault/credits/pkg/unlockstore"
	"github.com/comicvault/credits/pkg/userstore"
)

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.APIServerConfig
}

// NewServer initializes new api server.
func NewServer(cfg *config.APIServerConfig) *Server {
	return &Server{cfg: cfg}
}

// services are the logged service facades the router exposes.
type services struct {
	session sessionservice.Service
	ledger  ledgerservice.Service
	unlock  unlockservice.Service
	payment paymentservice.Service
	tokens  *auth.TokenIssuer
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging, "api-server")
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting credits API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int64("chain_id", cfg.Payment.ChainID),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	chain, closeChain, err := payment.DialChain(&cfg.Payment, logger)
	if err != nil {
		return err
	}
	defer closeChain()

	svcs, rec, err := s.buildServices(db, chain, logger)
	if err != nil {
		return err
	}

	rec.Start()
	// Stop is idempotent; it also runs after ServeAndWait below.
	defer rec.Stop()

	router := s.setupRouter(svcs, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	rec.Stop()

	return err
}

func (s *Server) buildServices(db *bun.DB, chain payment.ChainReader, logger *zap.Logger) (*services, *reconcilerpkg.Reconciler, error) {
	cfg := s.cfg
	tx := pgutil.NewTransactor(db)

	userStore := userstore.NewStore(db)
	nonceStore := noncestore.NewStore(db)

	ledgerSvc := ledgerservice.NewService(
		tx,
		ledgerstore.NewStore(db),
		cache.New[string, *ledger.Stats](cfg.Ledger.StatsTTL),
		cfg.Ledger,
		logger,
	)

	unlockSvc := unlockservice.NewService(
		tx,
		catalogstore.NewStore(db),
		unlockstore.NewStore(db),
		ledgerSvc,
		logger,
	)

	decoder, err := payment.NewEventDecoder(cfg.Payment.Event)
	if err != nil {
		return nil, nil, fmt.Errorf("payment event: %w", err)
	}
	paymentSvc := paymentservice.NewService(&cfg.Payment, chain, decoder, ledgerSvc, logger)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	sessionSvc := sessionservice.NewService(&cfg.Auth, nonceStore, userStore, tokens, logger)

	rec := reconcilerpkg.New(cfg.Maintenance, nonceStore, userStore, ledgerSvc, logger)

	return &services{
		session: sessionservice.NewLog(sessionSvc, logger),
		ledger:  ledgerservice.NewLog(ledgerSvc, logger),
		unlock:  unlockservice.NewLog(unlockSvc, logger),
		payment: paymentservice.NewLog(paymentSvc, logger),
		tokens:  tokens,
	}, rec, nil
}

func (s *Server) setupRouter(svcs *services, logger *zap.Logger) chi.Router {
	httpCfg := s.cfg.HTTP
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(httpCfg.RequestTimeout))
	if len(httpCfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: httpCfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Sign-in is unauthenticated, so it is rate limited per client IP.
	r.Group(func(r chi.Router) {
		if httpCfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(httpCfg.RateLimitRequests, httpCfg.RateLimitWindow))
		}
		sessionservice.RegisterRoutes(r, svcs.session, logger)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(svcs.tokens))

		sessionservice.RegisterUserRoutes(r, svcs.session, logger)
		ledgerservice.RegisterRoutes(r, svcs.ledger, logger)
		unlockservice.RegisterRoutes(r, svcs.unlock, logger)
		paymentservice.RegisterRoutes(r, svcs.payment, logger)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			ledgerservice.RegisterAdminRoutes(r, svcs.ledger, logger)
			unlockservice.RegisterAdminRoutes(r, svcs.unlock, logger)
		})
	})

	return r
}
