package main

import (
	"context"
	"crypto"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	assetrepo "github.com/kennarddh/asset-management-sub000/internal/asset/repository"
	"github.com/kennarddh/asset-management-sub000/internal/audit"
	auditrepo "github.com/kennarddh/asset-management-sub000/internal/audit/repository"
	"github.com/kennarddh/asset-management-sub000/internal/config"
	"github.com/kennarddh/asset-management-sub000/internal/db"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/events"
	healthhandler "github.com/kennarddh/asset-management-sub000/internal/health/handler"
	identityservice "github.com/kennarddh/asset-management-sub000/internal/identity/service"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	orderrepo "github.com/kennarddh/asset-management-sub000/internal/order/repository"
	orderservice "github.com/kennarddh/asset-management-sub000/internal/order/service"
	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
	"github.com/kennarddh/asset-management-sub000/internal/policy/engine"
	"github.com/kennarddh/asset-management-sub000/internal/security"
	"github.com/kennarddh/asset-management-sub000/internal/server"
	sessionrepo "github.com/kennarddh/asset-management-sub000/internal/session/repository"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/metrics"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/otel"
	userrepo "github.com/kennarddh/asset-management-sub000/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "server")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, Tracing: cfg.DBTracing})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	iso, err := uow.ParseIsolation(cfg.DBTxIsolation)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	manager := uow.NewManager(pool, iso, logger)

	users := userrepo.NewPostgresRepository(manager, logger)
	sessions := sessionrepo.NewPostgresRepository(manager, logger)
	assets := assetrepo.NewPostgresRepository(manager, logger)
	orders := orderrepo.NewPostgresRepository(manager, logger)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(manager), actor.GetClientIP, logger)

	tokens, err := newTokenProvider(cfg, logger)
	if err != nil {
		logger.Fatal("tokens", zap.Error(err))
	}

	kafkaPub := events.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.KafkaOrderEventsTopic, logger)
	var next events.Publisher = events.Nop{}
	if kafkaPub != nil {
		next = kafkaPub
	}
	publisher := events.NewAsync(next, logger)
	m := metrics.New()
	lifecycle := events.Multi(m, publisher)

	authSvc := identityservice.NewAuthService(
		manager, users, sessions,
		security.NewHasher(cfg.BcryptCost), tokens,
		cfg.RefreshTTL(), cfg.ClockToleranceDuration(),
		identityservice.WithAudit(auditLogger),
		identityservice.WithPublisher(lifecycle),
		identityservice.WithLogger(logger),
	)
	orderSvc := orderservice.NewService(
		manager, orders, assets,
		orderservice.WithAudit(auditLogger),
		orderservice.WithPublisher(lifecycle),
		orderservice.WithLogger(logger),
	)

	policy := engine.DefaultPolicy()
	if cfg.PolicyFile != "" {
		if policy, err = engine.LoadPolicy(cfg.PolicyFile); err != nil {
			logger.Fatal("policy", zap.Error(err))
		}
	}
	opa, err := engine.NewOPAAuthorizer(ctx, policy, logger)
	if err != nil {
		logger.Fatal("policy", zap.Error(err))
	}

	router := server.NewRouter(server.Deps{
		Auth:         authSvc,
		Orders:       orderSvc,
		Assets:       assets,
		Authorizer:   rbac.All(rbac.NewPolicyAuthorizer(nil), opa),
		Health:       healthhandler.NewHandler(pool, opa),
		SecureCookie: cfg.IsProduction(),
		Metrics:      m,
		Logger:       logger,
	})
	srv := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	publisher.Close()
	if err := kafkaPub.Close(); err != nil {
		logger.Warn("kafka close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
	pool.Close()
	logger.Info("http server stopped")
}

// newTokenProvider loads the configured signing keys. Outside production an ephemeral ECDSA key
// is generated when none is configured, so tokens do not survive a restart.
func newTokenProvider(cfg *config.Config, logger *zap.Logger) (*security.TokenProvider, error) {
	var (
		priv crypto.Signer
		pub  crypto.PublicKey
		err  error
	)
	if cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" && !cfg.IsProduction() {
		key, genErr := security.GenerateECDSAKey()
		if genErr != nil {
			return nil, genErr
		}
		priv, pub = key, key.Public()
		logger.Warn("JWT keys not configured; using an ephemeral signing key")
	} else if priv, pub, err = security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey); err != nil {
		return nil, err
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(),
		security.WithLeeway(cfg.ClockToleranceDuration()))
}
