// Worker runs the order scheduler and forwards lifecycle events from Kafka to Loki and the OTLP
// log pipeline. Event forwarding is skipped when KAFKA_BROKERS is empty.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	assetrepo "github.com/kennarddh/asset-management-sub000/internal/asset/repository"
	"github.com/kennarddh/asset-management-sub000/internal/audit"
	auditrepo "github.com/kennarddh/asset-management-sub000/internal/audit/repository"
	"github.com/kennarddh/asset-management-sub000/internal/config"
	"github.com/kennarddh/asset-management-sub000/internal/db"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/events"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	orderrepo "github.com/kennarddh/asset-management-sub000/internal/order/repository"
	"github.com/kennarddh/asset-management-sub000/internal/order/scheduler"
	orderservice "github.com/kennarddh/asset-management-sub000/internal/order/service"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/loki"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/metrics"
	"github.com/kennarddh/asset-management-sub000/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "worker")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName + "-worker",
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
	defer pool.Close()
	iso, err := uow.ParseIsolation(cfg.DBTxIsolation)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	manager := uow.NewManager(pool, iso, logger)

	kafkaPub := events.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.KafkaOrderEventsTopic, logger)
	var next events.Publisher = events.Nop{}
	if kafkaPub != nil {
		next = kafkaPub
	}
	publisher := events.NewAsync(next, logger)
	m := metrics.New()

	orders := orderservice.NewService(
		manager,
		orderrepo.NewPostgresRepository(manager, logger),
		assetrepo.NewPostgresRepository(manager, logger),
		orderservice.WithAudit(audit.NewLogger(auditrepo.NewPostgresRepository(manager), nil, logger)),
		orderservice.WithPublisher(events.Multi(m, publisher)),
		orderservice.WithLogger(logger),
	)
	sched := scheduler.New(orders, cfg.SchedulerIntervalDuration(), scheduler.DefaultBatchSize, logger,
		scheduler.WithRecorder(m))

	consumer := events.NewKafkaConsumer(cfg.KafkaBrokersList(), cfg.KafkaOrderEventsTopic, cfg.KafkaGroupID, logger)
	forward := events.Fanout(
		loki.NewClient(cfg.LokiURL, nil).Handle,
		otel.NewEventLogger(providers.LoggerProvider).Handle,
	)

	logger.Info("worker started",
		zap.Duration("schedulerInterval", cfg.SchedulerIntervalDuration()),
		zap.Bool("forwarding", consumer != nil),
		zap.Bool("loki", cfg.LokiURL != ""),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return consumer.Run(gctx, forward) })
	if cfg.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	publisher.Close()
	if err := kafkaPub.Close(); err != nil {
		logger.Warn("kafka close", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		logger.Warn("kafka consumer close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
	logger.Info("worker stopped")
}
