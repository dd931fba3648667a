package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/caregiver-api/internal/config"
	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/repository/postgres"
	"github.com/jwalitptl/caregiver-api/pkg/logger"
	"github.com/jwalitptl/caregiver-api/pkg/messaging"
	"github.com/jwalitptl/caregiver-api/pkg/messaging/kafka"
	"github.com/jwalitptl/caregiver-api/pkg/messaging/redis"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
	"github.com/jwalitptl/caregiver-api/pkg/worker"
)

func newBroker(ctx context.Context, cfg config.BrokerConfig, l *logger.Logger) (messaging.Broker, error) {
	switch cfg.Driver {
	case "kafka":
		return kafka.NewKafkaBroker(cfg.Kafka.ToBrokerConfig())
	case "redis":
		return redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), &l.ZL)
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// serveHealth exposes liveness, readiness and metrics for the worker.
func serveHealth(port int, db handler.Pinger, l *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.NewHandler(db, prometheus.DefaultGatherer).RegisterRoutes(engine.Group(""))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load config")
	}
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		l.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := newBroker(ctx, cfg.Broker, l)
	if err != nil {
		l.Fatal(err, "failed to create broker", "driver", cfg.Broker.Driver)
	}
	defer broker.Close()

	outboxRepo := postgres.NewRepositories(db).Outbox
	m := metrics.New("caregiver_worker", prometheus.DefaultRegisterer)

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Broker.Driver, cfg.Outbox.ToWorkerConfig(), l, m)
	if err != nil {
		l.Fatal(err, "failed to create outbox processor")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.ToCleanupConfig(), l, m)

	health := serveHealth(cfg.Outbox.HealthPort, db, l)
	defer health.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	l.Info("shutting down...")
	wg.Wait()
}
