package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/storefront/internal/config"
	orderkafka "github.com/dmehra2102/storefront/internal/order/infrastructure/kafka"
	paymentapp "github.com/dmehra2102/storefront/internal/payment/application"
	paymentkafka "github.com/dmehra2102/storefront/internal/payment/infrastructure/kafka"
	"github.com/dmehra2102/storefront/pkg/docstore"
	"github.com/dmehra2102/storefront/pkg/healthcheck"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/logging"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/shutdown"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

const serviceName = "shop-service"

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, log); err != nil {
		log.Error("shop-service failed", "err", err)
		os.Exit(1)
	}
	log.Info("shop-service shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	var closers []shutdown.Closer

	tp, err := tracing.Init(ctx, serviceName, cfg.OTelEndpoint, log)
	if err != nil {
		return err
	}
	closers = append(closers, tp.Shutdown)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = shutdown.Drain(cfg.ShutdownTimeout, closers...)
		return err
	}
	closers = append(closers, store.Close)

	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = shutdown.Drain(cfg.ShutdownTimeout, closers...)
			return fmt.Errorf("redis ping: %w", err)
		}
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		log.Info("idempotency enabled", "redis", cfg.RedisAddr)
	}

	a := newApp(cfg, log, store, idem)
	if cfg.AdminEmail != "" {
		if err := a.identity.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			_ = shutdown.Drain(cfg.ShutdownTimeout, closers...)
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		closers = append(closers, func(context.Context) error { return writer.Close() })

		relay := outbox.NewRelay(log, a.events, outbox.NewDispatcher(log, writer), serviceName+"-relay",
			outbox.WithBatchSize(cfg.OutboxBatchSize))
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()

		reader := paymentkafka.NewReader(cfg.KafkaBrokers, cfg.PaymentEventsTopic, serviceName)
		consumer := paymentkafka.NewConsumer(log, reader, paymentapp.NewService(log, a.orders), idem)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("payment consumer stopped", "err", err)
				cancel()
			}
		}()
	} else {
		log.Info("kafka disabled; order events stay in the outbox")
	}

	hc := healthcheck.New(log, store, 10*time.Second, serviceName)
	go hc.Run(ctx)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = shutdown.Drain(cfg.ShutdownTimeout, closers...)
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		if err := hc.Serve(ctx, lis); err != nil {
			log.Error("grpc server error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      35 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	closers = append(closers, srv.Shutdown)
	return shutdown.Drain(cfg.ShutdownTimeout, closers...)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := docstore.NewPostgres(ctx, log, cfg.PGURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close(ctx)
			return nil, err
		}
		return pg, nil
	case "mongo":
		return docstore.NewMongo(ctx, log, cfg.MongoURL, cfg.MongoDB)
	default:
		log.Warn("using in-memory store; data is lost on exit")
		return docstore.NewMemory(), nil
	}
}
