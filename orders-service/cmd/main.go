package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/config"
	"github.com/fjod/go_shop/orders-service/internal/consumer"
	ordersgrpc "github.com/fjod/go_shop/orders-service/internal/grpc"
	h "github.com/fjod/go_shop/orders-service/internal/http"
	"github.com/fjod/go_shop/orders-service/internal/metrics"
	"github.com/fjod/go_shop/orders-service/internal/payment"
	"github.com/fjod/go_shop/orders-service/internal/payment/ecpay"
	"github.com/fjod/go_shop/orders-service/internal/publisher"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/orders-service/internal/service"
	"github.com/fjod/go_shop/orders-service/internal/telemetry"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "orders-service: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orders-service: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("orders-service stopped with error", zap.Error(err))
	}
	log.Info("orders-service stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, ordersgrpc.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Database setup
	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database migrations completed")

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, repo, log); err != nil {
			return err
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Carts still work without the cache; reads fall through to Postgres.
		log.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	carts := cache.NewBreakerCache(cache.NewRedisCache(redisClient), cache.BreakerSettings{}, log)

	m := metrics.New(prometheus.NewRegistry())

	gwCfg, err := cfg.ECPay.Gateway()
	if err != nil {
		return err
	}
	ecpayClient := ecpay.New(gwCfg)

	orderSvc := service.NewOrderService(repo, carts, m, log)
	cartSvc := service.NewCartService(repo, carts, log)
	paymentSvc := service.NewPaymentService(repo, payment.NewRegistry(ecpayClient), m, log)

	httpLog := logger.Component(log, "http")
	router := h.NewRouter(h.RouterConfig{
		Orders:         h.NewOrdersHandler(orderSvc, cfg.RequestTimeout, httpLog),
		Carts:          h.NewCartHandler(cartSvc, cfg.RequestTimeout, httpLog),
		Payments:       h.NewPaymentHandler(paymentSvc, cfg.RequestTimeout, httpLog),
		Logistics:      h.NewLogisticsHandler(ecpayClient, cfg.CartPageURL, httpLog),
		Auth:           h.NewAuthenticator(cfg.JWTSecret),
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		Ready: func(r *http.Request) error {
			return repo.Ping(r.Context())
		},
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	healthServer := health.NewServer()
	grpcServer := ordersgrpc.NewServer(healthServer)
	monitor := ordersgrpc.NewHealthMonitor(healthServer, repo, cfg.HealthInterval, log)

	writer := publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
	defer writer.Close()
	poller := publisher.NewOutboxPoller(repo, writer, cfg.OutboxInterval, m, log)

	invalidator := consumer.NewCartInvalidator(
		consumer.NewKafkaReader(cfg.OrderEventsTopic, cfg.KafkaBrokers...),
		carts,
		log,
	)
	defer invalidator.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		invalidator.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down orders-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
