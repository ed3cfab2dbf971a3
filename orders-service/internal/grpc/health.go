package grpc

import (
	"context"
	"time"

	"github.com/fjod/go_shop/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check key reported next to the overall "" status.
const ServiceName = "orders-service"

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds the gRPC server exposing the standard health and reflection services.
func NewServer(hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// HealthMonitor flips the health status with database reachability.
type HealthMonitor struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewHealthMonitor(hs *health.Server, db Pinger, interval time.Duration, log *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		health:   hs,
		db:       db,
		interval: interval,
		timeout:  2 * time.Second,
		log:      logger.Component(log, "health"),
	}
}

func (m *HealthMonitor) Run(ctx context.Context) {
	m.check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			m.health.Shutdown()
			return
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := m.db.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		m.log.Warn("database ping failed", zap.Error(err))
	}
	m.health.SetServingStatus("", status)
	m.health.SetServingStatus(ServiceName, status)
}
