// Package app собирает сервис: хранилище, репозитории, рассылку событий,
// HTTP API, gRPC health и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/ejjahanieklu/ehn/internal/health"
	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
	"github.com/ejjahanieklu/ehn/internal/service/cleanup"
	"github.com/ejjahanieklu/ehn/internal/service/httpapi"
	"github.com/ejjahanieklu/ehn/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или падения сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		deps.Close(closeCtx)
	}()

	if err := deps.Items.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("failed to ensure item indexes")
	}

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	startWorkers(workersCtx, &workers, cfg, deps, logger)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown не отменяет контексты запросов: SSE-потоки завершаются
	// только по закрытию подписок.
	httpSrv.RegisterOnShutdown(deps.Hub.Close)

	grpcServer, healthServer := newGRPCServer()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.Register("store", deps.Gateway)
	if deps.Redis != nil {
		healthHandler.RegisterOptional("redis", healthcheck.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}))
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC health сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(httpSrv, logger)
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()

	case err := <-errCh:
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(httpSrv, logger)
		grpcServer.Stop()
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func newRouter(cfg Config, deps *Dependencies) *gin.Engine {
	return httpapi.NewRouter(httpapi.Dependencies{
		Orders:      deps.Orders,
		Items:       deps.Items,
		Notifier:    deps.Notifier,
		Summaries:   deps.Summaries,
		Hub:         deps.Hub,
		Observer:    deps.Metrics,
		Logger:      deps.Logger.WithField("layer", "http"),
		EventBuffer: cfg.NotifyBuffer,
	})
}

// startWorkers запускает фоновую очистку, relay Redis и consumer каскада.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps *Dependencies, logger *log.Entry) {
	sweeper := cleanup.NewOrphanWorker(deps.Items,
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithBatchSize(cfg.CleanupBatchSize),
		cleanup.WithObserver(deps.Metrics),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	if deps.Relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := deps.Relay.Run(ctx); err != nil {
				logger.WithError(err).Error("redis relay stopped with error")
			}
		}()
	}

	if deps.Kafka != nil {
		consumer, err := initCascadeConsumer(cfg, deps.Kafka, deps.Items, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to create cascade consumer, continuing without it")
			return
		}
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Warn("failed to start cascade consumer")
			return
		}
		wg.Add(1)
		go func(consumer *kafka.Consumer) {
			defer wg.Done()
			<-ctx.Done()
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("failed to stop cascade consumer")
			}
		}(consumer)
	}
}

// newGRPCServer создаёт gRPC-сервер со стандартным health service,
// reflection и prometheus-интерцепторами. promgrpc регистрирует
// DefaultServerMetrics в DefaultRegisterer при инициализации пакета.
func newGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(promgrpc.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(promgrpc.StreamServerInterceptor),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	promgrpc.Register(grpcServer)
	return grpcServer, healthServer
}

func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
