package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/foodtrack/internal/catalog"
	"github.com/vladislavdragonenkov/foodtrack/internal/config"
	healthcheck "github.com/vladislavdragonenkov/foodtrack/internal/health"
	"github.com/vladislavdragonenkov/foodtrack/internal/metrics"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/idempotency"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/order"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
	"github.com/vladislavdragonenkov/foodtrack/internal/transport/grpcapi"
	"github.com/vladislavdragonenkov/foodtrack/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/foodtrack/internal/version"
)

// application — собранный сервис до запуска слушателей.
type application struct {
	cfg      Config
	logger   *log.Entry
	http     *httpapi.Server
	grpc     *grpc.Server
	health   *healthcheck.Handler
	grpcHlth *health.Server
	workers  []func(ctx context.Context)
	broker   eventBroker
	closers  []func() error
}

// newApplication собирает зависимости и транспорты без сетевых слушателей.
func newApplication(ctx context.Context, cfg Config, logger *log.Entry) (*application, error) {
	business := config.Default()
	if cfg.BusinessConfigPath != "" {
		loaded, err := config.Load(cfg.BusinessConfigPath)
		if err != nil {
			return nil, err
		}
		business = loaded
	}
	menu := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		menu = loaded
	}
	restaurants, dishes := menu.Len()
	logger.WithFields(log.Fields{
		"city":        business.City,
		"restaurants": restaurants,
		"dishes":      dishes,
	}).Info("business configuration loaded")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &application{cfg: cfg, logger: logger, closers: []func() error{deps.closeFn}}

	hub := tracking.NewHub()
	locker, lockChecker, closeLock := initLocker(ctx, cfg, logger)
	a.closers = append(a.closers, closeLock)
	a.broker = initEventBroker(cfg, hub, logger)
	a.closers = append(a.closers, a.broker.closeFn)

	trackingMetrics := metrics.NewTrackingMetrics()
	options := []order.Option{
		order.WithLogger(logger.WithField("layer", "order")),
		order.WithMetrics(trackingMetrics),
		order.WithLocker(locker),
		order.WithTimeline(deps.timelineRepo),
		order.WithOpTimeout(cfg.OperationTimeout),
	}
	if a.broker.enabled() {
		options = append(options, order.WithOutbox(deps.outboxRepo))
	}
	orders, err := order.New(deps.repo, menu, business, options...)
	if err != nil {
		a.close()
		return nil, err
	}

	guard := idempotency.NewGuard(deps.idempotencyRepo,
		idempotency.WithGuardLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithTTL(cfg.IdempotencyTTL),
	)
	a.http, err = httpapi.New(httpapi.Options{
		Orders:          orders,
		Guard:           guard,
		Hub:             hub,
		JWTSecret:       []byte(cfg.JWTSecret),
		Logger:          logger.WithField("layer", "http"),
		HTTPMetrics:     metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		TrackingMetrics: trackingMetrics,
		PushInterval:    business.Tracking.PushInterval,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.grpc, a.grpcHlth = newGRPCServer(grpcapi.NewDeliveryService(orders, hub, logger.WithField("layer", "grpc")), logger)

	a.health = healthcheck.NewHandler(version.GetVersion())
	a.health.RegisterChecker("storage", deps.storageChecker, true)
	if a.broker.checker != nil {
		a.health.RegisterChecker(a.broker.name, a.broker.checker, false)
	}
	if lockChecker != nil {
		a.health.RegisterChecker("redis", lockChecker, false)
	}

	background := metrics.NewBackgroundMetrics(prometheus.DefaultRegisterer)
	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithCleanupMetrics(background),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	a.workers = append(a.workers, cleanup.Run)

	if a.broker.enabled() {
		workerOptions := []outbox.Option{
			outbox.WithLogger(logger.WithField("worker", "outbox")),
			outbox.WithMetrics(background),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		}
		if a.broker.dlq != nil {
			workerOptions = append(workerOptions, outbox.WithDLQPublisher(a.broker.dlq))
		}
		a.workers = append(a.workers, outbox.NewWorker(deps.outboxRepo, a.broker.publisher, workerOptions...).Run)
	}
	if a.broker.consumer != nil {
		a.workers = append(a.workers, a.broker.consumer.Start)
		a.closers = append([]func() error{a.broker.consumer.Stop}, a.closers...)
	}

	return a, nil
}

// newGRPCServer создаёт gRPC-сервер драйверского API с метриками и health.
func newGRPCServer(svc grpcapi.DeliveryServer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcapi.Register(server, svc)
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}

// close освобождает ресурсы в порядке регистрации.
func (a *application) close() {
	for _, fn := range a.closers {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			a.logger.WithError(err).Warn("failed to release resource")
		}
	}
}

// Run запускает HTTP API, gRPC API драйверов, служебный HTTP и фоновые воркеры
// и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	for _, run := range a.workers {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workersCtx)
		}(run)
	}
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, a.health)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger, cfg.ShutdownTimeout)
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		if err := a.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		if err := a.http.Listen(cfg.HTTPAddr); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	a.shutdown(cfg.ShutdownTimeout)
	shutdownHTTP(metricsSrv, logger, cfg.ShutdownTimeout)
	return runErr
}

// shutdown останавливает HTTP API и gRPC с ограничением по времени.
func (a *application) shutdown(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.http.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("http api shutdown with error")
	}

	a.grpcHlth.Shutdown()
	stoppedCh := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(timeout):
		a.logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		a.grpc.Stop()
	}
}

// newOpsMux собирает служебные эндпоинты: метрики и проверки здоровья.
func newOpsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer запускает служебный HTTP-сервер.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newOpsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry, timeout time.Duration) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
