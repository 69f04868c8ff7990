package trackingservice

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"delivery-track/internal/general/config"
	"delivery-track/internal/general/jwt"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/general/postgres"
	"delivery-track/internal/general/rabbitmq"
	"delivery-track/internal/general/websocket"
	"delivery-track/internal/software/routing"
	"delivery-track/internal/software/tracking/handler"
	"delivery-track/internal/software/tracking/service"
)

// Run assembles and runs the tracking service until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// static request ID for startup logs
	logger := logger.New("tracking-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// connect to RabbitMQ
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	pub := rabbitmq.NewMQPublisher(rmq)

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// repositories
	uow := postgres.NewUnitOfWork(pool)
	sessionRepo := postgres.NewSessionRepo()
	historyRepo := postgres.NewLocationHistoryRepo()
	driverRepo := postgres.NewDriverRepo()

	// session service
	svc := service.NewTrackingService(logger, uow, sessionRepo, historyRepo, driverRepo, pub, service.Options{
		BaseLinkURL:         cfg.Tracking.BaseLinkURL,
		TokenTTL:            cfg.TokenTTL(),
		StrictReceiverMatch: cfg.WebSocket.StrictReceiverMatch,
	})

	// route estimator with the OSRM-compatible provider
	provider := routing.NewOSRMProvider(cfg.Routing.ProviderURL, &http.Client{Timeout: cfg.RoutingTimeout()})
	estimator := routing.NewEstimator(logger, provider, routing.EstimatorOptions{
		ProviderTimeout: cfg.RoutingTimeout(),
		AssumedSpeedKmh: cfg.Routing.AssumedSpeedKmh,
		FallbackPoints:  cfg.Routing.FallbackPoints,
	})

	// realtime hub
	ws := websocket.NewWebSocket(logger, jwtManager, svc, websocket.Options{
		RequireAuth:    cfg.WebSocket.RequireAuth,
		UpdateThrottle: cfg.UpdateThrottle(),
	})

	// HTTP handler and routes
	mux := http.NewServeMux()
	httpHandler := handler.NewTrackingHTTPHandler(svc, estimator, logger, jwtManager, ws)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracking Service started on port %d", cfg.Server.Port),
		map[string]any{"port": cfg.Server.Port, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Server.Port})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
