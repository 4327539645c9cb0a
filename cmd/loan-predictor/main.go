// cmd/loan-predictor/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"loan-sanction/internal/api"
	"loan-sanction/internal/common/camunda"
	"loan-sanction/internal/common/config"
	"loan-sanction/internal/common/database"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/observability"
	"loan-sanction/internal/common/ratelimit"
	"loan-sanction/internal/features"
	"loan-sanction/internal/inference"
	"loan-sanction/internal/model"
	pls "loan-sanction/internal/workers/loan/predict-loan-sanction"
	"loan-sanction/pkg/artifact"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	gin.SetMode(cfg.Server.Mode)

	obs := observability.New(observability.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		TracingEnabled: cfg.Tracing.Enabled,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(ctx)
	}()

	// --- Model: loaded once, before the listener opens ---
	engine := inference.NewEngine(features.DefaultTable, log)
	source, closeSource, err := newModelSource(cfg, log)
	if err != nil {
		log.Error("Model source unavailable", map[string]interface{}{"error": err.Error()})
		_ = engine.Load(context.Background(), failedSource{err: err})
	} else {
		loadCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Model.LoadTimeout))
		if err := engine.Load(loadCtx, source); err != nil {
			log.Error("Serving without a model; every prediction returns MODEL_UNAVAILABLE", map[string]interface{}{
				"source": source.String(),
			})
		}
		cancel()
		closeSource()
	}

	encoder, err := features.NewEncoder(features.DefaultTable)
	if err != nil {
		return fmt.Errorf("failed to build encoder: %w", err)
	}
	predictor := inference.NewPredictor(
		encoder,
		engine,
		inference.NewShaper(cfg.Inference.ConfidencePrecision),
		log,
		inference.WithTracer(obs.Tracer()),
		inference.WithRecorder(obs),
	)

	opts := api.Options{
		Service:         predictor,
		Model:           engine,
		EncodingVersion: features.DefaultTable.Version(),
		Logger:          log,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		RequestTimeout:  config.GetDuration(cfg.Server.RequestTimeout),
		TrustedProxies:  cfg.Server.TrustedProxies,
	}

	// --- Redis (rate limiter) ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer redisClient.Close()
		opts.Redis = redisClient
	}

	if cfg.RateLimit.Enabled {
		window := config.GetDuration(cfg.RateLimit.Window)
		switch cfg.RateLimit.Backend {
		case config.RateLimitBackendRedis:
			opts.Limiter = ratelimit.NewRedisLimiter(redisClient.GetClient(), cfg.RateLimit.Requests, window)
		default:
			memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, window)
			defer memLimiter.Stop()
			opts.Limiter = memLimiter
		}
		log.Info("Rate limiting enabled", map[string]interface{}{
			"backend":  opts.Limiter.Backend(),
			"requests": cfg.RateLimit.Requests,
			"window":   window.String(),
		})
	}

	// --- Zeebe job worker (optional) ---
	if cfg.Camunda.Enabled {
		zeebe, jobWorker, err := startWorker(cfg, predictor, log)
		if err != nil {
			return err
		}
		defer zeebe.Close()
		if jobWorker != nil {
			defer jobWorker.Stop()
		}
		opts.Zeebe = zeebe
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Setup(opts),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", map[string]interface{}{
			"address": srv.Addr,
			"model":   engine.State().String(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server exited", nil)
	return nil
}

// newModelSource returns the configured artifact source and a func releasing whatever
// it opened.
func newModelSource(cfg *config.Config, log logger.Logger) (model.Source, func(), error) {
	if cfg.Model.Source != config.ModelSourcePostgres {
		return model.NewFileSource(cfg.Model.Path), func() {}, nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		return nil
	}, 5, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := pg.Close(); err != nil {
			log.Warn("Failed to close postgres", map[string]interface{}{"error": err.Error()})
		}
	}
	return model.NewPostgresSource(pg.GetDB(), cfg.Model.Name, cfg.Model.Version), closeFn, nil
}

// failedSource keeps the engine's one-shot load honest when no source could be built.
type failedSource struct{ err error }

func (s failedSource) Fetch(context.Context) (*artifact.Artifact, error) { return nil, s.err }
func (s failedSource) String() string                                    { return "unavailable" }

func startWorker(cfg *config.Config, predictor pls.Predictor, log logger.Logger) (*camunda.Client, *camunda.CamundaWorker, error) {
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.UsePlaintext,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("zeebe client failed: %w", err)
	}
	log.Info("Zeebe client connected successfully", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	wcfg := pls.ConfigFromWorker(config.GetWorkerConfig(cfg, pls.TaskType))
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": pls.TaskType})
		return zeebe, nil, nil
	}

	handler, err := pls.NewHandler(pls.HandlerOptions{
		Config:    wcfg,
		Predictor: predictor,
		Logger:    log,
	})
	if err != nil {
		_ = zeebe.Close()
		return nil, nil, err
	}

	jobWorker := camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
		TaskType:      pls.TaskType,
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(cfg.Camunda.Timeout),
	}, handler, log)
	return zeebe, jobWorker, nil
}
