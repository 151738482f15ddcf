package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/radiology-console/pkg/analysis"
	"github.com/synaptica-ai/radiology-console/pkg/artifacts"
	"github.com/synaptica-ai/radiology-console/pkg/casestore"
	"github.com/synaptica-ai/radiology-console/pkg/common/config"
	"github.com/synaptica-ai/radiology-console/pkg/common/database"
	"github.com/synaptica-ai/radiology-console/pkg/common/kafka"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/auth"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/httpclient"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/middleware"
	"github.com/synaptica-ai/radiology-console/pkg/gateway/routes"
	"github.com/synaptica-ai/radiology-console/pkg/observability/metrics"
	"github.com/synaptica-ai/radiology-console/pkg/serving/predictor"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo, err := openRepository(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open case repository")
	}
	defer database.ClosePostgres()
	defer database.CloseRedis()

	store, err := openArtifactStore(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open artifact store")
	}

	opts := []analysis.Option{analysis.WithMetrics(m)}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		opts = append(opts, analysis.WithPublisher(producer))
	}
	service := analysis.NewService(repo, store, predictor.NewPredictor(cfg.ModelArtifactDir), opts...)

	var validator auth.Validator
	if cfg.ServiceAPIToken != "" {
		static, err := auth.NewStaticToken(cfg.ServiceAPIToken)
		if err != nil {
			logger.Log.WithError(err).Fatal("Invalid service token")
		}
		validator = static
	}

	router := mux.NewRouter()
	router.Use(middleware.Instrument(m))
	routes.RegisterAnalysisRoutes(router, &routes.AnalysisAPI{
		Service:        service,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	var handler http.Handler = router
	handler = middleware.Authenticate(validator)(handler)
	handler = middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, m).Limit(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.MetricsPort),
		Handler: m.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.WithFields(map[string]interface{}{
			"host":      cfg.ServerHost,
			"port":      cfg.ServerPort,
			"storage":   cfg.StorageBackend,
			"artifacts": cfg.ArtifactBackend,
		}).Info("Analysis Service started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("analysis server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Log.WithField("port", cfg.MetricsPort).Info("Metrics endpoint started")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down Analysis Service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Error("Analysis Service exited with error")
	}
	logger.Log.Info("Analysis Service stopped")
}

func openRepository(cfg *config.Config) (casestore.Repository, error) {
	var repo casestore.Repository
	switch cfg.StorageBackend {
	case "memory":
		repo = casestore.NewMemoryRepository()
	case "postgres":
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return nil, err
		}
		gormRepo := casestore.NewGormRepository(db)
		if err := gormRepo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate case tables: %w", err)
		}
		repo = gormRepo
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.RedisHost != "" {
		cache := casestore.NewRedisCache(database.GetRedis(cfg))
		repo = casestore.NewCachedRepository(repo, cache, cfg.ReportCacheTTL)
	}
	return repo, nil
}

func openArtifactStore(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	switch cfg.ArtifactBackend {
	case "memory":
		return artifacts.NewMemoryStore(), nil
	case "minio":
		// MinIO often starts alongside the service; give it a few attempts.
		var store *artifacts.MinIOStore
		err := httpclient.Retry(ctx, httpclient.Policy{
			Attempts:  5,
			BaseDelay: 500 * time.Millisecond,
			Retryable: httpclient.IsConnectionError,
		}, func() error {
			var err error
			store, err = artifacts.NewMinIOStore(ctx, cfg.MinIOEndpoint, cfg.MinIOBucket, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
			return err
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_BACKEND %q", cfg.ArtifactBackend)
	}
}
