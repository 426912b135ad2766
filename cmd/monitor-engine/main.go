package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safexstack/safex-monitor/internal/api"
	"github.com/safexstack/safex-monitor/internal/cache"
	"github.com/safexstack/safex-monitor/internal/clipstore"
	"github.com/safexstack/safex-monitor/internal/config"
	"github.com/safexstack/safex-monitor/internal/engine"
	"github.com/safexstack/safex-monitor/internal/events"
	"github.com/safexstack/safex-monitor/internal/frames"
	"github.com/safexstack/safex-monitor/internal/metrics"
	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/repo"
	"github.com/safexstack/safex-monitor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting safex-monitor", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	var publisher events.Publisher = events.NewNoop()
	if cfg.Events.Enabled && cfg.Events.URL != "" {
		natsPub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:            cfg.Events.URL,
			Name:           cfg.Events.Name,
			SubjectPrefix:  cfg.Events.SubjectPrefix,
			ReconnectWait:  cfg.Events.ReconnectWait,
			MaxReconnects:  cfg.Events.MaxReconnects,
			ConnectTimeout: cfg.Events.ConnectTimeout,
		})
		if err != nil {
			logger.Warn("event bus unavailable", slog.Any("error", err))
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	var clips clipstore.Store = clipstore.NewNoop()
	if cfg.Clips.Enabled && cfg.Clips.Endpoint != "" {
		minioStore, err := clipstore.NewMinioStore(ctx,
			cfg.Clips.Endpoint, cfg.Clips.AccessKey, cfg.Clips.SecretKey,
			cfg.Clips.Bucket, cfg.Clips.Secure)
		if err != nil {
			logger.Warn("clip storage unavailable", slog.Any("error", err))
		} else {
			clips = minioStore
		}
	}

	frameStore, err := frames.NewStore(cfg.Monitor.FramesDir, logger)
	if err != nil {
		logger.Error("failed to open frame store", slog.Any("error", err))
		os.Exit(1)
	}

	controlClient := repo.NewControlClient(
		cfg.Clients.Control.BaseURL,
		cfg.Clients.Control.LivenessPath,
		cfg.Clients.Control.FeedConfigPath,
		cfg.Clients.Control.DetectionsPath,
		cfg.Clients.Control.AlertsPath,
		cfg.Clients.Control.Timeout,
	)
	visionClient := repo.NewVisionClient(
		cfg.Clients.Vision.BaseURL,
		cfg.Clients.Vision.ClassifyPath,
		cfg.Clients.Vision.AnalyzePath,
		cfg.Clients.Vision.Timeout,
	)
	notifierClient := repo.NewNotifierClient(
		cfg.Clients.Notifier.BaseURL,
		cfg.Clients.Notifier.DispatchPath,
		cfg.Clients.Notifier.Timeout,
	)

	manager := engine.NewManager(engine.ManagerDeps{
		Control:    controlClient,
		Classifier: visionClient,
		Analyzer:   visionClient,
		Notifier:   notifierClient,
		Frames:     frameStore,
		Clips:      clips,
		Events:     publisher,
		Cache:      cacheProvider,
		CacheTTL:   cfg.Cache.WindowStatsTTL,
		Defaults: models.FeedRuntimeConfig{
			FPS:              cfg.Monitor.FPS,
			FrameSkip:        cfg.Monitor.FrameSkip,
			WindowSeconds:    cfg.Monitor.WindowSeconds,
			TriggerThreshold: cfg.Monitor.TriggerThreshold,
			SegmentLength:    cfg.Monitor.SegmentLength,
			HistoryDepth:     cfg.Monitor.HistoryDepth,
			CheckInterval:    cfg.Monitor.CheckInterval,
		},
		Logger: logger,
	})
	defer manager.Shutdown()

	for _, feedID := range cfg.Monitor.AutostartFeeds {
		if err := manager.StartFeed(ctx, feedID); err != nil {
			logger.Error("autostart failed", slog.String("feed_id", feedID), slog.Any("error", err))
		}
	}

	server := api.NewServer(cfg.Server.Address, manager, logger)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("admin api exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin api shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("safex-monitor stopped")
}
