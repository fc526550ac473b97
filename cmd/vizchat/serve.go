package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-vizchat/internal/api"
	"github.com/miradorstack/mirador-vizchat/internal/cache"
	"github.com/miradorstack/mirador-vizchat/internal/client"
	"github.com/miradorstack/mirador-vizchat/internal/config"
	"github.com/miradorstack/mirador-vizchat/internal/engine"
	"github.com/miradorstack/mirador-vizchat/internal/llm"
	"github.com/miradorstack/mirador-vizchat/internal/metrics"
	"github.com/miradorstack/mirador-vizchat/internal/repo"
	"github.com/miradorstack/mirador-vizchat/internal/services"
	"github.com/miradorstack/mirador-vizchat/internal/utils"
	"github.com/miradorstack/mirador-vizchat/internal/visualization"
	"github.com/miradorstack/mirador-vizchat/internal/web"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query API, chat page, gRPC service and metrics listener",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default $VIZCHAT_CONFIG)")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting vizchat",
		slog.String("version", Version),
		slog.String("address", cfg.Server.Address),
		slog.String("grpc_address", cfg.Server.GRPCAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cacheProvider := buildCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	driver, dsn := cfg.Database.DataSourceName()
	db, err := repo.OpenDatabase(ctx, repo.DatabaseOptions{
		Driver:       driver,
		DSN:          dsn,
		Schema:       cfg.Database.Schema,
		MaxRows:      cfg.Database.MaxRows,
		ReadOnly:     cfg.Database.ReadOnly,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		ConnMaxIdle:  cfg.Database.ConnMaxIdle,
		Cache:        cacheProvider,
		SchemaTTL:    cfg.Cache.SchemaTTL,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	llmClient := buildLLMClient(cfg.LLM, logger)
	assistant := engine.NewAssistant(llmClient, engine.AssistantOptions{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Dialect:     dialect(driver),
		Cache:       cacheProvider,
		SQLTTL:      cfg.Cache.SQLTTL,
		Logger:      logger,
	})

	rules, err := visualization.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		return fmt.Errorf("load visualization rules: %w", err)
	}
	processor := visualization.NewProcessor(assistant, rules, logger,
		visualization.WithSampleRows(cfg.LLM.SampleRows),
		visualization.WithSummaryRows(cfg.LLM.SummaryRows),
	)
	pipeline := engine.NewPipeline(logger, db, assistant, processor, engine.PipelineOptions{
		ReadOnly:     cfg.Database.ReadOnly,
		QueryTimeout: cfg.Server.QueryTimeout,
	})

	var history services.HistoryStore
	if cfg.History.Enabled {
		store, err := repo.OpenHistoryStore(ctx, cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		history = store
	}

	svc := services.NewQueryService(logger, pipeline, history, db, cfg.Server.QueryTimeout)

	mux := http.NewServeMux()
	api.Routes(mux, svc, cfg.Server.MaxBodyBytes, logger)
	if cfg.UI.Enabled {
		var querier web.Querier = svc
		if cfg.UI.BackendURL != "" {
			querier = client.New(cfg.UI.BackendURL, cfg.UI.Timeout)
		}
		web.New(querier, web.Options{Title: cfg.UI.Title, Logger: logger}).Routes(mux)
	}
	httpServer := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.Chain(mux,
			api.Recover(logger),
			api.RequestID(),
			api.Logging(logger),
			api.CORS(cfg.Server.AllowedOrigins),
			api.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcServer *api.Server
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewServer(cfg.Server, api.NewGRPCQueryService(svc, logger))
		if err != nil {
			return fmt.Errorf("create gRPC server: %w", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
			if err := grpcServer.Start(); err != nil {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	if cfg.Rules.Watch && rules != nil {
		g.Go(func() error {
			if err := rules.Watch(gctx, 250*time.Millisecond); err != nil {
				logger.Warn("visualization rules will not hot-reload", slog.Any("error", err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
		if grpcServer != nil {
			grpcServer.Shutdown(shutdownCtx)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}
		return nil
	})

	err = g.Wait()
	logger.Info("vizchat stopped")
	return err
}

func buildCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Backend == "valkey" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err == nil {
			return provider
		}
		logger.Warn("valkey cache unavailable, falling back to memory", slog.Any("error", err))
	}
	return cache.NewMemoryProvider(time.Minute)
}

func buildLLMClient(cfg config.LLMConfig, logger *slog.Logger) *llm.Client {
	resolved := cfg.Resolve()
	endpoints := make([]llm.Endpoint, 0, len(resolved))
	for _, ep := range resolved {
		endpoints = append(endpoints, llm.Endpoint{
			Provider: ep.Provider,
			URL:      ep.URL,
			Model:    ep.Model,
			APIKey:   ep.APIKey,
		})
		logger.Info("llm endpoint configured", slog.String("provider", ep.Provider), slog.String("model", ep.Model))
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	if cfg.BackoffBase > 0 {
		retry.BackoffBase = cfg.BackoffBase
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}
	return llm.NewClient(endpoints,
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		llm.WithRetryConfig(retry),
		llm.WithLogger(logger),
	)
}

func dialect(driver string) string {
	if driver == repo.DriverSQLite {
		return "SQLite"
	}
	return "PostgreSQL"
}
