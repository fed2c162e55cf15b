// Package main - точка входа REST-сервиса gradebook.
//
// Сервис хранит студентов (имя и упорядоченные оценки 2..5) и отвечает
// на запрос лучших студентов: максимальный средний балл, при равенстве -
// наибольшее число оценок.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stepup/gradebook/config"
	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/application/command"
	"github.com/stepup/gradebook/internal/application/eventhandler"
	"github.com/stepup/gradebook/internal/application/query"
	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/infrastructure/messaging"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	httpapi "github.com/stepup/gradebook/internal/interface/http"
	"github.com/stepup/gradebook/internal/interface/http/handlers"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ, ТРАССИРОВКА, МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
		Attrs: []slog.Attr{
			slog.String("service", cfg.App.Name),
			slog.String("env", string(cfg.App.Environment)),
		},
	})
	slog.SetDefault(log)

	log.Info("starting gradebook",
		"version", cfg.App.Version,
		logger.StoreDriver(cfg.Storage.Driver),
		"features", cfg.Features.Enabled(),
	)

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    string(cfg.App.Environment),
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SampleRatio:    cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", logger.Err(err))
		}
	}()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewDefaultMetrics()
	}

	inst := application.Instrumentation{
		Logger:  log,
		Tracer:  observability.NewTracer(),
		Metrics: metrics,
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (memory | sqlite | postgres) + Redis
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	repo := st.repo
	health.AddCheck("store", handlers.NewPingCheck(st))

	cache, err := openCache(cfg, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.close()
		health.AddCheck("cache", handlers.NewPingCheck(cache.cache))
		if cfg.Features.IsEnabled(config.FeatureCacheStudents) {
			repo = cache.wrap(repo, cfg.Redis.StudentTTL, log)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Events.Async,
		WorkerPoolSize: cfg.Events.Workers,
		Logger:         log,
		Observer: func(eventType shared.EventType, _ time.Duration, err error) {
			metrics.RecordEventHandled(string(eventType), err)
		},
	})
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()

	if cfg.Features.IsEnabled(config.FeatureEventLogging) {
		if err := eventhandler.NewAuditLogHandler(log).Subscribe(bus); err != nil {
			return fmt.Errorf("failed to subscribe audit log: %w", err)
		}
	}
	if cache != nil && cfg.Events.RedisChannel != "" {
		fwd := messaging.NewRedisForwarder(cache.cache.Client(), cfg.Events.RedisChannel)
		if err := bus.SubscribeAll(fwd.Handle); err != nil {
			return fmt.Errorf("failed to subscribe redis forwarder: %w", err)
		}
		log.Info("forwarding events to redis", "channel", fwd.Channel(), "instance", fwd.InstanceID())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОРАКУЛ ОЦЕНОК
	// ─────────────────────────────────────────────────────────────────────────
	oracle, breaker := newOracle(cfg, inst)
	if breaker != nil {
		health.AddCheck("grade_service", handlers.NewBreakerCheck(breaker))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		MetricsPath:        cfg.Observability.MetricsPath,
		RateLimitPerMinute: cfg.HTTP.RateLimit,
	}, httpapi.Dependencies{
		SaveStudent:   command.NewSaveStudentHandler(repo, oracle, bus, inst),
		DeleteStudent: command.NewDeleteStudentHandler(repo, bus, inst),
		DeleteAll:     command.NewDeleteAllStudentsHandler(repo, bus, inst),
		AddGrade:      command.NewAddGradeHandler(repo, oracle, bus, inst),
		GetStudent:    query.NewGetStudentHandler(repo, inst),
		ListStudents:  query.NewListStudentsHandler(repo, inst),
		CountStudents: query.NewCountStudentsHandler(repo),
		TopStudents:   query.NewGetTopStudentsHandler(repo, inst),
		Rating:        query.NewGetRatingHandler(repo, oracle, inst),
		Features:      cfg.Features,
		Metrics:       metrics,
		HealthChecker: health,
		Logger:        log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := newScheduler(cfg, repo, metrics, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if sched != nil {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown completed")
	return nil
}
