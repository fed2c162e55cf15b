package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepup/gradebook/config"
	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/external/gradeservice"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/memory"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/postgres"
	rediscache "github.com/stepup/gradebook/internal/infrastructure/persistence/redis"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/sqlite"
	"github.com/stepup/gradebook/internal/infrastructure/scheduler"
	"github.com/stepup/gradebook/internal/infrastructure/scheduler/jobs"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// store - выбранное хранилище и функция его закрытия.
type store struct {
	repo  student.Repository
	close func()
}

// Ping делегирует проверку хранилищу, если оно её поддерживает.
func (s store) Ping(ctx context.Context) error {
	if hc, ok := s.repo.(student.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// openStore открывает хранилище по STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return store{}, fmt.Errorf("failed to open sqlite: %w", err)
		}
		log.Info("sqlite store ready", "path", cfg.Storage.SQLitePath)
		return store{
			repo:  sqlite.NewStudentRepository(db),
			close: closeDB(db, log),
		}, nil

	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig(cfg.Storage.PostgresURL)
		pgCfg.MaxConns = cfg.Storage.PostgresMaxConns
		pgCfg.MinConns = cfg.Storage.PostgresMinConns
		pgCfg.Logger = log

		connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		conn, err := postgres.NewConnection(connectCtx, pgCfg)
		if err != nil {
			return store{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Storage.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(connectCtx); err != nil {
				conn.Close()
				return store{}, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		return store{
			repo:  postgres.NewStudentRepository(conn),
			close: conn.Close,
		}, nil

	default:
		return store{
			repo:  memory.NewStudentRepository(),
			close: func() {},
		}, nil
	}
}

func closeDB(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", logger.Err(err))
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

type redisCache struct {
	cache *rediscache.Cache
	log   *slog.Logger
}

// openCache подключает Redis, если он включён. Недоступный Redis
// не мешает старту: сервис работает без кеша.
func openCache(cfg *config.Config, log *slog.Logger) (*redisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	rcfg := rediscache.DefaultConfig()
	rcfg.Host = cfg.Redis.Host
	rcfg.Port = cfg.Redis.Port
	rcfg.Password = cfg.Redis.Password
	rcfg.DB = cfg.Redis.DB
	rcfg.PoolSize = cfg.Redis.PoolSize
	rcfg.KeyPrefix = cfg.Redis.KeyPrefix

	cache, err := rediscache.NewCache(rcfg)
	if err != nil {
		log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil, nil
	}
	log.Info("Redis connection established", "addr", rcfg.Addr())
	return &redisCache{cache: cache, log: log}, nil
}

func (c *redisCache) wrap(repo student.Repository, ttl time.Duration, log *slog.Logger) student.Repository {
	return rediscache.NewCachedRepository(repo, c.cache, ttl, log)
}

func (c *redisCache) close() {
	if err := c.cache.Close(); err != nil {
		c.log.Warn("failed to close Redis", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ORACLE
// ══════════════════════════════════════════════════════════════════════════════

// newOracle возвращает удалённый сервис оценок, если задан GRADE_SERVICE_URL,
// иначе проверку диапазона в процессе. Второй результат - клиент для
// проверки состояния предохранителя, nil для локального оракула.
func newOracle(cfg *config.Config, inst application.Instrumentation) (student.GradeOracle, *gradeservice.Client) {
	if cfg.Grades.OracleURL == "" {
		return &student.RangeOracle{
			Min:             student.Grade(cfg.Grades.Min),
			Max:             student.Grade(cfg.Grades.Max),
			RatingThreshold: cfg.Grades.RatingThreshold,
			HighSumRating:   cfg.Grades.HighSumRating,
			LowSumRating:    cfg.Grades.LowSumRating,
		}, nil
	}

	gcfg := gradeservice.DefaultConfig(cfg.Grades.OracleURL)
	gcfg.Timeout = cfg.Grades.OracleTimeout
	gcfg.MaxAttempts = cfg.Grades.OracleMaxRetries
	gcfg.BreakerThreshold = cfg.Grades.BreakerThreshold
	gcfg.BreakerTimeout = cfg.Grades.BreakerTimeout
	gcfg.Logger = inst.Logger
	gcfg.Metrics = inst.Metrics
	gcfg.Tracer = inst.Tracer

	client := gradeservice.NewClient(gcfg)
	return client, client
}

// newScheduler registers the store stats job. It returns nil when metrics
// are off or the interval is zero, since the job only feeds gauges.
func newScheduler(cfg *config.Config, repo student.Repository, metrics *observability.Metrics, log *slog.Logger) (*scheduler.Scheduler, error) {
	if metrics == nil || cfg.Observability.StatsInterval == 0 {
		return nil, nil
	}

	every, err := scheduler.NewIntervalSchedule(cfg.Observability.StatsInterval)
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	if err := sched.Register(jobs.NewStoreStatsJob(repo, metrics, log), every); err != nil {
		return nil, fmt.Errorf("failed to register stats job: %w", err)
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		metrics.RecordJobRun(r.JobName, r.Err)
	})
	return sched, nil
}
