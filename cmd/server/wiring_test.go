package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/config"
	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/memory"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/sqlite"
	"github.com/stepup/gradebook/internal/infrastructure/scheduler/jobs"
	"github.com/stepup/gradebook/pkg/logger"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Defaults()
	st, err := openStore(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	defer st.close()
	assert.IsType(t, &memory.StudentRepository{}, st.repo)
	assert.NoError(t, st.Ping(ctx))

	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "grades.db")
	st, err = openStore(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	defer st.close()
	assert.IsType(t, &sqlite.StudentRepository{}, st.repo)
	assert.NoError(t, st.Ping(ctx))
}

func TestOpenCache_Disabled(t *testing.T) {
	c, err := openCache(config.Defaults(), logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewOracle(t *testing.T) {
	cfg := config.Defaults()
	cfg.Grades.Min = 3

	oracle, breaker := newOracle(cfg, application.Instrumentation{})
	assert.Nil(t, breaker)

	ok, err := oracle.IsValid(context.Background(), student.Grade(2))
	require.NoError(t, err)
	assert.False(t, ok, "configured range narrows the default")

	cfg.Grades.OracleURL = "http://localhost:5352"
	oracle, breaker = newOracle(cfg, application.Instrumentation{})
	require.NotNil(t, breaker)
	assert.Same(t, breaker, oracle)
}

func TestNewScheduler(t *testing.T) {
	repo := memory.NewStudentRepository()
	cfg := config.Defaults()

	sched, err := newScheduler(cfg, repo, nil, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, sched, "no metrics, no stats job")

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cfg.Observability.StatsInterval = 0
	sched, err = newScheduler(cfg, repo, metrics, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, sched)

	cfg.Observability.StatsInterval = time.Hour
	sched, err = newScheduler(cfg, repo, metrics, logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, sched)

	_, err = sched.RunNow(context.Background(), jobs.StoreStatsName)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobRuns.WithLabelValues(jobs.StoreStatsName, "ok")))
}
