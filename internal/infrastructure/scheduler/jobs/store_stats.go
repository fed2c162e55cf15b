// Package jobs contains the periodic jobs run by the scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stepup/gradebook/internal/domain/leaderboard"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
)

// StoreStatsName is the scheduler name of StoreStatsJob.
const StoreStatsName = "store_stats"

// StoreStats is a sampled view of the store.
type StoreStats struct {
	Students   int
	WithGrades int
	TopAverage float64
	Leaders    int
}

// StoreStatsJob samples the store and publishes its size and current top
// average as gauges.
type StoreStatsJob struct {
	repo    student.Repository
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewStoreStatsJob creates the job. metrics may be nil.
func NewStoreStatsJob(repo student.Repository, metrics *observability.Metrics, logger *slog.Logger) *StoreStatsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreStatsJob{repo: repo, metrics: metrics, logger: logger}
}

func (j *StoreStatsJob) Name() string { return StoreStatsName }

// Run implements scheduler.Job.
func (j *StoreStatsJob) Run(ctx context.Context) error {
	_, err := j.Collect(ctx)
	return err
}

// Collect reads one snapshot and updates the gauges.
func (j *StoreStatsJob) Collect(ctx context.Context) (StoreStats, error) {
	snapshot, err := j.repo.FindAll(ctx)
	if err != nil {
		return StoreStats{}, fmt.Errorf("store stats: %w", err)
	}

	result := leaderboard.Select(snapshot)
	stats := StoreStats{
		Students:   len(snapshot),
		WithGrades: result.Considered,
		TopAverage: result.MaxAverage,
		Leaders:    len(result.Winners),
	}

	j.metrics.SetStoreStats(stats.Students, stats.TopAverage)
	j.logger.DebugContext(ctx, "store stats collected",
		"students", stats.Students,
		"with_grades", stats.WithGrades,
		"top_average", stats.TopAverage,
		"leaders", stats.Leaders,
	)
	return stats, nil
}
