package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/memory"
	"github.com/stepup/gradebook/pkg/logger"
)

func seed(t *testing.T, repo student.Repository, name string, grades ...int) {
	t.Helper()
	s, err := student.New(0, name, student.GradesFromInts(grades))
	require.NoError(t, err)
	_, err = repo.Save(context.Background(), s)
	require.NoError(t, err)
}

func TestStoreStatsJob_Collect(t *testing.T) {
	repo := memory.NewStudentRepository()
	seed(t, repo, "Anna", 5, 4)
	seed(t, repo, "Boris", 5, 4, 5, 4)
	seed(t, repo, "Vera")

	m := observability.NewMetrics(prometheus.NewRegistry())
	job := NewStoreStatsJob(repo, m, logger.Discard())

	stats, err := job.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Students)
	assert.Equal(t, 2, stats.WithGrades)
	assert.Equal(t, 4.5, stats.TopAverage)
	assert.Equal(t, 1, stats.Leaders)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StudentsStored))
	assert.Equal(t, 4.5, testutil.ToFloat64(m.TopAverage))
}

func TestStoreStatsJob_EmptyStore(t *testing.T) {
	job := NewStoreStatsJob(memory.NewStudentRepository(), nil, logger.Discard())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, StoreStatsName, job.Name())
}

type failingRepo struct {
	student.Repository
}

func (failingRepo) FindAll(context.Context) ([]*student.Student, error) {
	return nil, errors.New("disk gone")
}

func TestStoreStatsJob_RepoError(t *testing.T) {
	job := NewStoreStatsJob(failingRepo{}, nil, logger.Discard())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
