package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/memory"
	"github.com/stepup/gradebook/internal/infrastructure/persistence/repotest"
	"github.com/stepup/gradebook/pkg/logger"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheWithClient(client, "test:"), mr
}

// hookRepo runs afterFind once, right after the inner FindByID returns.
type hookRepo struct {
	student.Repository
	afterFind func()
}

func (h *hookRepo) FindByID(ctx context.Context, id student.ID) (*student.Student, error) {
	s, err := h.Repository.FindByID(ctx, id)
	if hook := h.afterFind; hook != nil {
		h.afterFind = nil
		hook()
	}
	return s, err
}

func newCachedRepo(t *testing.T) (*CachedRepository, *memory.StudentRepository, *miniredis.Miniredis) {
	t.Helper()
	cache, mr := newTestCache(t)
	inner := memory.NewStudentRepository()
	return NewCachedRepository(inner, cache, time.Minute, logger.Discard()), inner, mr
}

func mustStudent(t *testing.T, id student.ID, name string, grades ...student.Grade) *student.Student {
	t.Helper()
	s, err := student.New(id, name, grades)
	require.NoError(t, err)
	return s
}

func TestStudentKey(t *testing.T) {
	assert.Equal(t, "student:42", StudentKey(42))
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestCachedRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) student.Repository {
		repo, _, _ := newCachedRepo(t)
		return repo
	})
}

func TestCachedRepository_FindByIDFillsCache(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5, 4, 5))
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:"+StudentKey(saved.ID().Int64())))

	_, err = repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+StudentKey(saved.ID().Int64())))
	assert.Greater(t, mr.TTL("test:"+StudentKey(saved.ID().Int64())), time.Duration(0))
}

func TestCachedRepository_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5))
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)

	_, err = repo.Save(ctx, mustStudent(t, saved.ID(), "Alice", 2, 2))
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:"+StudentKey(saved.ID().Int64())))

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, []student.Grade{2, 2}, got.Grades())
}

func TestCachedRepository_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	repo, inner, _ := newCachedRepo(t)

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5))
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)

	// Bypass the decorator: the cached copy stays until invalidated.
	_, err = inner.Save(ctx, mustStudent(t, saved.ID(), "Changed", 3))
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name())
}

func TestCachedRepository_DeleteAllFlushesStudents(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)

	for _, name := range []string{"A", "B"} {
		s, err := repo.Save(ctx, mustStudent(t, 0, name, 4))
		require.NoError(t, err)
		_, err = repo.FindByID(ctx, s.ID())
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("test:other", "keep"))

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"test:cache:epoch", "test:other"}, mr.Keys())
}

func TestCachedRepository_CacheDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5))
	require.NoError(t, err)

	mr.SetError("ERR server unavailable")

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name())
	assert.Error(t, repo.Ping(ctx))
}

func TestCache_SetIfFreshAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	stamp, err := cache.Stamp(ctx, "student:1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "student:1"))

	written, err := cache.SetIfFresh(ctx, stamp, cachedStudent{ID: 1, Name: "Old"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, written)
	assert.False(t, mr.Exists("test:student:1"))

	stamp, err = cache.Stamp(ctx, "student:1")
	require.NoError(t, err)
	written, err = cache.SetIfFresh(ctx, stamp, cachedStudent{ID: 1, Name: "New"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, written)
	assert.True(t, mr.Exists("test:student:1"))
}

func TestCache_SetIfFreshAfterPatternFlush(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	stamp, err := cache.Stamp(ctx, "student:1")
	require.NoError(t, err)
	require.NoError(t, cache.InvalidatePattern(ctx, PrefixStudent+"*"))

	written, err := cache.SetIfFresh(ctx, stamp, cachedStudent{ID: 1, Name: "Old"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, written)
	assert.False(t, mr.Exists("test:student:1"))
}

func TestCachedRepository_FillDoesNotOverwriteConcurrentSave(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	inner := &hookRepo{Repository: memory.NewStudentRepository()}
	repo := NewCachedRepository(inner, cache, time.Minute, logger.Discard())

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Old", 3))
	require.NoError(t, err)

	inner.afterFind = func() {
		_, err := repo.Save(ctx, mustStudent(t, saved.ID(), "New", 5, 5))
		require.NoError(t, err)
	}

	first, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "Old", first.Name(), "read happened before the save")
	assert.False(t, mr.Exists("test:"+StudentKey(saved.ID().Int64())))

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name())
	assert.Equal(t, []student.Grade{5, 5}, got.Grades())
}

func TestCachedRepository_FillDoesNotOutliveDelete(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	inner := &hookRepo{Repository: memory.NewStudentRepository()}
	repo := NewCachedRepository(inner, cache, time.Minute, logger.Discard())

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Gone", 4))
	require.NoError(t, err)

	inner.afterFind = func() {
		require.NoError(t, repo.Delete(ctx, saved.ID()))
	}
	_, err = repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, saved.ID())
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	_, err = repo.Update(ctx, saved.ID(), func(s *student.Student) error { return s.AddGrade(5) })
	assert.ErrorIs(t, err, student.ErrStudentNotFound)
}

func TestCachedRepository_UpdateReadsStore(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr := newCachedRepo(t)

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 4))
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)

	// The cached copy is now stale.
	_, err = inner.Save(ctx, mustStudent(t, saved.ID(), "Changed", 2))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, saved.ID(), func(s *student.Student) error { return s.AddGrade(5) })
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.Name())
	assert.Equal(t, []student.Grade{2, 5}, updated.Grades())
	assert.False(t, mr.Exists("test:"+StudentKey(saved.ID().Int64())))

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, []student.Grade{2, 5}, got.Grades())
}
