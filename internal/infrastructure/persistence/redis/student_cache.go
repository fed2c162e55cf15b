package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// cachedStudent is the JSON form kept in Redis.
type cachedStudent struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Grades []int  `json:"grades"`
}

func toCached(s *student.Student) cachedStudent {
	return cachedStudent{
		ID:     s.ID().Int64(),
		Name:   s.Name(),
		Grades: student.GradesToInts(s.Grades()),
	}
}

func (c cachedStudent) toStudent() (*student.Student, error) {
	return student.New(student.ID(c.ID), c.Name, student.GradesFromInts(c.Grades))
}

// CachedRepository wraps a student.Repository with a Redis read-through
// cache for FindByID. Writes go to the inner store first and then
// invalidate the affected keys; fills are guarded so that a value read
// before an invalidation is not cached after it. Update, FindAll and
// Count always go to the inner store, so neither read-modify-write nor
// the leaderboard ever starts from cached data.
//
// Cache failures are logged and never fail the call.
type CachedRepository struct {
	inner  student.Repository
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository creates the decorator.
func NewCachedRepository(inner student.Repository, cache *Cache, ttl time.Duration, log *slog.Logger) *CachedRepository {
	if log == nil {
		log = slog.Default()
	}
	return &CachedRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: log.With(logger.Component("student_cache")),
	}
}

var _ student.Repository = (*CachedRepository)(nil)

// Save writes through and invalidates the record's key.
func (r *CachedRepository) Save(ctx context.Context, s *student.Student) (*student.Student, error) {
	saved, err := r.inner.Save(ctx, s)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved.ID())
	return saved, nil
}

// FindByID serves from cache when possible and fills it on a miss.
func (r *CachedRepository) FindByID(ctx context.Context, id student.ID) (*student.Student, error) {
	var cached cachedStudent
	err := r.cache.Get(ctx, StudentKey(id.Int64()), &cached)
	switch {
	case err == nil:
		if s, convErr := cached.toStudent(); convErr == nil {
			return s, nil
		}
		r.invalidate(ctx, id)
	case !errors.Is(err, ErrCacheMiss):
		r.logger.Warn("cache read failed", logger.StudentID(id.Int64()), logger.Err(err))
	}

	key := StudentKey(id.Int64())
	stamp, stampErr := r.cache.Stamp(ctx, key)
	if stampErr != nil {
		r.logger.Warn("cache stamp failed", logger.StudentID(id.Int64()), logger.Err(stampErr))
	}

	s, err := r.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if stampErr == nil {
		if _, err := r.cache.SetIfFresh(ctx, stamp, toCached(s), r.ttl); err != nil {
			r.logger.Warn("cache write failed", logger.StudentID(id.Int64()), logger.Err(err))
		}
	}
	return s, nil
}

// Update runs on the inner store and invalidates the key afterwards.
func (r *CachedRepository) Update(ctx context.Context, id student.ID, fn func(*student.Student) error) (*student.Student, error) {
	updated, err := r.inner.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return updated, nil
}

// FindAll always reads the underlying store.
func (r *CachedRepository) FindAll(ctx context.Context) ([]*student.Student, error) {
	return r.inner.FindAll(ctx)
}

// Delete removes from the store, then from the cache.
func (r *CachedRepository) Delete(ctx context.Context, id student.ID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// DeleteAll empties the store and drops every cached student.
func (r *CachedRepository) DeleteAll(ctx context.Context) (int, error) {
	n, err := r.inner.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.cache.InvalidatePattern(ctx, PrefixStudent+"*"); err != nil {
		r.logger.Warn("cache flush failed", logger.Err(err))
	}
	return n, nil
}

// Count always reads the underlying store.
func (r *CachedRepository) Count(ctx context.Context) (int, error) {
	return r.inner.Count(ctx)
}

// Ping checks both the store and Redis.
func (r *CachedRepository) Ping(ctx context.Context) error {
	if hc, ok := r.inner.(student.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			return err
		}
	}
	return r.cache.Ping(ctx)
}

func (r *CachedRepository) invalidate(ctx context.Context, id student.ID) {
	if err := r.cache.Invalidate(ctx, StudentKey(id.Int64())); err != nil {
		r.logger.Warn("cache invalidation failed", logger.StudentID(id.Int64()), logger.Err(err))
	}
}
