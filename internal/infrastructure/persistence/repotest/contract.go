// Package repotest holds the behaviour every student.Repository must show.
// Store packages call Run from their own tests.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
)

// Factory returns a fresh, empty repository.
type Factory func(t *testing.T) student.Repository

// Run executes the contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("SaveAssignsFreshIDs", func(t *testing.T) { testSaveAssignsFreshIDs(t, newRepo(t)) })
	t.Run("SaveWithIDOverwrites", func(t *testing.T) { testSaveWithIDOverwrites(t, newRepo(t)) })
	t.Run("SaveWithUnknownIDCreates", func(t *testing.T) { testSaveWithUnknownIDCreates(t, newRepo(t)) })
	t.Run("FindByIDMissing", func(t *testing.T) { testFindByIDMissing(t, newRepo(t)) })
	t.Run("ReturnsCopies", func(t *testing.T) { testReturnsCopies(t, newRepo(t)) })
	t.Run("FindAllOrderedByID", func(t *testing.T) { testFindAllOrdered(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("DeleteAllKeepsCounter", func(t *testing.T) { testDeleteAll(t, newRepo(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newRepo(t)) })
	t.Run("UpdateAppliesChange", func(t *testing.T) { testUpdateAppliesChange(t, newRepo(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newRepo(t)) })
	t.Run("UpdateRejectedLeavesState", func(t *testing.T) { testUpdateRejected(t, newRepo(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newRepo(t)) })
	t.Run("UpdateRacingDelete", func(t *testing.T) { testUpdateRacingDelete(t, newRepo(t)) })
}

func mustStudent(t *testing.T, id student.ID, name string, grades ...student.Grade) *student.Student {
	t.Helper()
	s, err := student.New(id, name, grades)
	require.NoError(t, err)
	return s
}

func testSaveAssignsFreshIDs(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	a, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5, 4))
	require.NoError(t, err)
	b, err := repo.Save(ctx, mustStudent(t, 0, "Bob"))
	require.NoError(t, err)

	assert.True(t, a.ID().IsAssigned())
	assert.True(t, b.ID().IsAssigned())
	assert.NotEqual(t, a.ID(), b.ID())

	got, err := repo.FindByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name())
	assert.Equal(t, []student.Grade{5, 4}, got.Grades())
}

func testSaveWithIDOverwrites(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 5))
	require.NoError(t, err)

	_, err = repo.Save(ctx, mustStudent(t, saved.ID(), "Alicia", 3, 3))
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, saved.ID(), all[0].ID())
	assert.Equal(t, "Alicia", all[0].Name())
	assert.Equal(t, []student.Grade{3, 3}, all[0].Grades())
}

func testSaveWithUnknownIDCreates(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	explicit, err := repo.Save(ctx, mustStudent(t, 10, "Ten"))
	require.NoError(t, err)
	assert.Equal(t, student.ID(10), explicit.ID())

	next, err := repo.Save(ctx, mustStudent(t, 0, "Next"))
	require.NoError(t, err)
	assert.Greater(t, int64(next.ID()), int64(10), "auto IDs must not collide with explicit ones")
}

func testFindByIDMissing(t *testing.T, repo student.Repository) {
	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, student.ErrStudentNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func testReturnsCopies(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	original := mustStudent(t, 0, "Alice", 4)
	saved, err := repo.Save(ctx, original)
	require.NoError(t, err)

	require.NoError(t, original.AddGrade(5))
	require.NoError(t, saved.AddGrade(5))

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, []student.Grade{4}, got.Grades())
	assert.False(t, original.ID().IsAssigned(), "Save must not mutate its argument")
}

func testFindAllOrdered(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	_, err := repo.Save(ctx, mustStudent(t, 7, "Seven"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, mustStudent(t, 3, "Three", 5))
	require.NoError(t, err)
	_, err = repo.Save(ctx, mustStudent(t, 0, "Auto"))
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, int64(all[i-1].ID()), int64(all[i].ID()))
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testDelete(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, saved.ID()))
	_, err = repo.FindByID(ctx, saved.ID())
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, saved.ID()), student.ErrStudentNotFound)

	again, err := repo.Save(ctx, mustStudent(t, 0, "Bob"))
	require.NoError(t, err)
	assert.NotEqual(t, saved.ID(), again.ID(), "deleted IDs are not reused")
}

func testDeleteAll(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	first, err := repo.Save(ctx, mustStudent(t, 0, "A"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, mustStudent(t, 0, "B", 2))
	require.NoError(t, err)

	removed, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	next, err := repo.Save(ctx, mustStudent(t, 0, "C"))
	require.NoError(t, err)
	assert.Greater(t, int64(next.ID()), int64(first.ID()))
}

func testConcurrentSaves(t *testing.T, repo student.Repository) {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	ids := make(chan student.ID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := student.New(0, "Concurrent", []student.Grade{4})
			if err != nil {
				return
			}
			saved, err := repo.Save(ctx, s)
			if err == nil {
				ids <- saved.ID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[student.ID]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func addGrade(g student.Grade) func(*student.Student) error {
	return func(s *student.Student) error { return s.AddGrade(g) }
}

func testUpdateAppliesChange(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 4))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, saved.ID(), func(s *student.Student) error {
		if err := s.Rename("Alicia"); err != nil {
			return err
		}
		return s.AddGrade(5)
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID(), updated.ID())
	assert.Equal(t, "Alicia", updated.Name())
	assert.Equal(t, []student.Grade{4, 5}, updated.Grades())

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.True(t, updated.Equal(got))
}

func testUpdateMissing(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	called := false
	_, err := repo.Update(ctx, 404, func(*student.Student) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, student.ErrStudentNotFound)
	assert.False(t, called)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "Update never creates a record")
}

func testUpdateRejected(t *testing.T, repo student.Repository) {
	ctx := context.Background()

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 4))
	require.NoError(t, err)

	_, err = repo.Update(ctx, saved.ID(), addGrade(9))
	assert.ErrorIs(t, err, shared.ErrInvalidGrade)

	stop := errors.New("stop")
	_, err = repo.Update(ctx, saved.ID(), func(s *student.Student) error {
		if err := s.AddGrade(5); err != nil {
			return err
		}
		return stop
	})
	assert.ErrorIs(t, err, stop)

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, []student.Grade{4}, got.Grades())
}

func testConcurrentUpdates(t *testing.T, repo student.Repository) {
	ctx := context.Background()
	const n = 20

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, saved.ID(), addGrade(3))
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, n, got.GradeCount(), "no update may be lost")
}

// Whatever the interleaving, a deleted student stays deleted.
func testUpdateRacingDelete(t *testing.T, repo student.Repository) {
	ctx := context.Background()
	const n = 20

	saved, err := repo.Save(ctx, mustStudent(t, 0, "Alice", 4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, saved.ID(), addGrade(5))
			if err != nil {
				assert.ErrorIs(t, err, student.ErrStudentNotFound)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, repo.Delete(ctx, saved.ID()))
	}()
	wg.Wait()

	_, err = repo.FindByID(ctx, saved.ID())
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	n2, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n2)
}
