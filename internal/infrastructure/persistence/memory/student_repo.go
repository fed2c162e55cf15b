// Package memory implements student.Repository in process memory.
// It is the default store and the reference for the SQL implementations.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stepup/gradebook/internal/domain/student"
)

// StudentRepository keeps students in a map guarded by a single RWMutex.
// Students are cloned on the way in and on the way out.
type StudentRepository struct {
	mu       sync.RWMutex
	students map[student.ID]*student.Student
	nextID   student.ID
}

// NewStudentRepository creates an empty store. IDs start at 1.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{
		students: make(map[student.ID]*student.Student),
		nextID:   1,
	}
}

// Compile-time check.
var _ student.Repository = (*StudentRepository)(nil)

// Save implements student.Repository.
func (r *StudentRepository) Save(_ context.Context, s *student.Student) (*student.Student, error) {
	stored := s.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	id := stored.ID()
	if !id.IsAssigned() {
		id = r.nextID
		stored.AssignID(id)
	}
	if id >= r.nextID {
		r.nextID = id + 1
	}

	r.students[id] = stored
	return stored.Clone(), nil
}

// Update implements student.Repository. fn runs under the write lock
// on a copy; the copy replaces the stored record only if fn succeeds.
func (r *StudentRepository) Update(_ context.Context, id student.ID, fn func(*student.Student) error) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	r.students[id] = next
	return next.Clone(), nil
}

// FindByID implements student.Repository.
func (r *StudentRepository) FindByID(_ context.Context, id student.ID) (*student.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s.Clone(), nil
}

// FindAll implements student.Repository.
func (r *StudentRepository) FindAll(_ context.Context) ([]*student.Student, error) {
	r.mu.RLock()
	out := make([]*student.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Delete implements student.Repository.
func (r *StudentRepository) Delete(_ context.Context, id student.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.students[id]; !ok {
		return student.ErrStudentNotFound
	}
	delete(r.students, id)
	return nil
}

// DeleteAll implements student.Repository. The ID counter is not reset.
func (r *StudentRepository) DeleteAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.students)
	r.students = make(map[student.ID]*student.Student)
	return n, nil
}

// Count implements student.Repository.
func (r *StudentRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students), nil
}

// Ping implements student.HealthChecker.
func (r *StudentRepository) Ping(_ context.Context) error {
	return nil
}
