package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
// Grades are stored in order as an INTEGER[] column.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

var _ student.Repository = (*StudentRepository)(nil)

// bumpSequence moves students_id_seq past an explicitly chosen id so
// that later BIGSERIAL values never collide with it.
const bumpSequence = `
	SELECT setval('students_id_seq', $1)
	FROM students_id_seq
	WHERE $1 >= CASE WHEN is_called THEN last_value + 1 ELSE last_value END
`

// Save creates or replaces a student.
func (r *StudentRepository) Save(ctx context.Context, s *student.Student) (*student.Student, error) {
	stored := s.Clone()
	grades := toInt32s(stored.Grades())

	err := r.conn.WithTx(ctx, ReadWrite, func(tx pgx.Tx) error {
		if !stored.ID().IsAssigned() {
			var id int64
			err := tx.QueryRow(ctx,
				`INSERT INTO students (name, grades) VALUES ($1, $2) RETURNING id`,
				stored.Name(), grades,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to insert student: %w", mapConstraintError(err))
			}
			stored.AssignID(student.ID(id))
			return nil
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO students (id, name, grades) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, grades = EXCLUDED.grades, updated_at = NOW()
		`, stored.ID().Int64(), stored.Name(), grades)
		if err != nil {
			return fmt.Errorf("failed to upsert student: %w", mapConstraintError(err))
		}

		if _, err := tx.Exec(ctx, bumpSequence, stored.ID().Int64()); err != nil {
			return fmt.Errorf("failed to advance id sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes
// the result in the same transaction. A concurrent Delete either waits
// for the commit or makes the lookup miss.
func (r *StudentRepository) Update(ctx context.Context, id student.ID, fn func(*student.Student) error) (*student.Student, error) {
	var updated *student.Student

	err := r.conn.WithTx(ctx, ReadWrite, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id, name, grades FROM students WHERE id = $1 FOR UPDATE`, id.Int64())
		current, err := scanStudent(row)
		if IsNoRows(err) {
			return student.ErrStudentNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(current); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE students SET name = $2, grades = $3, updated_at = NOW() WHERE id = $1`,
			id.Int64(), current.Name(), toInt32s(current.Grades()))
		if err != nil {
			return fmt.Errorf("failed to update student: %w", mapConstraintError(err))
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id student.ID) (*student.Student, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, grades FROM students WHERE id = $1`, id.Int64())
	s, err := scanStudent(row)
	if IsNoRows(err) {
		return nil, student.ErrStudentNotFound
	}
	return s, err
}

// FindAll returns all students ordered by ID. A single statement
// reads from one snapshot.
func (r *StudentRepository) FindAll(ctx context.Context) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, name, grades FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var out []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []*student.Student{}
	}
	return out, nil
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id student.ID) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, id.Int64())
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}
	return nil
}

// DeleteAll removes every student. The id sequence is not reset.
func (r *StudentRepository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.conn.Exec(ctx, `DELETE FROM students`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete students: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

// Ping implements student.HealthChecker.
func (r *StudentRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanStudent(row pgx.Row) (*student.Student, error) {
	var (
		id     int64
		name   string
		grades []int32
	)
	if err := row.Scan(&id, &name, &grades); err != nil {
		return nil, err
	}

	s, err := student.New(student.ID(id), name, fromInt32s(grades))
	if err != nil {
		return nil, fmt.Errorf("corrupt student row %d: %w", id, err)
	}
	return s, nil
}

// mapConstraintError turns CHECK violations into domain validation errors.
func mapConstraintError(err error) error {
	if !IsCheckViolation(err) {
		return err
	}
	switch ConstraintName(err) {
	case "valid_name":
		return student.ErrInvalidName
	case "valid_grades":
		return fmt.Errorf("%w: %v", shared.ErrInvalidGrade, err)
	default:
		return err
	}
}

func toInt32s(grades []student.Grade) []int32 {
	out := make([]int32, len(grades))
	for i, g := range grades {
		out[i] = int32(g)
	}
	return out
}

func fromInt32s(values []int32) []student.Grade {
	out := make([]student.Grade, len(values))
	for i, v := range values {
		out[i] = student.Grade(v)
	}
	return out
}
