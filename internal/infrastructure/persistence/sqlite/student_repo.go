package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stepup/gradebook/internal/domain/student"
)

// StudentRepository implements student.Repository using SQLite.
// Grades live in student_grades keyed by (student_id, position).
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

var _ student.Repository = (*StudentRepository)(nil)

// Save persists a student (insert or replace).
// PRE: s passed aggregate validation
// POST: name and grades are stored; AUTOINCREMENT keeps IDs monotonic,
// including after explicit IDs and deletions
func (r *StudentRepository) Save(ctx context.Context, s *student.Student) (*student.Student, error) {
	stored := s.Clone()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if stored.ID().IsAssigned() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO students (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			stored.ID().Int64(), stored.Name())
		if err != nil {
			return nil, fmt.Errorf("upsert student: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `INSERT INTO students (name) VALUES (?)`, stored.Name())
		if err != nil {
			return nil, fmt.Errorf("insert student: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		stored.AssignID(student.ID(id))
	}

	if err := replaceGrades(ctx, tx, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// Update reads, modifies and writes a student inside one transaction.
// The handle has a single connection, so the transaction excludes every
// other write until it commits.
// POST: returns student.ErrStudentNotFound if the row is gone; on any
// error nothing is written
func (r *StudentRepository) Update(ctx context.Context, id student.ID, fn func(*student.Student) error) (*student.Student, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := findStudent(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE students SET name = ? WHERE id = ?`, current.Name(), id.Int64()); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if err := replaceGrades(ctx, tx, current); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current.Clone(), nil
}

// FindByID retrieves a student by ID.
// POST: returns student.ErrStudentNotFound if absent
func (r *StudentRepository) FindByID(ctx context.Context, id student.ID) (*student.Student, error) {
	return findStudent(ctx, r.db, id)
}

// FindAll returns every student inside one read transaction.
// POST: result is ordered by ID
func (r *StudentRepository) FindAll(ctx context.Context) ([]*student.Student, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	type record struct {
		id     student.ID
		name   string
		grades []student.Grade
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	var (
		records []*record
		byID    = make(map[student.ID]*record)
	)
	for rows.Next() {
		rec := &record{}
		var id int64
		if err := rows.Scan(&id, &rec.name); err != nil {
			rows.Close()
			return nil, err
		}
		rec.id = student.ID(id)
		records = append(records, rec)
		byID[rec.id] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	gradeRows, err := tx.QueryContext(ctx,
		`SELECT student_id, grade FROM student_grades ORDER BY student_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query grades: %w", err)
	}
	for gradeRows.Next() {
		var (
			id int64
			g  int
		)
		if err := gradeRows.Scan(&id, &g); err != nil {
			gradeRows.Close()
			return nil, err
		}
		if rec, ok := byID[student.ID(id)]; ok {
			rec.grades = append(rec.grades, student.Grade(g))
		}
	}
	gradeRows.Close()
	if err := gradeRows.Err(); err != nil {
		return nil, err
	}

	out := make([]*student.Student, 0, len(records))
	for _, rec := range records {
		s, err := rehydrate(rec.id, rec.name, rec.grades)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Delete removes a student and its grades.
// POST: returns student.ErrStudentNotFound if nothing was deleted
func (r *StudentRepository) Delete(ctx context.Context, id student.ID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_grades WHERE student_id = ?`, id.Int64()); err != nil {
		return fmt.Errorf("delete grades: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id.Int64())
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return student.ErrStudentNotFound
	}
	return tx.Commit()
}

// DeleteAll removes every student. sqlite_sequence is left untouched,
// so IDs keep growing.
func (r *StudentRepository) DeleteAll(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_grades`); err != nil {
		return 0, fmt.Errorf("delete grades: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students`)
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// Ping implements student.HealthChecker.
func (r *StudentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findStudent(ctx context.Context, q querier, id student.ID) (*student.Student, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM students WHERE id = ?`, id.Int64()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, student.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT grade FROM student_grades WHERE student_id = ? ORDER BY position`, id.Int64())
	if err != nil {
		return nil, fmt.Errorf("query grades: %w", err)
	}
	defer rows.Close()

	var grades []student.Grade
	for rows.Next() {
		var g int
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		grades = append(grades, student.Grade(g))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rehydrate(id, name, grades)
}

func replaceGrades(ctx context.Context, tx *sql.Tx, s *student.Student) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_grades WHERE student_id = ?`, s.ID().Int64()); err != nil {
		return fmt.Errorf("clear grades: %w", err)
	}
	for pos, g := range s.Grades() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO student_grades (student_id, position, grade) VALUES (?, ?, ?)`,
			s.ID().Int64(), pos, g.Int())
		if err != nil {
			return fmt.Errorf("insert grade: %w", err)
		}
	}
	return nil
}

func rehydrate(id student.ID, name string, grades []student.Grade) (*student.Student, error) {
	s, err := student.New(id, name, grades)
	if err != nil {
		return nil, fmt.Errorf("corrupt student row %d: %w", id, err)
	}
	return s, nil
}
