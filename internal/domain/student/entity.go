package student

import (
	"context"
	"fmt"
	"strings"

	"github.com/stepup/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrStudentNotFound - студент не найден.
	ErrStudentNotFound = shared.NewDomainError("student", "Find", shared.ErrNotFound, "student not found")

	// ErrInvalidName - пустое имя или имя из одних пробелов.
	ErrInvalidName = shared.NewDomainError("student", "Validate", shared.ErrInvalidArgument, "name must not be empty")

	// ErrInvalidID - идентификатор не является положительным целым.
	ErrInvalidID = shared.NewDomainError("student", "Validate", shared.ErrInvalidID, "id must be a positive integer")
)

// InvalidGradeError возвращается при попытке записать оценку вне диапазона.
type InvalidGradeError struct {
	Value int
}

// Error реализует интерфейс error. Формат совпадает с исходным сервисом.
func (e *InvalidGradeError) Error() string {
	return fmt.Sprintf("%d is wrong grade", e.Value)
}

// Is позволяет сравнивать через errors.Is(err, shared.ErrInvalidGrade).
func (e *InvalidGradeError) Is(target error) bool {
	return target == shared.ErrInvalidGrade
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - агрегат: имя и упорядоченная последовательность оценок.
// Оценки доступны только через методы агрегата.
type Student struct {
	id     ID
	name   string
	grades []Grade
}

// New создаёт студента с проверкой всех полей.
// Имя обрезается по краям; все оценки проверяются до создания агрегата.
func New(id ID, name string, grades []Grade) (*Student, error) {
	trimmed, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := validateGrades(grades); err != nil {
		return nil, err
	}

	stored := make([]Grade, len(grades))
	copy(stored, grades)

	return &Student{
		id:     id,
		name:   trimmed,
		grades: stored,
	}, nil
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func validateGrades(grades []Grade) error {
	for _, g := range grades {
		if !g.IsValid() {
			return &InvalidGradeError{Value: int(g)}
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// ID возвращает идентификатор (0, если ещё не назначен).
func (s *Student) ID() ID {
	return s.id
}

// Name возвращает имя студента.
func (s *Student) Name() string {
	return s.name
}

// Grades возвращает копию оценок в порядке добавления.
func (s *Student) Grades() []Grade {
	out := make([]Grade, len(s.grades))
	copy(out, s.grades)
	return out
}

// GradeCount возвращает количество оценок.
func (s *Student) GradeCount() int {
	return len(s.grades)
}

// Sum возвращает сумму оценок.
func (s *Student) Sum() int {
	sum := 0
	for _, g := range s.grades {
		sum += int(g)
	}
	return sum
}

// Average возвращает среднее арифметическое оценок, 0.0 если оценок нет.
func (s *Student) Average() float64 {
	if len(s.grades) == 0 {
		return 0.0
	}
	return float64(s.Sum()) / float64(len(s.grades))
}

// HasGrades возвращает true, если у студента есть хотя бы одна оценка.
func (s *Student) HasGrades() bool {
	return len(s.grades) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// AssignID устанавливает идентификатор. Используется хранилищем.
func (s *Student) AssignID(id ID) {
	s.id = id
}

// AddGrade добавляет оценку в конец последовательности.
// Невалидная оценка возвращает *InvalidGradeError и не меняет состояние.
func (s *Student) AddGrade(g Grade) error {
	if !g.IsValid() {
		return &InvalidGradeError{Value: int(g)}
	}
	s.grades = append(s.grades, g)
	return nil
}

// ReplaceGrades заменяет все оценки целиком. Если хотя бы одна оценка
// невалидна, прежние оценки остаются нетронутыми.
func (s *Student) ReplaceGrades(grades []Grade) error {
	if err := validateGrades(grades); err != nil {
		return err
	}
	next := make([]Grade, len(grades))
	copy(next, grades)
	s.grades = next
	return nil
}

// Rename меняет имя, оценки не затрагиваются.
func (s *Student) Rename(name string) error {
	trimmed, err := normalizeName(name)
	if err != nil {
		return err
	}
	s.name = trimmed
	return nil
}

// Rating запрашивает у оракула рейтинг для суммы оценок.
func (s *Student) Rating(ctx context.Context, oracle GradeOracle) (int, error) {
	return oracle.RatingFor(ctx, s.Sum())
}

// Equal сравнивает имя и последовательность оценок. ID не учитывается.
func (s *Student) Equal(other *Student) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.name != other.name || len(s.grades) != len(other.grades) {
		return false
	}
	for i := range s.grades {
		if s.grades[i] != other.grades[i] {
			return false
		}
	}
	return true
}

// Clone возвращает глубокую копию студента.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	grades := make([]Grade, len(s.grades))
	copy(grades, s.grades)
	return &Student{
		id:     s.id,
		name:   s.name,
		grades: grades,
	}
}

// String возвращает строковое представление для логов.
func (s *Student) String() string {
	return fmt.Sprintf("Student{id=%d, name=%q, grades=%v}", s.id, s.name, s.grades)
}
