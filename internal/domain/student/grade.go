package student

import (
	"fmt"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Grade - одна оценка студента.
type Grade int

const (
	// MinGrade - наименьшая допустимая оценка.
	MinGrade Grade = 2
	// MaxGrade - наибольшая допустимая оценка.
	MaxGrade Grade = 5
)

// IsValid проверяет, что оценка лежит в диапазоне [MinGrade, MaxGrade].
func (g Grade) IsValid() bool {
	return g >= MinGrade && g <= MaxGrade
}

// Int возвращает значение оценки.
func (g Grade) Int() int {
	return int(g)
}

// IsValidGrade - проверка произвольного целого числа.
func IsValidGrade(v int) bool {
	return Grade(v).IsValid()
}

// GradesFromInts конвертирует срез целых чисел в оценки без проверки.
func GradesFromInts(values []int) []Grade {
	if values == nil {
		return nil
	}
	grades := make([]Grade, len(values))
	for i, v := range values {
		grades[i] = Grade(v)
	}
	return grades
}

// GradesToInts - обратное преобразование для сериализации.
func GradesToInts(grades []Grade) []int {
	values := make([]int, len(grades))
	for i, g := range grades {
		values[i] = int(g)
	}
	return values
}

// ID - идентификатор студента, назначаемый хранилищем.
// Нулевое значение означает, что идентификатор ещё не назначен.
type ID int64

// IsAssigned возвращает true для назначенного идентификатора.
func (id ID) IsAssigned() bool {
	return id > 0
}

// Int64 возвращает значение идентификатора.
func (id ID) Int64() int64 {
	return int64(id)
}

// String возвращает строковое представление.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID разбирает идентификатор из строки (например, из URL).
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}
