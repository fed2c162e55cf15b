// Package query contains read operations (CQRS - Queries).
package query

import (
	"github.com/stepup/gradebook/internal/domain/student"
)

// StudentDTO - представление студента для внешних слоёв.
// Имена JSON-полей совпадают с REST API: id, name, marks.
type StudentDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Marks []int  `json:"marks"`
}

// ToStudentDTO конвертирует агрегат в DTO. Marks никогда не nil.
func ToStudentDTO(s *student.Student) StudentDTO {
	return StudentDTO{
		ID:    s.ID().Int64(),
		Name:  s.Name(),
		Marks: student.GradesToInts(s.Grades()),
	}
}

// ToStudentDTOs конвертирует срез, сохраняя порядок.
func ToStudentDTOs(students []*student.Student) []StudentDTO {
	out := make([]StudentDTO, 0, len(students))
	for _, s := range students {
		out = append(out, ToStudentDTO(s))
	}
	return out
}
