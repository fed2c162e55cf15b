package student

import (
	"github.com/stepup/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События, на которые могут реагировать другие части системы (логи, метрики).
// ══════════════════════════════════════════════════════════════════════════════

// StudentSavedEvent - студент создан или перезаписан.
type StudentSavedEvent struct {
	shared.BaseEvent
	StudentID  ID     `json:"student_id"`
	Name       string `json:"name"`
	GradeCount int    `json:"grade_count"`
	Created    bool   `json:"created"`
}

// Payload реализует shared.Event.
func (e StudentSavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  int64(e.StudentID),
		"name":        e.Name,
		"grade_count": e.GradeCount,
		"created":     e.Created,
	}
}

// NewStudentSavedEvent создаёт событие сохранения.
func NewStudentSavedEvent(s *Student, created bool) StudentSavedEvent {
	return StudentSavedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventStudentSaved, s.ID().String()),
		StudentID:  s.ID(),
		Name:       s.Name(),
		GradeCount: s.GradeCount(),
		Created:    created,
	}
}

// StudentDeletedEvent - студент удалён.
type StudentDeletedEvent struct {
	shared.BaseEvent
	StudentID ID `json:"student_id"`
}

// Payload реализует shared.Event.
func (e StudentDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": int64(e.StudentID),
	}
}

// NewStudentDeletedEvent создаёт событие удаления.
func NewStudentDeletedEvent(id ID) StudentDeletedEvent {
	return StudentDeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentDeleted, id.String()),
		StudentID: id,
	}
}

// GradeAddedEvent - студенту добавлена оценка.
type GradeAddedEvent struct {
	shared.BaseEvent
	StudentID ID      `json:"student_id"`
	Grade     Grade   `json:"grade"`
	Average   float64 `json:"average"`
}

// Payload реализует shared.Event.
func (e GradeAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": int64(e.StudentID),
		"grade":      int(e.Grade),
		"average":    e.Average,
	}
}

// NewGradeAddedEvent создаёт событие добавления оценки.
func NewGradeAddedEvent(s *Student, g Grade) GradeAddedEvent {
	return GradeAddedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventGradeAdded, s.ID().String()),
		StudentID: s.ID(),
		Grade:     g,
		Average:   s.Average(),
	}
}

// StudentsClearedEvent - удалены все студенты.
type StudentsClearedEvent struct {
	shared.BaseEvent
	Removed int `json:"removed"`
}

// Payload реализует shared.Event.
func (e StudentsClearedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"removed": e.Removed,
	}
}

// NewStudentsClearedEvent создаёт событие очистки.
func NewStudentsClearedEvent(removed int) StudentsClearedEvent {
	return StudentsClearedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentsCleared, "students"),
		Removed:   removed,
	}
}
