package command

import (
	"context"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStudentCommand удаляет одного студента.
type DeleteStudentCommand struct {
	ID int64
}

// DeleteStudentHandler обрабатывает DeleteStudentCommand.
type DeleteStudentHandler struct {
	repo      student.Repository
	publisher shared.EventPublisher
	inst      application.Instrumentation
}

// NewDeleteStudentHandler создаёт обработчик.
func NewDeleteStudentHandler(repo student.Repository, publisher shared.EventPublisher, inst application.Instrumentation) *DeleteStudentHandler {
	return &DeleteStudentHandler{repo: repo, publisher: publisher, inst: inst.WithDefaults()}
}

// Handle удаляет студента. Отсутствующий ID - student.ErrStudentNotFound.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (err error) {
	ctx, span := h.inst.Tracer.StartCommandSpan(ctx, "delete_student", cmd.ID)
	defer func() { endSpan(span, err) }()

	id := student.ID(cmd.ID)
	if !id.IsAssigned() {
		return student.ErrInvalidID
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return err
	}

	h.inst.Metrics.RecordDeleted(1)
	h.inst.Publish(ctx, h.publisher, student.NewStudentDeletedEvent(id))
	h.inst.Log(ctx).Info("student deleted", logger.StudentID(cmd.ID))

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE ALL STUDENTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteAllStudentsCommand очищает хранилище. Счётчик ID не сбрасывается.
type DeleteAllStudentsCommand struct{}

// DeleteAllStudentsHandler обрабатывает DeleteAllStudentsCommand.
type DeleteAllStudentsHandler struct {
	repo      student.Repository
	publisher shared.EventPublisher
	inst      application.Instrumentation
}

// NewDeleteAllStudentsHandler создаёт обработчик.
func NewDeleteAllStudentsHandler(repo student.Repository, publisher shared.EventPublisher, inst application.Instrumentation) *DeleteAllStudentsHandler {
	return &DeleteAllStudentsHandler{repo: repo, publisher: publisher, inst: inst.WithDefaults()}
}

// Handle возвращает количество удалённых записей.
func (h *DeleteAllStudentsHandler) Handle(ctx context.Context, _ DeleteAllStudentsCommand) (removed int, err error) {
	ctx, span := h.inst.Tracer.StartCommandSpan(ctx, "delete_all_students", 0)
	defer func() { endSpan(span, err) }()

	removed, err = h.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	h.inst.Metrics.RecordDeleted(removed)
	h.inst.Publish(ctx, h.publisher, student.NewStudentsClearedEvent(removed))
	h.inst.Log(ctx).Info("students cleared", "removed", removed)

	return removed, nil
}
