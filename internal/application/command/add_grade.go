package command

import (
	"context"
	"errors"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD GRADE COMMAND
// Добавляет одну оценку в конец последовательности студента.
// ══════════════════════════════════════════════════════════════════════════════

// AddGradeCommand содержит студента и новую оценку.
type AddGradeCommand struct {
	StudentID int64
	Grade     int
}

// AddGradeHandler обрабатывает AddGradeCommand.
type AddGradeHandler struct {
	repo      student.Repository
	oracle    student.GradeOracle
	publisher shared.EventPublisher
	inst      application.Instrumentation
}

// NewAddGradeHandler создаёт обработчик.
func NewAddGradeHandler(
	repo student.Repository,
	oracle student.GradeOracle,
	publisher shared.EventPublisher,
	inst application.Instrumentation,
) *AddGradeHandler {
	return &AddGradeHandler{
		repo:      repo,
		oracle:    oracle,
		publisher: publisher,
		inst:      inst.WithDefaults(),
	}
}

// Handle добавляет оценку и возвращает обновлённого студента.
// Невалидная оценка не меняет сохранённое состояние.
func (h *AddGradeHandler) Handle(ctx context.Context, cmd AddGradeCommand) (s *student.Student, err error) {
	ctx, span := h.inst.Tracer.StartCommandSpan(ctx, "add_grade", cmd.StudentID)
	defer func() { endSpan(span, err) }()

	id := student.ID(cmd.StudentID)
	if !id.IsAssigned() {
		return nil, student.ErrInvalidID
	}

	grades, err := checkGrades(ctx, h.oracle, []int{cmd.Grade})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrade) {
			h.inst.Metrics.RecordGradeRejected()
		}
		return nil, err
	}
	g := grades[0]

	// Хранилище выполняет чтение-изменение-запись атомарно.
	saved, err := h.repo.Update(ctx, id, func(current *student.Student) error {
		return current.AddGrade(g)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrade) {
			h.inst.Metrics.RecordGradeRejected()
		}
		return nil, err
	}

	h.inst.Metrics.RecordSave(false)
	h.inst.Publish(ctx, h.publisher, student.NewGradeAddedEvent(saved, g))
	h.inst.Log(ctx).Info("grade added",
		logger.StudentID(cmd.StudentID),
		logger.Grade(g.Int()),
	)

	return saved, nil
}
