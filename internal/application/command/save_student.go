// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"strings"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE STUDENT COMMAND
// Создаёт студента или целиком заменяет имя и оценки существующего.
// ══════════════════════════════════════════════════════════════════════════════

// SaveStudentCommand содержит данные для сохранения студента.
type SaveStudentCommand struct {
	// ID - 0 означает "выдать новый идентификатор".
	ID int64

	// Name - имя, не может быть пустым.
	Name string

	// Grades - оценки в порядке выставления.
	Grades []int
}

// Validate проверяет поля, не требующие обращения к оракулу.
func (c SaveStudentCommand) Validate() error {
	if c.ID < 0 {
		return student.ErrInvalidID
	}
	if strings.TrimSpace(c.Name) == "" {
		return student.ErrInvalidName
	}
	return nil
}

// SaveStudentResult - результат сохранения.
type SaveStudentResult struct {
	Student *student.Student

	// Created - true, если запись создана, false - если перезаписана.
	Created bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SaveStudentHandler обрабатывает SaveStudentCommand.
type SaveStudentHandler struct {
	repo      student.Repository
	oracle    student.GradeOracle
	publisher shared.EventPublisher
	inst      application.Instrumentation
}

// NewSaveStudentHandler создаёт обработчик.
func NewSaveStudentHandler(
	repo student.Repository,
	oracle student.GradeOracle,
	publisher shared.EventPublisher,
	inst application.Instrumentation,
) *SaveStudentHandler {
	return &SaveStudentHandler{
		repo:      repo,
		oracle:    oracle,
		publisher: publisher,
		inst:      inst.WithDefaults(),
	}
}

// Handle выполняет команду.
// Каждая оценка сначала проходит через оракул, затем через проверку
// диапазона в агрегате. Ошибка оракула возвращается как есть (внешний
// сервис), отказ оракула - как *student.InvalidGradeError.
func (h *SaveStudentHandler) Handle(ctx context.Context, cmd SaveStudentCommand) (result *SaveStudentResult, err error) {
	ctx, span := h.inst.Tracer.StartCommandSpan(ctx, "save_student", cmd.ID)
	defer func() { endSpan(span, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	grades, err := checkGrades(ctx, h.oracle, cmd.Grades)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrade) {
			h.inst.Metrics.RecordGradeRejected()
		}
		return nil, err
	}

	s, err := student.New(student.ID(cmd.ID), cmd.Name, grades)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidGrade) {
			h.inst.Metrics.RecordGradeRejected()
		}
		return nil, err
	}

	created := true
	if s.ID().IsAssigned() {
		_, findErr := h.repo.FindByID(ctx, s.ID())
		switch {
		case findErr == nil:
			created = false
		case !shared.IsNotFound(findErr):
			return nil, findErr
		}
	}

	saved, err := h.repo.Save(ctx, s)
	if err != nil {
		return nil, err
	}

	h.inst.Metrics.RecordSave(created)
	h.inst.Publish(ctx, h.publisher, student.NewStudentSavedEvent(saved, created))
	h.inst.Log(ctx).Info("student saved",
		logger.StudentID(saved.ID().Int64()),
		"created", created,
		"grades", saved.GradeCount(),
	)

	return &SaveStudentResult{Student: saved, Created: created}, nil
}

// checkGrades прогоняет значения через оракул. Первое отклонённое
// значение возвращается в *student.InvalidGradeError.
func checkGrades(ctx context.Context, oracle student.GradeOracle, values []int) ([]student.Grade, error) {
	grades := make([]student.Grade, 0, len(values))
	for _, v := range values {
		g := student.Grade(v)
		ok, err := oracle.IsValid(ctx, g)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &student.InvalidGradeError{Value: v}
		}
		grades = append(grades, g)
	}
	return grades, nil
}
