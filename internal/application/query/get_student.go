package query

import (
	"context"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery - запрос одного студента по ID.
type GetStudentQuery struct {
	ID int64
}

// GetStudentHandler обрабатывает GetStudentQuery.
type GetStudentHandler struct {
	repo student.Repository
	inst application.Instrumentation
}

// NewGetStudentHandler создаёт обработчик.
func NewGetStudentHandler(repo student.Repository, inst application.Instrumentation) *GetStudentHandler {
	return &GetStudentHandler{repo: repo, inst: inst.WithDefaults()}
}

// Handle возвращает студента или student.ErrStudentNotFound.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (_ *StudentDTO, err error) {
	ctx, span := h.inst.Tracer.StartQuerySpan(ctx, "get_student")
	defer func() { endSpan(span, err) }()

	id := student.ID(q.ID)
	if !id.IsAssigned() {
		return nil, student.ErrInvalidID
	}

	s, err := h.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := ToStudentDTO(s)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery - все студенты по возрастанию ID.
type ListStudentsQuery struct{}

// ListStudentsHandler обрабатывает ListStudentsQuery.
type ListStudentsHandler struct {
	repo student.Repository
	inst application.Instrumentation
}

// NewListStudentsHandler создаёт обработчик.
func NewListStudentsHandler(repo student.Repository, inst application.Instrumentation) *ListStudentsHandler {
	return &ListStudentsHandler{repo: repo, inst: inst.WithDefaults()}
}

// Handle возвращает снимок хранилища.
func (h *ListStudentsHandler) Handle(ctx context.Context, _ ListStudentsQuery) (_ []StudentDTO, err error) {
	ctx, span := h.inst.Tracer.StartQuerySpan(ctx, "list_students")
	defer func() { endSpan(span, err) }()

	all, err := h.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToStudentDTOs(all), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNT STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// CountStudentsQuery - количество студентов.
type CountStudentsQuery struct{}

// CountStudentsHandler обрабатывает CountStudentsQuery.
type CountStudentsHandler struct {
	repo student.Repository
}

// NewCountStudentsHandler создаёт обработчик.
func NewCountStudentsHandler(repo student.Repository) *CountStudentsHandler {
	return &CountStudentsHandler{repo: repo}
}

// Handle возвращает количество записей.
func (h *CountStudentsHandler) Handle(ctx context.Context, _ CountStudentsQuery) (int, error) {
	return h.repo.Count(ctx)
}
