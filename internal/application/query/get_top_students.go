package query

import (
	"context"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/leaderboard"
	"github.com/stepup/gradebook/internal/domain/student"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP STUDENTS QUERY
// Выбирает лучших студентов по снимку хранилища: максимальный средний балл,
// при равенстве - наибольшее число оценок. Возвращаются все победители.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopStudentsQuery - запрос лучших студентов.
type GetTopStudentsQuery struct{}

// TopStudentsDTO - результат выбора.
type TopStudentsDTO struct {
	// Students - победители по возрастанию ID. Пустой, если ни у кого нет оценок.
	Students []StudentDTO `json:"students"`

	// MaxAverage и MaxCount - значения критериев у победителей.
	MaxAverage float64 `json:"max_average"`
	MaxCount   int     `json:"max_count"`

	// Considered - сколько студентов с оценками участвовало в отборе.
	Considered int `json:"considered"`
}

// GetTopStudentsHandler обрабатывает GetTopStudentsQuery.
type GetTopStudentsHandler struct {
	repo student.Repository
	inst application.Instrumentation
}

// NewGetTopStudentsHandler создаёт обработчик.
func NewGetTopStudentsHandler(repo student.Repository, inst application.Instrumentation) *GetTopStudentsHandler {
	return &GetTopStudentsHandler{repo: repo, inst: inst.WithDefaults()}
}

// Handle берёт снимок и применяет leaderboard.Select. Хранилище не
// блокируется на время вычисления.
func (h *GetTopStudentsHandler) Handle(ctx context.Context, _ GetTopStudentsQuery) (_ *TopStudentsDTO, err error) {
	ctx, span := h.inst.Tracer.StartQuerySpan(ctx, "top_students")
	defer func() { endSpan(span, err) }()

	snapshot, err := h.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	result := leaderboard.Select(snapshot)
	leaderboard.SortByID(result.Winners)

	h.inst.Metrics.RecordTopQuery(len(result.Winners))
	h.inst.Log(ctx).Debug("top students selected",
		logger.WinnerCount(len(result.Winners)),
		"considered", result.Considered,
		"max_average", result.MaxAverage,
	)

	return &TopStudentsDTO{
		Students:   ToStudentDTOs(result.Winners),
		MaxAverage: result.MaxAverage,
		MaxCount:   result.MaxCount,
		Considered: result.Considered,
	}, nil
}
