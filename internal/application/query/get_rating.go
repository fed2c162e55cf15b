package query

import (
	"context"

	"github.com/stepup/gradebook/internal/application"
	"github.com/stepup/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RATING QUERY
// Рейтинг студента по сумме его оценок, правило задаёт оракул.
// ══════════════════════════════════════════════════════════════════════════════

// GetRatingQuery - запрос рейтинга студента.
type GetRatingQuery struct {
	ID int64
}

// RatingDTO - рейтинг студента.
type RatingDTO struct {
	ID     int64 `json:"id"`
	Rating int   `json:"rating"`
}

// GetRatingHandler обрабатывает GetRatingQuery.
type GetRatingHandler struct {
	repo   student.Repository
	oracle student.GradeOracle
	inst   application.Instrumentation
}

// NewGetRatingHandler создаёт обработчик.
func NewGetRatingHandler(repo student.Repository, oracle student.GradeOracle, inst application.Instrumentation) *GetRatingHandler {
	return &GetRatingHandler{repo: repo, oracle: oracle, inst: inst.WithDefaults()}
}

// Handle возвращает рейтинг. Ошибка оракула - ошибка внешнего сервиса.
func (h *GetRatingHandler) Handle(ctx context.Context, q GetRatingQuery) (_ *RatingDTO, err error) {
	ctx, span := h.inst.Tracer.StartQuerySpan(ctx, "rating")
	defer func() { endSpan(span, err) }()

	id := student.ID(q.ID)
	if !id.IsAssigned() {
		return nil, student.ErrInvalidID
	}

	s, err := h.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rating, err := s.Rating(ctx, h.oracle)
	if err != nil {
		return nil, err
	}

	return &RatingDTO{ID: q.ID, Rating: rating}, nil
}
