package student

import (
	"context"
)

// GradeOracle - подключаемый источник правил для оценок.
// Локальная реализация - RangeOracle, удалённая живёт в
// infrastructure/external/gradeservice.
type GradeOracle interface {
	// IsValid сообщает, принимается ли оценка.
	IsValid(ctx context.Context, g Grade) (bool, error)

	// RatingFor возвращает рейтинг для суммы оценок.
	RatingFor(ctx context.Context, sum int) (int, error)
}

// Значения правила рейтинга по умолчанию.
const (
	DefaultRatingThreshold = 50
	DefaultHighSumRating   = 9
	DefaultLowSumRating    = 10
)

// RangeOracle проверяет оценки по диапазону в памяти процесса.
// Границы не могут быть шире [MinGrade, MaxGrade]: агрегат всё равно
// отклонит оценку вне этого диапазона.
type RangeOracle struct {
	Min Grade
	Max Grade

	// Сумма строго больше RatingThreshold даёт HighSumRating,
	// иначе LowSumRating.
	RatingThreshold int
	HighSumRating   int
	LowSumRating    int
}

// NewRangeOracle возвращает оракул с диапазоном [MinGrade, MaxGrade]
// и правилом рейтинга по умолчанию.
func NewRangeOracle() *RangeOracle {
	return &RangeOracle{
		Min:             MinGrade,
		Max:             MaxGrade,
		RatingThreshold: DefaultRatingThreshold,
		HighSumRating:   DefaultHighSumRating,
		LowSumRating:    DefaultLowSumRating,
	}
}

// IsValid реализует GradeOracle.
func (o *RangeOracle) IsValid(_ context.Context, g Grade) (bool, error) {
	return g >= o.Min && g <= o.Max && g.IsValid(), nil
}

// RatingFor реализует GradeOracle.
func (o *RangeOracle) RatingFor(_ context.Context, sum int) (int, error) {
	if sum > o.RatingThreshold {
		return o.HighSumRating, nil
	}
	return o.LowSumRating, nil
}
