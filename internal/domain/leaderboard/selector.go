// Package leaderboard выбирает лучших студентов по снимку хранилища.
// Выбор - чистая функция: без состояния, без обращения к хранилищу.
package leaderboard

import (
	"sort"

	"github.com/stepup/gradebook/internal/domain/student"
)

// Result - итог выбора вместе с критериями, по которым он сделан.
type Result struct {
	// Winners - все студенты, разделившие первое место.
	Winners []*student.Student

	// MaxAverage - наибольшее среднее среди студентов с оценками.
	MaxAverage float64

	// MaxCount - наибольшее число оценок среди студентов с MaxAverage.
	MaxCount int

	// Considered - сколько студентов с оценками участвовало в выборе.
	Considered int
}

// IsEmpty возвращает true, если победителей нет.
func (r Result) IsEmpty() bool {
	return len(r.Winners) == 0
}

// Select выбирает студентов с наибольшим средним баллом.
// При равенстве среднего побеждают те, у кого больше оценок;
// оставшаяся ничья возвращается целиком. Студенты без оценок
// не участвуют. Средние сравниваются точным равенством float64.
func Select(snapshot []*student.Student) Result {
	var (
		candidates = make([]*student.Student, 0, len(snapshot))
		maxAverage float64
	)

	for _, s := range snapshot {
		if s == nil || !s.HasGrades() {
			continue
		}
		avg := s.Average()
		if len(candidates) == 0 || avg > maxAverage {
			maxAverage = avg
		}
		candidates = append(candidates, s)
	}

	if len(candidates) == 0 {
		return Result{Winners: []*student.Student{}}
	}

	best := make([]*student.Student, 0, len(candidates))
	maxCount := 0
	for _, s := range candidates {
		if s.Average() != maxAverage {
			continue
		}
		best = append(best, s)
		if s.GradeCount() > maxCount {
			maxCount = s.GradeCount()
		}
	}

	winners := make([]*student.Student, 0, len(best))
	for _, s := range best {
		if s.GradeCount() == maxCount {
			winners = append(winners, s)
		}
	}

	return Result{
		Winners:    winners,
		MaxAverage: maxAverage,
		MaxCount:   maxCount,
		Considered: len(candidates),
	}
}

// SelectTop возвращает только победителей. Результат - новый срез,
// пустой (не nil), если победителей нет.
func SelectTop(snapshot []*student.Student) []*student.Student {
	return Select(snapshot).Winners
}

// SortByID упорядочивает студентов по возрастанию ID на месте.
func SortByID(students []*student.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].ID() < students[j].ID()
	})
}
