// Package student содержит доменную модель студента и его оценок.
//
// Пакет определяет:
//
//   - Value Objects: Grade, ID
//   - Агрегат Student: имя и упорядоченная последовательность оценок
//   - GradeOracle: подключаемую проверку оценок и расчёт рейтинга
//   - Интерфейс хранилища Repository (реализации в infrastructure/persistence)
//   - Доменные события: StudentSaved, StudentDeleted, GradeAdded, StudentsCleared
//
// # Инварианты
//
// Каждая сохранённая оценка лежит в диапазоне [MinGrade, MaxGrade].
// Отклонённая оценка не меняет состояние агрегата: ни частичной записи,
// ни изменения количества оценок.
//
// # Пример использования
//
//	s, err := student.New(0, "Alice", []student.Grade{5, 4})
//	if err != nil {
//	    return err
//	}
//
//	if err := s.AddGrade(5); err != nil {
//	    // errors.Is(err, shared.ErrInvalidGrade)
//	}
//
//	avg := s.Average() // 4.666...
//
// Агрегат не зависит от внешних библиотек, только от стандартной библиотеки Go
// и пакета shared.
package student
