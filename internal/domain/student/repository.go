package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища студентов.
// Все методы возвращают копии: изменение результата не влияет на хранилище.
type Repository interface {
	// Save сохраняет студента (upsert).
	// Если ID не назначен, хранилище выдаёт следующий неиспользованный.
	// Если ID назначен, запись создаётся с этим ID или заменяется целиком.
	// Возвращает сохранённую копию с назначенным ID.
	Save(ctx context.Context, s *Student) (*Student, error)

	// Update атомарно читает студента, применяет к копии fn и сохраняет
	// результат. Все изменения хранилища упорядочены относительно Update:
	// удалённая запись не может вернуться через Update.
	// Возвращает ErrStudentNotFound, если студента нет; ошибку fn - как есть,
	// ничего не меняя.
	Update(ctx context.Context, id ID, fn func(*Student) error) (*Student, error)

	// FindByID возвращает студента по ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	FindByID(ctx context.Context, id ID) (*Student, error)

	// FindAll возвращает согласованный снимок всех студентов, упорядоченный по ID.
	FindAll(ctx context.Context) ([]*Student, error)

	// Delete удаляет студента.
	// Возвращает ErrStudentNotFound, если студент не найден.
	Delete(ctx context.Context, id ID) error

	// DeleteAll удаляет всех студентов и возвращает их количество.
	DeleteAll(ctx context.Context) (int, error)

	// Count возвращает общее количество студентов.
	Count(ctx context.Context) (int, error)
}

// HealthChecker - опциональный интерфейс хранилища для /ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
