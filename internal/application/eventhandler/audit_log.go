// Package eventhandler содержит обработчики доменных событий.
// Обработчики подписываются на шину и выполняют побочные эффекты:
// журнал изменений, пересылку событий другим экземплярам.
package eventhandler

import (
	"context"
	"log/slog"
	"sort"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLER
// Пишет каждое доменное событие в структурированный лог.
// ══════════════════════════════════════════════════════════════════════════════

// AuditLogHandler журналирует изменения хранилища студентов.
type AuditLogHandler struct {
	logger *slog.Logger
	level  slog.Level
}

// NewAuditLogHandler создаёт обработчик. Уровень по умолчанию - Info.
func NewAuditLogHandler(log *slog.Logger) *AuditLogHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuditLogHandler{
		logger: log.With(logger.Component("audit")),
		level:  slog.LevelInfo,
	}
}

// WithLevel меняет уровень записей.
func (h *AuditLogHandler) WithLevel(level slog.Level) *AuditLogHandler {
	h.level = level
	return h
}

// Handle реализует shared.EventHandler. Никогда не возвращает ошибку.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	attrs := []any{
		slog.String("event_type", string(event.EventType())),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
	}

	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]any, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slog.Any(k, payload[k]))
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Group("payload", fields...))
	}

	h.logger.Log(context.Background(), h.level, "domain event", attrs...)
	return nil
}

// Subscribe подписывает обработчик на все события шины.
func (h *AuditLogHandler) Subscribe(sub shared.EventSubscriber) error {
	return sub.SubscribeAll(h.Handle)
}
