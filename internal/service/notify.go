package service

import (
	"context"

	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"go.uber.org/zap"
)

// notify отправляет уведомление; ошибка доставки не влияет на результат операции
func notify(ctx context.Context, n notifier.Notifier, logger *zap.Logger, event notifier.Event, recipients []int64, payload notifier.Payload) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event, recipients, payload); err != nil {
		logger.Warn("Notification failed",
			zap.String("event", string(event)),
			zap.Int64s("recipients", recipients),
			zap.Error(err))
	}
}
