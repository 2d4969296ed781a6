package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Log пишет уведомления в лог. Используется, когда бот не настроен.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, event Event, recipients []int64, payload Payload) error {
	l.logger.Info("Notification",
		zap.String("event", string(event)),
		zap.Int64s("recipients", recipients),
		zap.String("text", Text(event, payload)),
	)
	return nil
}
