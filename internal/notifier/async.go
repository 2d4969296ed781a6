package notifier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Async отправляет уведомления в фоне. Ошибки доставки только логируются:
// урок уже записан, и сбой уведомления не должен его отменять.
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewAsync оборачивает уведомитель
func NewAsync(next Notifier, timeout time.Duration, logger *zap.Logger) *Async {
	return &Async{
		next:    next,
		timeout: timeout,
		logger:  logger,
	}
}

func (a *Async) Notify(ctx context.Context, event Event, recipients []int64, payload Payload) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// запрос мог уже завершиться, отменять отправку из-за этого нельзя
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, event, recipients, payload); err != nil {
			a.logger.Error("Failed to deliver notification",
				zap.String("event", string(event)),
				zap.Int64s("recipients", recipients),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait дожидается отправки всех уведомлений (при остановке сервиса)
func (a *Async) Wait() {
	a.wg.Wait()
}
