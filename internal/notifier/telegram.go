package notifier

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_booking/internal/metrics"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageSender часть *bot.Bot, которая нужна для отправки
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram отправляет уведомления в личные чаты пользователей
type Telegram struct {
	sender MessageSender
	users  repository.UserStore
	logger *zap.Logger
}

// NewTelegram создаёт Telegram-уведомитель
func NewTelegram(sender MessageSender, users repository.UserStore, logger *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		users:  users,
		logger: logger,
	}
}

// Notify отправляет сообщение каждому получателю параллельно
func (t *Telegram) Notify(ctx context.Context, event Event, recipients []int64, payload Payload) error {
	users, err := t.users.GetByIDs(ctx, recipients)
	if err != nil {
		return fmt.Errorf("get recipients: %w", err)
	}

	text := Text(event, payload)

	g, gctx := errgroup.WithContext(ctx)
	for _, user := range users {
		if user.TelegramID == 0 {
			t.logger.Warn("Recipient has no telegram chat",
				zap.Int64("user_id", user.ID),
				zap.String("event", string(event)))
			continue
		}

		chatID := user.TelegramID
		userID := user.ID
		g.Go(func() error {
			_, err := t.sender.SendMessage(gctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   text,
			})
			if err != nil {
				metrics.Notifications.WithLabelValues(string(event), "failed").Inc()
				return fmt.Errorf("send to user %d: %w", userID, err)
			}
			metrics.Notifications.WithLabelValues(string(event), "sent").Inc()
			return nil
		})
	}

	return g.Wait()
}
