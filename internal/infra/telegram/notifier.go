package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/scm-ledger/internal/domain/notify"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier шлёт уведомления в админ-чат и получателям из конфига.
type Notifier struct {
	api        sender
	adminChat  int64
	recipients []int64
	log        *slog.Logger
}

// sendTimeout ограничивает каждый запрос к Bot API.
const sendTimeout = 10 * time.Second

func New(token string, adminChat int64, recipients []int64, log *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram notifier authorized", "bot", api.Self.UserName)
	return NewNotifier(api, adminChat, recipients, log), nil
}

func NewNotifier(api sender, adminChat int64, recipients []int64, log *slog.Logger) *Notifier {
	return &Notifier{api: api, adminChat: adminChat, recipients: recipients, log: log}
}

func (n *Notifier) Name() string { return "telegram" }

// Deliver останавливается, когда истёк ctx: оставшимся чатам уходит ошибка.
func (n *Notifier) Deliver(ctx context.Context, msg notify.Notification) error {
	text := msg.Text()
	var errs []error

	// не шлём одному и тому же chat_id дважды
	sent := map[int64]struct{}{}
	sendOnce := func(chatID int64) {
		if chatID == 0 {
			return
		}
		if _, ok := sent[chatID]; ok {
			return
		}
		sent[chatID] = struct{}{}
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			return
		}
		if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.log.Error("send failed", "chat_id", chatID, "err", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}

	// 1) админ-чат (может быть личка или группа)
	sendOnce(n.adminChat)

	// 2) остальные получатели
	for _, id := range n.recipients {
		sendOnce(id)
	}
	return errors.Join(errs...)
}
