package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/scm-ledger/internal/domain/notify"
)

type fakeAPI struct {
	sent   []tgbotapi.MessageConfig
	failOn int64
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, m)
	if m.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("Forbidden: bot was blocked by the user")
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestNotifier_SendsOncePerChat(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, 100, []int64{200, 100, 0, 200, 300}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.Deliver(context.Background(), notify.Notification{Title: "⚠️ Низкий остаток", Message: "Кабель: 4.00"})
	require.NoError(t, err)

	var chats []int64
	for _, m := range api.sent {
		chats = append(chats, m.ChatID)
		assert.Equal(t, "⚠️ Низкий остаток\nКабель: 4.00", m.Text)
	}
	assert.Equal(t, []int64{100, 200, 300}, chats)
}

func TestNotifier_ReportsFailedChats(t *testing.T) {
	api := &fakeAPI{failOn: 200}
	n := NewNotifier(api, 100, []int64{200, 300}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.Deliver(context.Background(), notify.Notification{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 200")
	assert.Len(t, api.sent, 3, "a failed chat does not stop the rest")
}

func TestNotifier_StopsWhenContextExpires(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, 100, []int64{200}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Deliver(ctx, notify.Notification{Title: "t"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}
