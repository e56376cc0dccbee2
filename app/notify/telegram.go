package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// Telegram posts operational notifications to a single configured chat.
type Telegram struct {
	Bot    *bot.Bot
	ChatId int64
}

func NewTelegramNotifier(apiKey string, chatId int64) (*Telegram, error) {
	b, err := bot.New(apiKey)
	if err != nil {
		slog.Error("error occured when spinning up the bot", "err", err)
		return nil, err
	}
	return &Telegram{Bot: b, ChatId: chatId}, nil
}

func (t *Telegram) SyncCompleted(ctx context.Context, email string, ridesSynced int) {
	text := fmt.Sprintf("sync completed for %s: %d rides", email, ridesSynced)
	_, err := t.Bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.ChatId,
		Text:   text,
	})
	if err != nil {
		slog.Error("error while sending sync notification", "err", err)
	}
}
