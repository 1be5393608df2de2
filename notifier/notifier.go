package notifier

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Broadcaster fans a message out to every configured recipient.
type Broadcaster interface {
	Broadcast(text string)
}

// sender is the slice of tgbotapi.BotAPI we use; lets tests fake delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers messages to a fixed whitelist of chats.
type Telegram struct {
	bot     sender
	chatIDs []int64
	log     *zap.Logger
}

func NewTelegram(bot *tgbotapi.BotAPI, chatIDs []int64, log *zap.Logger) *Telegram {
	return newTelegram(bot, chatIDs, log)
}

func newTelegram(bot sender, chatIDs []int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatIDs: chatIDs, log: log}
}

// Broadcast sends text to every whitelisted chat. A failed delivery is
// logged and does not block the remaining recipients.
func (t *Telegram) Broadcast(text string) {
	for _, chatID := range t.chatIDs {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.log.Warn("notification delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}
