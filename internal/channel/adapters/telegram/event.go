package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/imgbot/internal/channel"
)

// toEvent reduces an update to a channel.Event. Updates without a message are skipped.
func toEvent(update tgbotapi.Update) (channel.Event, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return channel.Event{}, false
	}
	event := channel.Event{
		ChatID:     msg.Chat.ID,
		ChatType:   strings.TrimSpace(msg.Chat.Type),
		MessageID:  msg.MessageID,
		Text:       strings.TrimSpace(msg.Text),
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.From != nil {
		event.UserID = msg.From.ID
		event.Username = strings.TrimSpace(msg.From.UserName)
	}

	switch {
	case msg.IsCommand():
		event.Kind = channel.EventCommand
		event.Command = msg.Command()
		event.Args = strings.TrimSpace(msg.CommandArguments())
	case len(msg.Photo) > 0:
		photo := pickTelegramPhoto(msg.Photo)
		event.Kind = channel.EventPhoto
		event.FileID = photo.FileID
		event.FileSize = int64(photo.FileSize)
	case msg.Document != nil:
		event.Kind = channel.EventDocument
		event.FileID = msg.Document.FileID
		event.FileName = strings.TrimSpace(msg.Document.FileName)
		event.MimeHint = strings.TrimSpace(msg.Document.MimeType)
		event.FileSize = int64(msg.Document.FileSize)
	case event.Text != "":
		event.Kind = channel.EventText
	default:
		event.Kind = channel.EventOther
	}
	return event, true
}

// pickTelegramPhoto returns the largest rendition Telegram generated.
func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
