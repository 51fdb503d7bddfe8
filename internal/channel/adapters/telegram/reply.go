package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/imgbot/internal/channel"
)

func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := a.SendTextRef(ctx, chatID, text)
	return err
}

func (a *Adapter) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

func (a *Adapter) SendTextRef(ctx context.Context, chatID int64, text string) (channel.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return channel.MessageRef{}, err
	}
	sent, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return channel.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return channel.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref channel.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Send(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}
