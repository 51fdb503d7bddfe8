package channel

import (
	"context"
	"io"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, event Event) error

// Middleware wraps a Handler with extra behavior.
type Middleware func(next Handler) Handler

// Chain applies middlewares so the first one listed runs first.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Replier sends messages back to a conversation. Delivery is best effort.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// MessageRef identifies a message previously sent by the bot.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Editor is implemented by repliers that can post a message and rewrite it later.
type Editor interface {
	SendTextRef(ctx context.Context, chatID int64, text string) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) error
}

// FileFetcher downloads the bytes behind a transport file reference.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}
