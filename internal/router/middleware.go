package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/memohai/imgbot/internal/channel"
)

// WithTyping announces typing in the event's chat before delegating.
// A failed announcement is logged and does not block the handler.
func WithTyping(log *slog.Logger, replier channel.Replier) channel.Middleware {
	if replier == nil {
		return nil
	}
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, event channel.Event) error {
			if err := replier.SendTyping(ctx, event.ChatID); err != nil && log != nil {
				log.Debug("send typing failed", slog.Int64("chat_id", event.ChatID), slog.Any("error", err))
			}
			return next(ctx, event)
		}
	}
}

// AdminOnly lets events from adminID through and hands everything else to denied.
// A zero adminID denies everyone.
func AdminOnly(adminID int64, denied channel.Handler) channel.Middleware {
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, event channel.Event) error {
			if adminID != 0 && event.UserID == adminID {
				return next(ctx, event)
			}
			if denied == nil {
				return nil
			}
			return denied(ctx, event)
		}
	}
}

// Recover turns a handler panic into an error so one bad event cannot stop the bot.
func Recover(log *slog.Logger) channel.Middleware {
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, event channel.Event) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Error("handler panic",
							slog.Int64("chat_id", event.ChatID),
							slog.Any("panic", rec),
							slog.String("stack", string(debug.Stack())),
						)
					}
					err = fmt.Errorf("handler panic: %v", rec)
				}
			}()
			return next(ctx, event)
		}
	}
}

// LogErrors logs handler errors and reports them upward unchanged.
func LogErrors(log *slog.Logger) channel.Middleware {
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, event channel.Event) error {
			err := next(ctx, event)
			if err != nil && log != nil {
				log.Warn("handle event failed",
					slog.String("kind", string(event.Kind)),
					slog.Int64("chat_id", event.ChatID),
					slog.Any("error", err),
				)
			}
			return err
		}
	}
}

// RateLimit drops events from chats exceeding perMinute events. perMinute <= 0 disables it.
func RateLimit(log *slog.Logger, perMinute int) channel.Middleware {
	if perMinute <= 0 {
		return nil
	}
	limiter := newChatLimiter(perMinute)
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, event channel.Event) error {
			if !limiter.allow(event.ChatID, time.Now()) {
				if log != nil {
					log.Info("rate limited", slog.Int64("chat_id", event.ChatID))
				}
				return nil
			}
			return next(ctx, event)
		}
	}
}

type chatLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*chatBucket
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleBucketTTL bounds how long an unused bucket is kept.
const idleBucketTTL = 10 * time.Minute

func newChatLimiter(perMinute int) *chatLimiter {
	return &chatLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: map[int64]*chatBucket{},
	}
}

func (l *chatLimiter) allow(chatID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.limiters {
		if id != chatID && now.Sub(b.lastSeen) > idleBucketTTL {
			delete(l.limiters, id)
		}
	}
	b, ok := l.limiters[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[chatID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
