// Package router maps inbound channel events to the upload pipeline and bot commands.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/memohai/imgbot/internal/channel"
	"github.com/memohai/imgbot/internal/logger"
	"github.com/memohai/imgbot/internal/pipeline"
)

// MessageUnknown is the reply to private messages that carry neither a photo nor a document.
const MessageUnknown = "Please send me photo or image file only!"

// FileHandler is the upload pipeline entry point.
type FileHandler interface {
	HandlePhoto(ctx context.Context, event channel.Event) (pipeline.Outcome, error)
	HandleDocument(ctx context.Context, event channel.Event) (pipeline.Outcome, error)
}

// Options configures routing policy.
type Options struct {
	// AdminUserID is the only user allowed to run admin commands. Zero disables them.
	AdminUserID int64
	// RatePerMinute caps file events per chat. Zero disables the limit.
	RatePerMinute int
}

// Router dispatches events. It is safe for concurrent use once commands are registered.
type Router struct {
	files   FileHandler
	replier channel.Replier
	opts    Options
	logger  *slog.Logger

	mu       sync.RWMutex
	commands map[string]channel.Handler

	photo    channel.Handler
	document channel.Handler
	unknown  channel.Handler
	handler  channel.Handler
}

// New builds a router. Typing announcements go through replier before file handling
// and help-style replies.
func New(log *slog.Logger, files FileHandler, replier channel.Replier, opts Options) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		files:    files,
		replier:  replier,
		opts:     opts,
		logger:   log.With(slog.String("component", "router")),
		commands: map[string]channel.Handler{},
	}
	typing := WithTyping(r.logger, replier)
	limit := RateLimit(r.logger, opts.RatePerMinute)
	r.photo = channel.Chain(r.handlePhoto, limit, typing)
	r.document = channel.Chain(r.handleDocument, limit, typing)
	r.unknown = channel.Chain(r.handleUnknown, typing)
	r.handler = channel.Chain(r.dispatch, Recover(r.logger), LogErrors(r.logger))
	return r
}

// Command registers a command handler under name (without the leading slash).
// Admin-only commands from anyone else are treated as unknown messages.
func (r *Router) Command(name string, h channel.Handler, adminOnly bool, mws ...channel.Middleware) {
	name = normalizeCommand(name)
	if name == "" || h == nil {
		return
	}
	h = channel.Chain(h, mws...)
	if adminOnly {
		h = AdminOnly(r.opts.AdminUserID, r.unknown)(h)
	}
	r.mu.Lock()
	r.commands[name] = h
	r.mu.Unlock()
}

// Commands lists registered command names.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// Handle routes one event. It blocks until the event reaches a terminal state.
// Handlers find an event-scoped logger with logger.FromContext.
func (r *Router) Handle(ctx context.Context, event channel.Event) error {
	ctx = logger.WithContext(ctx, r.logger.With(
		slog.String("kind", string(event.Kind)),
		slog.Int64("chat_id", event.ChatID),
		slog.Int64("user_id", event.UserID),
	))
	return r.handler(ctx, event)
}

// Handler returns Handle as a channel.Handler.
func (r *Router) Handler() channel.Handler {
	return r.Handle
}

func (r *Router) dispatch(ctx context.Context, event channel.Event) error {
	switch event.Kind {
	case channel.EventPhoto:
		return r.photo(ctx, event)
	case channel.EventDocument:
		// Acceptance is decided from content after staging, not from the declared type.
		if event.HasFile() {
			return r.document(ctx, event)
		}
	case channel.EventCommand:
		r.mu.RLock()
		h, ok := r.commands[normalizeCommand(event.Command)]
		r.mu.RUnlock()
		if ok {
			return h(ctx, event)
		}
	}
	if !event.IsPrivate() {
		return nil
	}
	return r.unknown(ctx, event)
}

func (r *Router) handlePhoto(ctx context.Context, event channel.Event) error {
	outcome, err := r.files.HandlePhoto(ctx, event)
	return fileResult(outcome, err)
}

func (r *Router) handleDocument(ctx context.Context, event channel.Event) error {
	outcome, err := r.files.HandleDocument(ctx, event)
	return fileResult(outcome, err)
}

func (r *Router) handleUnknown(ctx context.Context, event channel.Event) error {
	return r.replier.SendText(ctx, event.ChatID, MessageUnknown)
}

// fileResult drops errors the user already caused and was told about.
func fileResult(outcome pipeline.Outcome, err error) error {
	switch outcome {
	case pipeline.OutcomeRejected, pipeline.OutcomeTooLarge:
		return nil
	default:
		return err
	}
}

func normalizeCommand(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
