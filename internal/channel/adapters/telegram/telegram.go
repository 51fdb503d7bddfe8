// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/imgbot/internal/channel"
)

// Option customizes an Adapter.
type Option func(*options)

type options struct {
	apiEndpoint    string
	fileEndpoint   string
	httpClient     *http.Client
	updatesTimeout int
}

// WithAPIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			o.apiEndpoint = endpoint
		}
	}
}

// WithFileEndpoint overrides tgbotapi.FileEndpoint used for downloads.
func WithFileEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			o.fileEndpoint = endpoint
		}
	}
}

// WithHTTPClient sets the client shared by API calls and downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithUpdatesTimeout sets the long-polling timeout in seconds.
func WithUpdatesTimeout(seconds int) Option {
	return func(o *options) {
		if seconds > 0 {
			o.updatesTimeout = seconds
		}
	}
}

// Adapter receives updates by polling or webhook and implements channel.Replier,
// channel.Editor and channel.FileFetcher.
type Adapter struct {
	bot          *tgbotapi.BotAPI
	http         *http.Client
	fileEndpoint string
	timeout      int
	logger       *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctx     context.Context
	handler channel.Handler
	wg      sync.WaitGroup
}

var (
	_ channel.Replier     = (*Adapter)(nil)
	_ channel.Editor      = (*Adapter)(nil)
	_ channel.FileFetcher = (*Adapter)(nil)
)

// ErrNotStarted is returned for webhook deliveries before StartWebhook.
var ErrNotStarted = errors.New("telegram adapter not started")

// tgbotapi keeps a single package-level logger.
var setLoggerOnce sync.Once

// New authenticates against the Bot API (getMe) and returns an idle adapter.
func New(log *slog.Logger, token string, opts ...Option) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	o := options{
		apiEndpoint:    tgbotapi.APIEndpoint,
		fileEndpoint:   tgbotapi.FileEndpoint,
		httpClient:     &http.Client{},
		updatesTimeout: 30,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.With(slog.String("adapter", "telegram"))
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})
	})

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram access token is required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, o.apiEndpoint, o.httpClient)
	if err != nil {
		logger.Error("create bot failed", slog.Any("error", err))
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("authorized", slog.String("username", bot.Self.UserName))
	return &Adapter{
		bot:          bot,
		http:         o.httpClient,
		fileEndpoint: o.fileEndpoint,
		timeout:      o.updatesTimeout,
		logger:       logger,
	}, nil
}

// Username is the bot's own @handle without the @.
func (a *Adapter) Username() string {
	return a.bot.Self.UserName
}

// StartPolling removes any webhook and long-polls getUpdates until Stop.
// An adapter polls at most once in its lifetime.
func (a *Adapter) StartPolling(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	connCtx, err := a.bind(ctx, handler)
	if err != nil {
		return err
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.timeout
	updates := a.bot.GetUpdatesChan(updateConfig)
	a.logger.Info("polling started", slog.Int("timeout", a.timeout))

	go func() {
		for {
			select {
			case <-connCtx.Done():
				a.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				_ = a.dispatch(update)
			}
		}
	}()
	return nil
}

// StartWebhook registers url with Telegram. When certFile is set the
// self-signed certificate is uploaded along with it.
func (a *Adapter) StartWebhook(ctx context.Context, handler channel.Handler, url, certFile string) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	var (
		wh  tgbotapi.WebhookConfig
		err error
	)
	if strings.TrimSpace(certFile) != "" {
		wh, err = tgbotapi.NewWebhookWithCert(url, tgbotapi.FilePath(certFile))
	} else {
		wh, err = tgbotapi.NewWebhook(url)
	}
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if _, err := a.bind(ctx, handler); err != nil {
		return err
	}
	a.logger.Info("webhook registered", slog.String("url", wh.URL.Redacted()))
	return nil
}

// ReceiveWebhook decodes one webhook delivery and handles it asynchronously.
func (a *Adapter) ReceiveWebhook(r *http.Request) error {
	a.mu.Lock()
	started := a.handler != nil
	a.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	update, err := a.bot.HandleUpdate(r)
	if err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	return a.dispatch(*update)
}

// Stop ends polling and waits for in-flight handlers until ctx is done.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel, a.handler = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	// The polling goroutine stops the update receiver once it sees the cancel.
	cancel()
	a.logger.Info("stop")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) bind(ctx context.Context, handler channel.Handler) (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil, errors.New("telegram adapter already started")
	}
	connCtx, cancel := context.WithCancel(ctx)
	a.ctx, a.cancel, a.handler = connCtx, cancel, handler
	return connCtx, nil
}

// dispatch hands update to the bound handler. The in-flight count is taken under
// the lock so Stop never waits on a group that can still grow.
func (a *Adapter) dispatch(update tgbotapi.Update) error {
	event, ok := toEvent(update)
	if !ok {
		return nil
	}
	a.mu.Lock()
	ctx, handler := a.ctx, a.handler
	if handler == nil {
		a.mu.Unlock()
		return ErrNotStarted
	}
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Info(
		"inbound received",
		slog.String("kind", string(event.Kind)),
		slog.String("chat_type", event.ChatType),
		slog.Int64("chat_id", event.ChatID),
		slog.Int64("user_id", event.UserID),
		slog.String("username", event.Username),
	)
	go func() {
		defer a.wg.Done()
		if err := handler(ctx, event); err != nil {
			a.logger.Debug("handle inbound failed", slog.Int64("chat_id", event.ChatID), slog.Any("error", err))
		}
	}()
	return nil
}
