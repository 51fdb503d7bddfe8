package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// WebhookReceiver accepts one raw update delivery from the chat platform.
type WebhookReceiver interface {
	ReceiveWebhook(r *http.Request) error
}

// WebhookHandler mounts the platform webhook on a POST route.
type WebhookHandler struct {
	path     string
	receiver WebhookReceiver
	logger   *slog.Logger
}

// NewWebhookHandler serves receiver at path ("/" when empty).
func NewWebhookHandler(log *slog.Logger, path string, receiver WebhookReceiver) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	return &WebhookHandler{
		path:     path,
		receiver: receiver,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

// Path returns the mounted route.
func (h *WebhookHandler) Path() string {
	return h.path
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST(h.path, h.Receive)
}

// Receive acknowledges the delivery once decoded; handling continues in the background.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if err := h.receiver.ReceiveWebhook(c.Request()); err != nil {
		h.logger.Warn("webhook rejected", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid update"})
	}
	return c.NoContent(http.StatusOK)
}
