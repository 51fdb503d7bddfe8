package telegram

import (
	"fmt"
	"log/slog"
)

// slogBotLogger routes tgbotapi's internal logging (mostly getUpdates retries) through slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (s *slogBotLogger) Println(v ...any) {
	s.log.Warn(fmt.Sprint(v...), slog.String("source", "tgbotapi"))
}

func (s *slogBotLogger) Printf(format string, v ...any) {
	s.log.Warn(fmt.Sprintf(format, v...), slog.String("source", "tgbotapi"))
}
