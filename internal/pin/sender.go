package pin

import (
	"context"
	"log/slog"
)

// LogSender is a stub Sender that writes codes to the structured logger.
// Real SMS or voice delivery lives behind the same interface.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a logging delivery stub.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send writes the code to the logger.
func (s *LogSender) Send(_ context.Context, rawPhone, code string) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("pin delivery", "phone", rawPhone, "code", code)
	return nil
}
