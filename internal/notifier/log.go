package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log when no chat is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Info("admin notification", zap.String("message", message))
	return nil
}
