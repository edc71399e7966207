package notifications

import "context"

// Alert levels understood by every Notifier
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(ctx context.Context, level, message string) error
}

// NoopNotifier drops every alert. It is used when no channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) SendAlert(ctx context.Context, level, message string) error {
	return nil
}
