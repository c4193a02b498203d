package app

import "go.uber.org/zap"

// Notifier surfaces transient user-facing notices, e.g. "your progress
// could not be saved". It is injected rather than read from ambient state
// so the engine stays testable.
type Notifier interface {
	Notify(message string)
}

// LogNotifier records notices in the service log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(message string) {
	n.log.Warn("user notice", zap.String("message", message))
}

// NopNotifier discards notices.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}
