package status

import (
	"log/slog"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
)

// Log writes status events to a logger. FPS reports go to debug, everything
// else is logged at the level matching its severity.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a status log writer.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Attach subscribes to status events and returns the unsubscribe function.
func (l *Log) Attach(bus *events.Bus) func() {
	return bus.Subscribe(l.Handle)
}

// Handle logs one event.
func (l *Log) Handle(e events.ChannelStatusEvent) {
	args := []any{"channel", e.Channel, "status", e.Status, "state", e.State}
	switch e.Severity {
	case "error":
		l.logger.Error("Channel status", args...)
	case "warning":
		l.logger.Warn("Channel status", args...)
	default:
		l.logger.Debug("Channel status", append(args, "fps", e.FPS)...)
	}
}
