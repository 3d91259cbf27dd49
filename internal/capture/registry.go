package capture

import (
	"fmt"
	"log/slog"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	FFmpeg  FFmpegConfig
	Screen  ScreenConfig
}

// Names lists the registered backends.
func Names() []string {
	return []string{"ffmpeg", "screen"}
}

// New creates the backend named in cfg.
func New(cfg Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "ffmpeg", "":
		return NewFFmpegBackend(cfg.FFmpeg, logger), nil
	case "screen":
		return NewScreenBackend(cfg.Screen, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
