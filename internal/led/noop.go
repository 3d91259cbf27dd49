package led

import "github.com/FynnleyNeko/DroolonStreamer/internal/logging"

// noop logs LED requests on systems without a usable LED.
type noop struct {
	logger logging.Logger
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(led string, enabled bool, pattern string) error {
	n.logger.Debug("LED control not available (no-op)", "led", led, "enabled", enabled, "pattern", pattern)
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}
