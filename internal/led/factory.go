package led

import (
	"os"
	"strings"

	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps a device tree model fragment to the sysfs LED used as status LED.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a controller for the status LED. A non-empty sysfsName selects
// that LED under /sys/class/leds directly; otherwise the board is detected.
// Falls back to a no-op controller.
func New(sysfsName string, logger logging.Logger) Controller {
	if sysfsName != "" {
		logger.Info("Using configured status LED", "led", sysfsName)
		return newSysfs(sysfsLEDPath, sysfsName)
	}

	model := detectBoard()
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			logger.Info("Detected board, using sysfs LED controller", "board_model", model, "led", b.led)
			return newSysfs(sysfsLEDPath, b.led)
		}
	}

	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
