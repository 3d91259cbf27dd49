package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives one LED through the Linux LED class interface.
type sysfs struct {
	dir string // e.g. /sys/class/leds/ACT
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name)}
}

func (s *sysfs) Set(led string, enabled bool, pattern string) error {
	if led != StatusLED {
		return fmt.Errorf("LED %q not supported", led)
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("LED not found at %s: %w", s.dir, err)
	}

	trigger := ""
	switch {
	case !enabled:
		trigger = "none"
	case pattern == PatternSolid:
		trigger = "default-on"
	case pattern == PatternHeartbeat:
		trigger = "heartbeat"
	default:
		trigger = pattern // raw trigger name
	}
	if trigger != "" {
		if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
			return fmt.Errorf("set LED trigger: %w", err)
		}
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	return []string{StatusLED}
}
