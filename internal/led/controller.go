// Package led mirrors the aggregate capture state on a status LED.
package led

// Patterns understood by every Controller.
const (
	PatternSolid     = "solid"
	PatternHeartbeat = "heartbeat"
)

// StatusLED is the logical LED driven by the Manager.
const StatusLED = "status"

// Controller abstracts LED hardware.
type Controller interface {
	// Set switches a logical LED on or off. An empty pattern leaves the
	// trigger unchanged.
	Set(led string, enabled bool, pattern string) error

	// Available returns the logical LEDs this controller can drive.
	Available() []string
}
