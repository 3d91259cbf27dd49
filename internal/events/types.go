package events

// Event type constants for kelindar/event.
const (
	TypeChannelStatus uint32 = iota + 1
	TypeChannelMetrics
	TypeStreamClient
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ChannelStatusEvent is emitted on every channel state transition and every
// closed FPS window.
type ChannelStatusEvent struct {
	Channel   string `json:"channel" example:"left" doc:"Channel name"`
	Status    string `json:"status" example:"120 FPS" doc:"Human readable status text"`
	Severity  string `json:"severity" example:"ok" enum:"ok,warning,error" doc:"Status severity"`
	State     string `json:"state" example:"active" enum:"idle,starting,active,lost" doc:"Capture state after the transition"`
	FPS       int    `json:"fps" example:"120" doc:"Last measured frames per second"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ChannelStatusEvent.
func (e ChannelStatusEvent) Type() uint32 { return TypeChannelStatus }

// ChannelMetricsEvent carries periodic per-channel counters.
type ChannelMetricsEvent struct {
	EventType     string `json:"type"`
	Channel       string `json:"channel"`
	FPS           int    `json:"fps"`
	Active        bool   `json:"active"`
	Frames        uint64 `json:"frames"`
	DroppedFrames uint64 `json:"dropped_frames"`
}

// Type returns the event type identifier for ChannelMetricsEvent.
func (e ChannelMetricsEvent) Type() uint32 { return TypeChannelMetrics }

// Stream client actions.
const (
	ClientConnected    = "connected"
	ClientDisconnected = "disconnected"
)

// StreamClientEvent is emitted when an MJPEG client connects or leaves.
type StreamClientEvent struct {
	Channel    string `json:"channel" example:"right" doc:"Channel name"`
	ClientID   string `json:"client_id" doc:"Connection identifier"`
	RemoteAddr string `json:"remote_addr" example:"127.0.0.1:51234" doc:"Client address"`
	Action     string `json:"action" example:"connected" enum:"connected,disconnected" doc:"Action type"`
	FramesSent uint64 `json:"frames_sent" doc:"Parts written to the client (disconnect only)"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamClientEvent.
func (e StreamClientEvent) Type() uint32 { return TypeStreamClient }
