// Package models holds the request and response types of the HTTP API.
package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"2 of 2 channels active" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"windows/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Channel models
type ChannelData struct {
	Name          string     `json:"name" example:"left" doc:"Channel name"`
	Endpoint      string     `json:"endpoint" example:"/left" doc:"MJPEG stream path"`
	Source        string     `json:"source" example:"draw Image1" doc:"Capture source identifier"`
	Gamma         float64    `json:"gamma" example:"1.0" doc:"Gamma correction, 1.0 is off"`
	State         string     `json:"state" example:"active" enum:"idle,starting,active,lost" doc:"Capture state"`
	Active        bool       `json:"active" doc:"Whether a capture subscription is live"`
	Status        string     `json:"status" example:"120 FPS" doc:"Last status text"`
	Severity      string     `json:"severity,omitempty" example:"ok" doc:"Severity of the last status"`
	FPS           int        `json:"fps" example:"120" doc:"Last measured frames per second"`
	Frames        uint64     `json:"frames" doc:"Frames published since startup"`
	DroppedFrames uint64     `json:"dropped_frames" doc:"Frames dropped by the transformer"`
	Sequence      uint64     `json:"sequence" doc:"Sequence of the latest published frame"`
	Clients       int        `json:"clients" doc:"Connected MJPEG clients"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty" doc:"Last capture start attempt"`
}

type ChannelListData struct {
	Channels []ChannelData `json:"channels" doc:"Configured channels"`
	Count    int           `json:"count" example:"2" doc:"Number of channels"`
}

type ChannelListResponse struct {
	Body ChannelListData
}

type ChannelRequest struct {
	Name string `path:"name" example:"left" doc:"Channel name"`
}

type ChannelResponse struct {
	Body ChannelData
}

type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Sequence    string `header:"X-Sequence"`
	Body        []byte
}

// Logging models
type LogLevelRequest struct {
	Module string `path:"module" example:"capture" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" example:"debug" enum:"debug,info,warn,error" doc:"New level"`
	}
}

type LogLevelResponse struct {
	Body struct {
		Module string `json:"module" example:"capture" doc:"Logger module"`
		Level  string `json:"level" example:"debug" doc:"Applied level"`
	}
}

// LED models
type LEDData struct {
	Available []string `json:"available" doc:"LEDs driven by this board"`
	Pattern   string   `json:"pattern" example:"solid" doc:"Pattern currently shown"`
}

type LEDResponse struct {
	Body LEDData
}
