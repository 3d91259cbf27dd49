// Package metrics provides Prometheus metrics for capture channels and MJPEG clients.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "fps",
		Help:      "Frames per second measured over the last one second window",
	}, []string{"channel"})

	captureActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "active",
		Help:      "1 while the channel holds a live capture subscription",
	}, []string{"channel"})

	captureFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames transformed and published",
	}, []string{"channel"})

	captureDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "dropped_frames_total",
		Help:      "Frames rejected by the transformer",
	}, []string{"channel"})

	captureStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "capture",
		Name:      "start_attempts_total",
		Help:      "Capture start attempts by result",
	}, []string{"channel", "result"})

	// Local cache for SSE exporter access.
	channelCache   = make(map[string]*ChannelMetrics)
	channelCacheMu sync.RWMutex
)

// ChannelMetrics holds current metric values for a channel.
type ChannelMetrics struct {
	FPS           int
	Active        bool
	Frames        uint64
	DroppedFrames uint64
	StartFailures uint64
}

// SetChannelFPS sets the last measured FPS for a channel.
func SetChannelFPS(channel string, fps int) {
	captureFPS.WithLabelValues(channel).Set(float64(fps))
	updateCache(channel, func(m *ChannelMetrics) { m.FPS = fps })
}

// SetChannelActive records whether a channel holds a live subscription.
func SetChannelActive(channel string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	captureActive.WithLabelValues(channel).Set(v)
	updateCache(channel, func(m *ChannelMetrics) { m.Active = active })
}

// IncFrames counts a published frame.
func IncFrames(channel string) {
	captureFrames.WithLabelValues(channel).Inc()
	updateCache(channel, func(m *ChannelMetrics) { m.Frames++ })
}

// IncDroppedFrames counts a frame the transformer rejected.
func IncDroppedFrames(channel string) {
	captureDropped.WithLabelValues(channel).Inc()
	updateCache(channel, func(m *ChannelMetrics) { m.DroppedFrames++ })
}

// IncStartAttempt counts a start attempt; ok reports whether it succeeded.
func IncStartAttempt(channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "not_found"
		updateCache(channel, func(m *ChannelMetrics) { m.StartFailures++ })
	}
	captureStarts.WithLabelValues(channel, result).Inc()
}

// DeleteChannelMetrics removes all metrics for a channel.
func DeleteChannelMetrics(channel string) {
	captureFPS.DeleteLabelValues(channel)
	captureActive.DeleteLabelValues(channel)
	captureFrames.DeleteLabelValues(channel)
	captureDropped.DeleteLabelValues(channel)
	captureStarts.DeleteLabelValues(channel, "ok")
	captureStarts.DeleteLabelValues(channel, "not_found")

	channelCacheMu.Lock()
	delete(channelCache, channel)
	channelCacheMu.Unlock()
}

// GetChannelMetrics returns current metric values for a channel.
func GetChannelMetrics(channel string) *ChannelMetrics {
	channelCacheMu.RLock()
	defer channelCacheMu.RUnlock()
	if m, ok := channelCache[channel]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllChannelMetrics returns metrics for all known channels.
func GetAllChannelMetrics() map[string]*ChannelMetrics {
	channelCacheMu.RLock()
	defer channelCacheMu.RUnlock()
	result := make(map[string]*ChannelMetrics, len(channelCache))
	for name, m := range channelCache {
		dup := *m
		result[name] = &dup
	}
	return result
}

func updateCache(channel string, update func(*ChannelMetrics)) {
	channelCacheMu.Lock()
	defer channelCacheMu.Unlock()
	m, ok := channelCache[channel]
	if !ok {
		m = &ChannelMetrics{}
		channelCache[channel] = m
	}
	update(m)
}
