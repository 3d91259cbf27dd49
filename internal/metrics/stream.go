package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "droolon",
		Subsystem: "mjpeg",
		Name:      "clients",
		Help:      "Currently connected MJPEG clients",
	}, []string{"channel"})

	streamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "mjpeg",
		Name:      "frames_sent_total",
		Help:      "JPEG parts written to MJPEG clients",
	}, []string{"channel"})

	streamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "mjpeg",
		Name:      "bytes_sent_total",
		Help:      "JPEG bytes written to MJPEG clients",
	}, []string{"channel"})

	streamEncodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droolon",
		Subsystem: "mjpeg",
		Name:      "encode_errors_total",
		Help:      "Frames that failed JPEG encoding",
	}, []string{"channel"})
)

// ClientConnected increments the connected client gauge.
func ClientConnected(channel string) {
	streamClients.WithLabelValues(channel).Inc()
}

// ClientDisconnected decrements the connected client gauge.
func ClientDisconnected(channel string) {
	streamClients.WithLabelValues(channel).Dec()
}

// AddFrameSent counts one written part of n bytes.
func AddFrameSent(channel string, n int) {
	streamFrames.WithLabelValues(channel).Inc()
	streamBytes.WithLabelValues(channel).Add(float64(n))
}

// IncEncodeErrors counts a JPEG encoding failure.
func IncEncodeErrors(channel string) {
	streamEncodeErrors.WithLabelValues(channel).Inc()
}
