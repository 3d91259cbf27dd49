// Package mjpeg serves the latest frames of a channel as a
// multipart/x-mixed-replace JPEG stream.
//
// Every connection runs its own loop at the output frame rate. Each tick it
// takes a snapshot of the channel's slot and writes a part only when the
// sequence moved or the keep-alive interval elapsed. Encoding is cached per
// frame, so all clients of a channel share one JPEG per published frame.
package mjpeg

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics"
)

// Boundary separates parts of the stream.
const Boundary = "droolonframe"

// Defaults.
const (
	DefaultFPS          = 120
	DefaultQuality      = 90
	DefaultKeepAlive    = time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// Source returns the latest frame of a channel and its sequence.
type Source interface {
	Snapshot(channel string) (*frame.Frame, uint64)
}

// EventPublisher publishes client connect and disconnect events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Options configures a Handler.
type Options struct {
	FPS          int           // output loop rate
	Quality      int           // JPEG quality
	KeepAlive    time.Duration // resend an unchanged frame after this long
	WriteTimeout time.Duration // per part write deadline
	Events       EventPublisher
	Logger       *slog.Logger
}

// Handler streams one channel.
type Handler struct {
	channel string
	src     Source
	opts    Options
	logger  *slog.Logger
	clients atomic.Int64
}

// NewHandler creates a stream handler for channel.
func NewHandler(channel string, src Source, opts Options) *Handler {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		channel: channel,
		src:     src,
		opts:    opts,
		logger:  logger.With("channel", channel),
	}
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP streams until the client goes away, a write fails or the
// request context is cancelled by server shutdown.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(Boundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Debug("Flush not supported", "error", err)
		return
	}

	id := uuid.NewString()
	clientLog := h.logger.With("client", id, "remote", r.RemoteAddr)
	clientLog.Info("Client connected")
	h.clients.Add(1)
	metrics.ClientConnected(h.channel)
	h.publish(events.StreamClientEvent{
		Channel:    h.channel,
		ClientID:   id,
		RemoteAddr: r.RemoteAddr,
		Action:     events.ClientConnected,
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	sent, err := h.stream(r, mw, rc)

	h.clients.Add(-1)
	metrics.ClientDisconnected(h.channel)
	if err != nil {
		clientLog.Info("Client write failed", "frames", sent, "error", err)
	} else {
		clientLog.Info("Client disconnected", "frames", sent)
	}
	h.publish(events.StreamClientEvent{
		Channel:    h.channel,
		ClientID:   id,
		RemoteAddr: r.RemoteAddr,
		Action:     events.ClientDisconnected,
		FramesSent: sent,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// stream is the per-connection loop. It returns nil when the request
// context ends and the write error otherwise.
func (h *Handler) stream(r *http.Request, mw *multipart.Writer, rc *http.ResponseController) (uint64, error) {
	ctx := r.Context()
	ticker := time.NewTicker(time.Second / time.Duration(h.opts.FPS))
	defer ticker.Stop()

	var (
		sent     uint64
		lastSeq  uint64
		lastSent time.Time
	)

	for {
		f, seq := h.src.Snapshot(h.channel)
		now := time.Now()
		if f != nil && (seq != lastSeq || now.Sub(lastSent) >= h.opts.KeepAlive) {
			jpg, err := f.JPEG(h.opts.Quality)
			if err != nil {
				metrics.IncEncodeErrors(h.channel)
				h.logger.Warn("JPEG encoding failed", "seq", seq, "error", err)
			} else {
				if err := h.writePart(mw, rc, jpg, seq); err != nil {
					return sent, err
				}
				sent++
				metrics.AddFrameSent(h.channel, len(jpg))
			}
			lastSeq = seq
			lastSent = now
		}

		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
}

func (h *Handler) writePart(mw *multipart.Writer, rc *http.ResponseController, jpg []byte, seq uint64) error {
	if err := rc.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("set write deadline: %w", err)
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {"image/jpeg"},
		"Content-Length": {strconv.Itoa(len(jpg))},
		"X-Sequence":     {strconv.FormatUint(seq, 10)},
	})
	if err != nil {
		return err
	}
	if _, err := part.Write(jpg); err != nil {
		return err
	}
	return rc.Flush()
}

func (h *Handler) publish(ev events.Event) {
	if h.opts.Events != nil {
		h.opts.Events.Publish(ev)
	}
}
