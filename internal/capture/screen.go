package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
)

// ScreenConfig configures screen rectangle capture.
type ScreenConfig struct {
	FPS int // polling rate
}

// ScreenBackend captures a fixed rectangle of the desktop by polling.
// Source identifiers have the form "x,y,w,h".
type ScreenBackend struct {
	interval time.Duration
	logger   *slog.Logger

	grab     func(image.Rectangle) (*image.RGBA, error)
	displays func() []image.Rectangle

	mu   sync.Mutex
	subs map[*screenSubscription]struct{}
}

// NewScreenBackend creates a screen capture backend.
func NewScreenBackend(cfg ScreenConfig, logger *slog.Logger) *ScreenBackend {
	if logger == nil {
		logger = slog.Default()
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 60
	}
	return &ScreenBackend{
		interval: time.Second / time.Duration(fps),
		logger:   logger,
		grab:     screenshot.CaptureRect,
		displays: activeDisplays,
		subs:     make(map[*screenSubscription]struct{}),
	}
}

// Name returns the backend name.
func (b *ScreenBackend) Name() string { return "screen" }

func activeDisplays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	bounds := make([]image.Rectangle, 0, n)
	for i := range n {
		bounds = append(bounds, screenshot.GetDisplayBounds(i))
	}
	return bounds
}

// ParseRect parses "x,y,w,h" into a rectangle.
func ParseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("rectangle %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("rectangle %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("rectangle %q: empty size", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

func (b *ScreenBackend) visible(r image.Rectangle) bool {
	var union image.Rectangle
	for _, d := range b.displays() {
		union = union.Union(d)
	}
	return r.In(union)
}

// Subscribe grabs the rectangle once and then polls it until stopped.
func (b *ScreenBackend) Subscribe(ctx context.Context, source string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rect, err := ParseRect(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if !b.visible(rect) {
		return nil, fmt.Errorf("%w: %v is outside every display", ErrSourceUnavailable, rect)
	}

	img, err := b.grab(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &screenSubscription{
		feed:   newFeed(),
		rect:   rect,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.push(rawFromRGBA(img))

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(sub.done)
		err := b.poll(runCtx, sub)
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.close(err)
	}()

	return sub, nil
}

func (b *ScreenBackend) poll(ctx context.Context, sub *screenSubscription) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !b.visible(sub.rect) {
			return fmt.Errorf("%w: %v left the desktop", ErrSourceClosed, sub.rect)
		}
		img, err := b.grab(sub.rect)
		if err != nil {
			b.logger.Debug("Screen grab failed", "rect", sub.rect, "error", err)
			return fmt.Errorf("%w: %w", ErrSourceClosed, err)
		}
		sub.push(rawFromRGBA(img))
	}
}

// Close stops every running poller.
func (b *ScreenBackend) Close() error {
	b.mu.Lock()
	subs := make([]*screenSubscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Stop()
	}
	return nil
}

func rawFromRGBA(img *image.RGBA) *frame.Raw {
	return &frame.Raw{
		Pix:      img.Pix,
		Width:    img.Rect.Dx(),
		Height:   img.Rect.Dy(),
		Stride:   img.Stride,
		Format:   frame.FormatRGBA,
		Captured: time.Now(),
	}
}

type screenSubscription struct {
	*feed
	rect   image.Rectangle
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop ends polling and waits for the poller to exit.
func (s *screenSubscription) Stop() {
	s.cancel()
	<-s.done
}
