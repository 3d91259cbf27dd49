package mjpeg

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"sync"
	"testing"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame(shade byte) *frame.Frame {
	pix := make([]byte, frame.Width*frame.Height*3)
	for i := range pix {
		pix[i] = shade
	}
	return &frame.Frame{Pix: pix, Captured: time.Now()}
}

type part struct {
	header textproto.MIMEHeader
	body   []byte
}

func (p part) seq(t *testing.T) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(p.header.Get("X-Sequence"), 10, 64)
	if err != nil {
		t.Fatalf("bad X-Sequence %q: %v", p.header.Get("X-Sequence"), err)
	}
	return n
}

// connect opens the stream and returns its parts; the channel closes when the body ends.
func connect(t *testing.T, url string) (*http.Response, <-chan part) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("bad content type %q: %v", resp.Header.Get("Content-Type"), err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("media type = %q", mediaType)
	}

	parts := make(chan part, 256)
	go func() {
		defer close(parts)
		mr := multipart.NewReader(resp.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				return
			}
			body, err := io.ReadAll(p)
			if err != nil {
				return
			}
			parts <- part{header: p.Header, body: body}
		}
	}()
	return resp, parts
}

func next(t *testing.T, parts <-chan part) part {
	t.Helper()
	select {
	case p, ok := <-parts:
		if !ok {
			t.Fatal("stream ended")
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for part")
	}
	return part{}
}

func expectNone(t *testing.T, parts <-chan part, wait time.Duration) {
	t.Helper()
	select {
	case p, ok := <-parts:
		if ok {
			t.Fatalf("unexpected part seq %s", p.header.Get("X-Sequence"))
		}
	case <-time.After(wait):
	}
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamHeadersAndFirstPart(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(128))

	h := NewHandler("left", pub, Options{Quality: 90, Logger: testLogger()})
	srv := newServer(t, h)

	resp, parts := connect(t, srv.URL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "multipart/x-mixed-replace; boundary="+Boundary {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got == "" {
		t.Error("expected Cache-Control header")
	}

	p := next(t, parts)
	if got := p.header.Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("part Content-Type = %q", got)
	}
	if got := p.header.Get("Content-Length"); got != strconv.Itoa(len(p.body)) {
		t.Errorf("Content-Length = %s, body is %d bytes", got, len(p.body))
	}
	if got := p.seq(t); got != 1 {
		t.Errorf("X-Sequence = %d, want 1", got)
	}

	img, err := jpeg.Decode(bytes.NewReader(p.body))
	if err != nil {
		t.Fatalf("decode part: %v", err)
	}
	if b := img.Bounds(); b.Dx() != frame.Width || b.Dy() != frame.Height {
		t.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), frame.Width, frame.Height)
	}
}

func TestStreamStartsAtLatestFrame(t *testing.T) {
	pub := stream.NewPublisher("left")
	for i := range 5 {
		pub.Publish("left", testFrame(byte(i*40)))
	}

	h := NewHandler("left", pub, Options{KeepAlive: time.Hour, Logger: testLogger()})
	srv := newServer(t, h)

	_, parts := connect(t, srv.URL)
	if got := next(t, parts).seq(t); got != 5 {
		t.Fatalf("first part seq = %d, want 5", got)
	}

	pub.Publish("left", testFrame(250))
	if got := next(t, parts).seq(t); got != 6 {
		t.Errorf("next part seq = %d, want 6", got)
	}
}

func TestUnchangedFrameNotResent(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(1))

	h := NewHandler("left", pub, Options{FPS: 120, KeepAlive: time.Hour, Logger: testLogger()})
	srv := newServer(t, h)

	_, parts := connect(t, srv.URL)
	next(t, parts)
	expectNone(t, parts, 150*time.Millisecond)
}

func TestKeepAliveResendsLatest(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(1))

	h := NewHandler("left", pub, Options{FPS: 120, KeepAlive: 30 * time.Millisecond, Logger: testLogger()})
	srv := newServer(t, h)

	_, parts := connect(t, srv.URL)
	first := next(t, parts)
	again := next(t, parts)
	if first.seq(t) != 1 || again.seq(t) != 1 {
		t.Errorf("keep-alive parts seq %d and %d, want 1 and 1", first.seq(t), again.seq(t))
	}
	if !bytes.Equal(first.body, again.body) {
		t.Error("keep-alive resend should carry the identical JPEG")
	}
}

func TestNoFrameYet(t *testing.T) {
	pub := stream.NewPublisher("right")
	h := NewHandler("right", pub, Options{Logger: testLogger()})
	srv := newServer(t, h)

	resp, parts := connect(t, srv.URL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	expectNone(t, parts, 50*time.Millisecond)

	pub.Publish("right", testFrame(9))
	if got := next(t, parts).seq(t); got != 1 {
		t.Errorf("seq = %d, want 1", got)
	}
}

func TestClientDisconnectIsolated(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(1))

	h := NewHandler("left", pub, Options{KeepAlive: time.Hour, Logger: testLogger()})
	srv := newServer(t, h)

	respA, partsA := connect(t, srv.URL)
	_, partsB := connect(t, srv.URL)
	next(t, partsA)
	next(t, partsB)

	respA.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for i := 2; ; i++ {
		// Keep frames flowing so the dead connection hits a write error.
		pub.Publish("left", testFrame(byte(i)))
		if got := next(t, partsB).seq(t); got != uint64(i) {
			t.Fatalf("client B seq = %d, want %d", got, i)
		}
		if h.Clients() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("disconnected client still counted, clients = %d", h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerShutdownEndsStreams(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHandler("left", pub, Options{Logger: testLogger()})
	srv := httptest.NewUnstartedServer(h)
	srv.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	srv.Start()
	defer srv.Close()

	_, parts := connect(t, srv.URL)
	next(t, parts)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-parts:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not end after base context cancel")
		}
	}
}

func TestGoMJPEGDecoder(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(200))

	h := NewHandler("left", pub, Options{Logger: testLogger()})
	srv := newServer(t, h)

	dec, err := gomjpeg.NewDecoderFromURL(srv.URL)
	if err != nil {
		t.Fatalf("NewDecoderFromURL: %v", err)
	}

	img, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != frame.Width || b.Dy() != frame.Height {
		t.Errorf("decoded %dx%d, want %dx%d", b.Dx(), b.Dy(), frame.Width, frame.Height)
	}
}

func TestEndToEndRate(t *testing.T) {
	pub := stream.NewPublisher("left")
	h := NewHandler("left", pub, Options{FPS: 120, KeepAlive: time.Hour, Quality: 50, Logger: testLogger()})
	srv := newServer(t, h)

	_, parts := connect(t, srv.URL)

	const total = 150
	go func() {
		ticker := time.NewTicker(time.Second / 120)
		defer ticker.Stop()
		for i := range total {
			pub.Publish("left", testFrame(byte(i)))
			<-ticker.C
		}
	}()

	var last uint64
	received := 0
	deadline := time.After(5 * time.Second)
	for last < total {
		select {
		case p, ok := <-parts:
			if !ok {
				t.Fatal("stream ended")
			}
			seq := p.seq(t)
			if seq <= last {
				t.Fatalf("sequence went from %d to %d", last, seq)
			}
			last = seq
			received++
		case <-deadline:
			t.Fatalf("reached seq %d of %d", last, total)
		}
	}
	if received < total/4 {
		t.Errorf("received only %d parts for %d frames", received, total)
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.StreamClientEvent
}

func (b *recordingBus) Publish(ev events.Event) {
	if e, ok := ev.(events.StreamClientEvent); ok {
		b.mu.Lock()
		b.events = append(b.events, e)
		b.mu.Unlock()
	}
}

func (b *recordingBus) snapshot() []events.StreamClientEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.StreamClientEvent(nil), b.events...)
}

func TestClientEvents(t *testing.T) {
	pub := stream.NewPublisher("left")
	pub.Publish("left", testFrame(1))
	bus := &recordingBus{}

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler("left", pub, Options{Events: bus, Logger: testLogger()})
	srv := httptest.NewUnstartedServer(h)
	srv.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	srv.Start()
	defer srv.Close()

	_, parts := connect(t, srv.URL)
	next(t, parts)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for len(bus.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("events = %+v, want connect and disconnect", bus.snapshot())
		}
		time.Sleep(time.Millisecond)
	}

	evts := bus.snapshot()
	if evts[0].Action != events.ClientConnected || evts[1].Action != events.ClientDisconnected {
		t.Errorf("actions = %s, %s", evts[0].Action, evts[1].Action)
	}
	if evts[0].ClientID == "" || evts[0].ClientID != evts[1].ClientID {
		t.Errorf("client ids %q and %q should match and be set", evts[0].ClientID, evts[1].ClientID)
	}
	if evts[1].FramesSent < 1 {
		t.Errorf("FramesSent = %d, want at least 1", evts[1].FramesSent)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewHandler("left", stream.NewPublisher("left"), Options{Logger: testLogger()})

	req := httptest.NewRequest(http.MethodPost, "/left", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHeadReturnsHeadersOnly(t *testing.T) {
	h := NewHandler("left", stream.NewPublisher("left"), Options{Logger: testLogger()})

	req := httptest.NewRequest(http.MethodHead, "/left", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "multipart/x-mixed-replace; boundary="+Boundary {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body has %d bytes", w.Body.Len())
	}
}
