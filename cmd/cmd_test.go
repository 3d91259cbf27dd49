package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/capture"
	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/config"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/mjpeg"
	"github.com/FynnleyNeko/DroolonStreamer/internal/stream"
	"github.com/FynnleyNeko/DroolonStreamer/internal/version"
)

type fakeSub struct {
	frames  chan *frame.Raw
	err     error
	stopped bool
}

func (s *fakeSub) Frames() <-chan *frame.Raw { return s.frames }
func (s *fakeSub) Err() error                { return s.err }
func (s *fakeSub) Stop()                     { s.stopped = true }

type fakeBackend struct {
	sub *fakeSub
	err error
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Close() error { return nil }
func (b *fakeBackend) Subscribe(context.Context, string) (capture.Subscription, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.sub, nil
}

func rawFrame(w, h int) *frame.Raw {
	return &frame.Raw{Pix: make([]byte, w*h*4), Width: w, Height: h, Format: frame.FormatBGRA, Captured: time.Now()}
}

func TestProbe(t *testing.T) {
	cfg := channel.Config{Name: "left", Source: "Droolon Left", Gamma: 1.2, Quality: 80}
	wantErr := errors.New("window destroyed")

	tests := []struct {
		name    string
		backend func() *fakeBackend
		wantErr error
	}{
		{
			name: "first frame",
			backend: func() *fakeBackend {
				sub := &fakeSub{frames: make(chan *frame.Raw, 1)}
				sub.frames <- rawFrame(frame.MinRawWidth, frame.MinRawHeight)
				return &fakeBackend{sub: sub}
			},
		},
		{
			name: "subscribe fails",
			backend: func() *fakeBackend {
				return &fakeBackend{err: capture.ErrSourceUnavailable}
			},
			wantErr: capture.ErrSourceUnavailable,
		},
		{
			name: "closed with error",
			backend: func() *fakeBackend {
				sub := &fakeSub{frames: make(chan *frame.Raw), err: wantErr}
				close(sub.frames)
				return &fakeBackend{sub: sub}
			},
			wantErr: wantErr,
		},
		{
			name: "closed without error",
			backend: func() *fakeBackend {
				sub := &fakeSub{frames: make(chan *frame.Raw)}
				close(sub.frames)
				return &fakeBackend{sub: sub}
			},
			wantErr: capture.ErrSourceClosed,
		},
		{
			name: "silent source",
			backend: func() *fakeBackend {
				return &fakeBackend{sub: &fakeSub{frames: make(chan *frame.Raw)}}
			},
			wantErr: ErrNoFrame,
		},
		{
			name: "frame too small",
			backend: func() *fakeBackend {
				sub := &fakeSub{frames: make(chan *frame.Raw, 1)}
				sub.frames <- rawFrame(frame.Width, frame.Height)
				return &fakeBackend{sub: sub}
			},
			wantErr: frame.ErrTransform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			b := tt.backend()
			res, err := Probe(ctx, b, cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if b.sub != nil && !b.sub.stopped {
					t.Error("subscription not stopped")
				}
				return
			}
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if res.Width != frame.MinRawWidth || res.Height != frame.MinRawHeight || res.Format != frame.FormatBGRA {
				t.Errorf("result = %+v", res)
			}
			if res.JPEG == 0 {
				t.Error("JPEG size should be reported")
			}
			if !b.sub.stopped {
				t.Error("subscription not stopped")
			}
		})
	}
}

func TestProbeStream(t *testing.T) {
	pub := stream.NewPublisher("left")
	h := mjpeg.NewHandler("left", pub, mjpeg.Options{FPS: 120, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for shade := 0; ; shade++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				pix := bytes.Repeat([]byte{byte(shade)}, frame.Width*frame.Height*3)
				pub.Publish("left", &frame.Frame{Pix: pix, Captured: time.Now()})
			}
		}
	}()

	var out bytes.Buffer
	cmd := CreateProbeCmd(func() *config.Settings { return nil })
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--stream", srv.URL, "--frames", "3", "--timeout", "5s"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("probe --stream: %v", err)
	}

	got := out.String()
	for _, want := range []string{"3 frames", "320x240"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestProbeWithoutSettings(t *testing.T) {
	cmd := CreateProbeCmd(func() *config.Settings { return nil })
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err == nil {
		t.Error("probe without configuration should fail")
	}
}

func TestVersionCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		cmd := CreateVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(nil)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("version: %v", err)
		}
		if !strings.HasPrefix(out.String(), version.String()) {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		cmd := CreateVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("version --json: %v", err)
		}
		var info version.Info
		if err := json.Unmarshal(out.Bytes(), &info); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if info.Version != version.Version {
			t.Errorf("version = %q", info.Version)
		}
	})
}
