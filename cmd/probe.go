// Package cmd holds the subcommands of the droolon binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"
	"github.com/spf13/cobra"

	"github.com/FynnleyNeko/DroolonStreamer/internal/capture"
	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/config"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/gamma"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
)

// ErrNoFrame is returned when a source delivers nothing before the timeout.
var ErrNoFrame = errors.New("no frame before timeout")

// ProbeResult describes the first frame of a capture source.
type ProbeResult struct {
	Channel string
	Source  string
	Width   int
	Height  int
	Format  frame.PixelFormat
	JPEG    int // encoded size of the transformed frame in bytes
	Elapsed time.Duration
}

// CreateProbeCmd creates the probe command. settings returns the validated
// root configuration once flags are parsed.
func CreateProbeCmd(settings func() *config.Settings) *cobra.Command {
	var timeout time.Duration
	var streamURL string
	var count int

	cmd := &cobra.Command{
		Use:   "probe [channel]",
		Short: "Check capture sources or a running stream",
		Long: `Subscribes once to each configured capture source (or only the named channel), ` +
			`waits for the first frame and reports its geometry. With --stream, reads frames ` +
			`from a running MJPEG endpoint instead and reports their size and rate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()
			out := c.OutOrStdout()

			if streamURL != "" {
				return probeStream(ctx, out, streamURL, count)
			}

			s := settings()
			if s == nil {
				return errors.New("configuration not loaded")
			}
			backend, err := capture.New(s.Capture, logging.GetLogger("capture"))
			if err != nil {
				return err
			}
			defer backend.Close()

			failed := 0
			for _, cfg := range s.Channels {
				if len(args) == 1 && args[0] != cfg.Name {
					continue
				}
				res, err := Probe(ctx, backend, cfg)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\t%s\tFAIL\t%v\n", cfg.Name, cfg.Source, err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\tOK\t%dx%d %s, jpeg %d bytes, first frame after %s\n",
					res.Channel, res.Source, res.Width, res.Height, res.Format, res.JPEG, res.Elapsed.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d channel(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for frames")
	cmd.Flags().StringVar(&streamURL, "stream", "", "Probe a running MJPEG endpoint, e.g. http://127.0.0.1:8080/left")
	cmd.Flags().IntVar(&count, "frames", 30, "Frames to read with --stream")

	return cmd
}

// Probe subscribes to cfg.Source, waits for one frame and runs it through
// the channel transform. The subscription is stopped before returning.
func Probe(ctx context.Context, backend capture.Backend, cfg channel.Config) (*ProbeResult, error) {
	lut, err := gamma.New(cfg.Gamma)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sub, err := backend.Subscribe(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	defer sub.Stop()

	var raw *frame.Raw
	select {
	case r, ok := <-sub.Frames():
		if !ok {
			if err := sub.Err(); err != nil {
				return nil, err
			}
			return nil, capture.ErrSourceClosed
		}
		raw = r
	case <-ctx.Done():
		return nil, ErrNoFrame
	}

	f, err := frame.NewTransformer(lut).Transform(raw)
	if err != nil {
		return nil, err
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = config.Defaults().Quality
	}
	data, err := f.JPEG(quality)
	if err != nil {
		return nil, err
	}

	return &ProbeResult{
		Channel: cfg.Name,
		Source:  cfg.Source,
		Width:   raw.Width,
		Height:  raw.Height,
		Format:  raw.Format,
		JPEG:    len(data),
		Elapsed: time.Since(start),
	}, nil
}

// probeStream decodes count frames from an MJPEG endpoint.
func probeStream(ctx context.Context, out io.Writer, url string, count int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}

	dec, err := gomjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		return err
	}

	start := time.Now()
	var width, height, n int
	for n < count {
		img, err := dec.Decode()
		if err != nil {
			if n == 0 {
				return fmt.Errorf("decode: %w", err)
			}
			break
		}
		b := img.Bounds()
		width, height = b.Dx(), b.Dy()
		n++
	}

	elapsed := time.Since(start)
	rate := 0.0
	if n > 1 && elapsed > 0 {
		rate = float64(n-1) / elapsed.Seconds()
	}
	fmt.Fprintf(out, "%s\t%d frames\t%dx%d\t%.1f fps\n", url, n, width, height, rate)
	return nil
}
