// Package frame holds the raw capture buffer, the cropped output frame and
// the transformer between them.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// Output geometry of every published frame.
const (
	Width  = 320
	Height = 240

	// bytes per output pixel (B,G,R)
	channels = 3
)

// PixelFormat describes the byte order of a raw pixel.
type PixelFormat int

// Supported raw layouts.
const (
	FormatBGRA PixelFormat = iota
	FormatRGBA
	FormatBGR
)

func (p PixelFormat) String() string {
	switch p {
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	case FormatBGR:
		return "bgr"
	default:
		return fmt.Sprintf("format(%d)", int(p))
	}
}

// BytesPerPixel returns the pixel stride of the layout, or 0 if unknown.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case FormatBGRA, FormatRGBA:
		return 4
	case FormatBGR:
		return 3
	default:
		return 0
	}
}

// Raw is a frame exactly as delivered by a capture backend.
type Raw struct {
	Pix      []byte
	Width    int
	Height   int
	Stride   int // bytes per row; 0 means Width*BytesPerPixel
	Format   PixelFormat
	Captured time.Time
}

// Frame is a 320x240 B,G,R buffer ready for encoding.
// It must not be modified once published.
type Frame struct {
	Pix      []byte
	Captured time.Time

	encodeOnce sync.Once
	quality    int
	jpeg       []byte
	encodeErr  error
}

// ErrNilFrame is returned when encoding a nil frame.
var ErrNilFrame = errors.New("nil frame")

// JPEG returns the frame encoded at the given quality. The first call encodes
// and caches the result so every client of a channel shares one encoding; a
// later call with a different quality encodes without caching.
func (f *Frame) JPEG(quality int) ([]byte, error) {
	if f == nil {
		return nil, ErrNilFrame
	}
	f.encodeOnce.Do(func() {
		f.quality = quality
		f.jpeg, f.encodeErr = encodeJPEG(f.Pix, quality)
	})
	if f.quality != quality {
		return encodeJPEG(f.Pix, quality)
	}
	return f.jpeg, f.encodeErr
}

func encodeJPEG(bgr []byte, quality int) ([]byte, error) {
	if len(bgr) != Width*Height*channels {
		return nil, fmt.Errorf("encode: buffer is %d bytes, want %d", len(bgr), Width*Height*channels)
	}
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	bgrToRGBA(img.Pix, bgr)

	var buf bytes.Buffer
	buf.Grow(Width * Height / 4)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func bgrToRGBA(dst, src []byte) {
	for i, j := 0, 0; i+2 < len(src) && j+3 < len(dst); i, j = i+3, j+4 {
		dst[j] = src[i+2]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i]
		dst[j+3] = 0xff
	}
}
