package frame

import (
	"errors"
	"fmt"

	"github.com/FynnleyNeko/DroolonStreamer/internal/gamma"
)

// Content region of a tracker preview window: a 2px left border and the
// bottom row are discarded, the 240 rows above it are kept.
const (
	cropLeft   = 2
	cropBottom = 241
)

// Smallest raw geometry a Transformer accepts.
const (
	MinRawWidth  = Width + cropLeft
	MinRawHeight = cropBottom
)

// ErrTransform marks every error returned by Transform.
var ErrTransform = errors.New("frame transform failed")

// TransformError describes why a raw frame could not be transformed.
type TransformError struct {
	Reason string
	Width  int
	Height int
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: %s (raw %dx%d)", ErrTransform, e.Reason, e.Width, e.Height)
}

// Unwrap allows errors.Is(err, ErrTransform).
func (e *TransformError) Unwrap() error {
	return ErrTransform
}

// Transformer crops, strips alpha and gamma-corrects raw frames.
type Transformer struct {
	lut *gamma.LUT
}

// NewTransformer returns a transformer applying lut. A nil lut or a bypass
// lut leaves pixel values untouched.
func NewTransformer(lut *gamma.LUT) *Transformer {
	return &Transformer{lut: lut}
}

// Transform produces a 320x240 BGR frame from raw.
func (t *Transformer) Transform(raw *Raw) (*Frame, error) {
	if raw == nil || raw.Pix == nil {
		return nil, &TransformError{Reason: "nil frame"}
	}
	bpp := raw.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, &TransformError{Reason: "unknown pixel format " + raw.Format.String(), Width: raw.Width, Height: raw.Height}
	}
	if raw.Width < cropLeft+Width || raw.Height < cropBottom {
		return nil, &TransformError{Reason: "frame smaller than content region", Width: raw.Width, Height: raw.Height}
	}
	stride := raw.Stride
	if stride == 0 {
		stride = raw.Width * bpp
	}
	if stride < raw.Width*bpp || len(raw.Pix) < stride*(raw.Height-1)+raw.Width*bpp {
		return nil, &TransformError{Reason: "pixel buffer too short", Width: raw.Width, Height: raw.Height}
	}

	out := make([]byte, Width*Height*channels)
	top := raw.Height - cropBottom
	for y := 0; y < Height; y++ {
		row := raw.Pix[(top+y)*stride+cropLeft*bpp:]
		dst := out[y*Width*channels : (y+1)*Width*channels]
		copyRow(dst, row, raw.Format)
	}

	if t.lut != nil {
		t.lut.Apply(out)
	}
	return &Frame{Pix: out, Captured: raw.Captured}, nil
}

// copyRow writes Width BGR pixels from src into dst.
func copyRow(dst, src []byte, format PixelFormat) {
	switch format {
	case FormatBGR:
		copy(dst, src[:Width*3])
	case FormatBGRA:
		for x := 0; x < Width; x++ {
			s := src[x*4 : x*4+3]
			d := dst[x*3 : x*3+3]
			d[0], d[1], d[2] = s[0], s[1], s[2]
		}
	case FormatRGBA:
		for x := 0; x < Width; x++ {
			s := src[x*4 : x*4+3]
			d := dst[x*3 : x*3+3]
			d[0], d[1], d[2] = s[2], s[1], s[0]
		}
	}
}
