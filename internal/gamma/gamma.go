// Package gamma builds brightness remap tables for per-channel gamma correction.
package gamma

import (
	"errors"
	"fmt"
	"math"
)

// Allowed exponent range.
const (
	Min = 0.50
	Max = 2.00
)

// ErrOutOfRange is returned for exponents outside [Min, Max].
var ErrOutOfRange = errors.New("gamma out of range")

// LUT is an immutable 256-entry byte remap table.
type LUT struct {
	gamma  float64
	table  [256]byte
	bypass bool
}

// New builds the table T[i] = round(255 * (i/255)^(1/gamma)).
// A gamma of exactly 1.0 yields a bypass LUT that Apply never touches.
func New(g float64) (*LUT, error) {
	if math.IsNaN(g) || g < Min || g > Max {
		return nil, fmt.Errorf("%w: %.2f not in [%.2f, %.2f]", ErrOutOfRange, g, Min, Max)
	}

	l := &LUT{gamma: g, bypass: g == 1.0}
	inv := 1.0 / g
	for i := range l.table {
		v := math.Round(255 * math.Pow(float64(i)/255.0, inv))
		l.table[i] = byte(min(max(v, 0), 255))
	}
	return l, nil
}

// Gamma returns the exponent the table was built from.
func (l *LUT) Gamma() float64 {
	return l.gamma
}

// Bypass reports whether the table is skipped entirely.
func (l *LUT) Bypass() bool {
	return l.bypass
}

// Lookup maps a single byte.
func (l *LUT) Lookup(v byte) byte {
	return l.table[v]
}

// Apply remaps buf in place. No-op for a bypass LUT.
func (l *LUT) Apply(buf []byte) {
	if l.bypass {
		return
	}
	t := &l.table
	for i, v := range buf {
		buf[i] = t[v]
	}
}
