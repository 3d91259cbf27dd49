package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultInputFormat captures a window by title on Windows.
const DefaultInputFormat = "gdigrab"

// ErrInvalidParams is returned when capture parameters cannot produce a command.
var ErrInvalidParams = errors.New("invalid capture parameters")

// Base returns the ffmpeg command with standard flags.
// level+info prefixes each stderr line with its level for ParseLogLevel.
func Base() string {
	return "ffmpeg -hide_banner -nostdin -loglevel level+info"
}

// BuildCommand builds an ffmpeg capture command that writes raw BGRA frames
// of exactly Width x Height to stdout.
func BuildCommand(p *Params) (string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return "", fmt.Errorf("%w: geometry %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	if p.Window == "" {
		return "", fmt.Errorf("%w: empty window", ErrInvalidParams)
	}

	var cmd strings.Builder

	cmd.WriteString(Base())

	for _, arg := range p.GlobalArgs {
		cmd.WriteString(" " + arg)
	}

	format := p.InputFormat
	if format == "" {
		format = DefaultInputFormat
	}
	cmd.WriteString(" -f " + format)

	if p.FPS > 0 {
		cmd.WriteString(fmt.Sprintf(" -framerate %d", p.FPS))
	}
	if format == "gdigrab" {
		if p.DrawMouse {
			cmd.WriteString(" -draw_mouse 1")
		} else {
			cmd.WriteString(" -draw_mouse 0")
		}
	}

	cmd.WriteString(" -i " + quote(inputSource(format, p.Window)))

	// Bottom-left anchored crop; fails if the source is smaller than the output.
	cmd.WriteString(fmt.Sprintf(" -vf crop=%d:%d:0:ih-%d", p.Width, p.Height, p.Height))

	cmd.WriteString(" -an -f rawvideo -pix_fmt bgra -")

	return cmd.String(), nil
}

// ExpandTemplate substitutes {window}, {width}, {height} and {fps} in a
// user supplied command template. The window title is quoted.
func ExpandTemplate(template string, p *Params) (string, error) {
	if !strings.Contains(template, "{window}") {
		return "", fmt.Errorf("%w: template has no {window} placeholder", ErrInvalidParams)
	}
	r := strings.NewReplacer(
		"{window}", quote(p.Window),
		"{width}", fmt.Sprint(p.Width),
		"{height}", fmt.Sprint(p.Height),
		"{fps}", fmt.Sprint(p.FPS),
	)
	return r.Replace(template), nil
}

func inputSource(format, window string) string {
	if format == "gdigrab" && window != "desktop" {
		return "title=" + window
	}
	return window
}

// quote wraps s in double quotes for the process command parser.
func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
