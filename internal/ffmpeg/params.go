package ffmpeg

// Params represents all parameters needed to generate a capture command.
type Params struct {
	// Input Configuration
	InputFormat string // gdigrab, x11grab, etc.
	Window      string // window title for gdigrab, display for x11grab
	FPS         int    // capture rate requested from the grabber (0 = grabber default)
	DrawMouse   bool   // include the cursor in the capture

	// Global args (-loglevel etc. are always added)
	GlobalArgs []string

	// Output geometry. The grabbed image is cropped to Width x Height,
	// anchored at the bottom-left corner of the source.
	Width  int
	Height int
}

// FrameSize returns the size in bytes of one raw BGRA output frame.
func (p *Params) FrameSize() int {
	return p.Width * p.Height * 4
}
