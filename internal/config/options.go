package config

// Options is the flat CLI surface. Field names map to flags (LeftGamma ->
// --left-gamma), toml tags to config file keys and env tags to DROOLON_* vars.
type Options struct {
	Config      string `help:"Path to configuration file" short:"c" default:"config.toml"`
	ConfigWatch bool   `help:"Reload log levels when the config file changes" default:"true" toml:"watch" env:"CONFIG_WATCH"`

	// Server settings
	Address string `help:"Address to listen on" default:"127.0.0.1" toml:"server.address" env:"SERVER_ADDRESS"`
	Port    int    `help:"Port to listen on (1024-65535)" short:"p" default:"8080" toml:"server.port" env:"SERVER_PORT"`

	// Stream settings
	Framerate    int    `help:"Output frame rate (30-120)" default:"120" toml:"stream.framerate" env:"STREAM_FRAMERATE"`
	Quality      int    `help:"JPEG quality (10-100)" default:"90" toml:"stream.quality" env:"STREAM_QUALITY"`
	KeepAlive    string `help:"Resend an unchanged frame after this long" default:"1s" toml:"stream.keep_alive" env:"STREAM_KEEP_ALIVE"`
	WriteTimeout string `help:"Per frame client write timeout" default:"5s" toml:"stream.write_timeout" env:"STREAM_WRITE_TIMEOUT"`

	// Channel settings
	LeftName    string `help:"Left channel endpoint" default:"left" toml:"left.name" env:"LEFT_NAME"`
	LeftSource  string `help:"Left channel capture source" default:"draw Image1" toml:"left.source" env:"LEFT_SOURCE"`
	LeftGamma   string `help:"Left channel gamma (0.50-2.00)" default:"1.0" toml:"left.gamma" env:"LEFT_GAMMA"`
	RightName   string `help:"Right channel endpoint" default:"right" toml:"right.name" env:"RIGHT_NAME"`
	RightSource string `help:"Right channel capture source" default:"draw Image2" toml:"right.source" env:"RIGHT_SOURCE"`
	RightGamma  string `help:"Right channel gamma (0.50-2.00)" default:"1.0" toml:"right.gamma" env:"RIGHT_GAMMA"`

	// Capture settings
	CaptureBackend     string `help:"Capture backend (ffmpeg, screen)" default:"ffmpeg" toml:"capture.backend" env:"CAPTURE_BACKEND"`
	CaptureInputFormat string `help:"ffmpeg input device" default:"gdigrab" toml:"capture.input_format" env:"CAPTURE_INPUT_FORMAT"`
	CaptureCommand     string `help:"ffmpeg command template with {window}, {width}, {height}, {fps}" toml:"capture.command" env:"CAPTURE_COMMAND"`
	CaptureWidth       int    `help:"Source frame width" default:"322" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight      int    `help:"Source frame height" default:"241" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureFPS         int    `help:"Capture frame rate" default:"120" toml:"capture.fps" env:"CAPTURE_FPS"`
	CaptureDrawMouse   bool   `help:"Include the mouse pointer" default:"false" toml:"capture.draw_mouse" env:"CAPTURE_DRAW_MOUSE"`

	// Reacquisition settings
	ReacquirePeriod string `help:"Supervisor tick period" default:"1s" toml:"reacquire.period" env:"REACQUIRE_PERIOD"`
	ReacquireRetry  string `help:"Minimum time between start attempts" default:"2s" toml:"reacquire.retry" env:"REACQUIRE_RETRY"`

	// Observability settings
	ObsPrometheusEnabled bool   `help:"Serve /metrics" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`
	ObsSSEInterval       string `help:"Channel metrics event interval" default:"2s" toml:"obs.sse_interval" env:"OBS_SSE_INTERVAL"`

	// Features settings
	FeaturesLEDControl bool   `help:"Mirror channel state on a status LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDName    string `help:"sysfs LED name, detected from the board when empty" toml:"features.led_name" env:"FEATURES_LED_NAME"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture    string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingFFmpeg     string `help:"ffmpeg output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingChannel    string `help:"Channel logging level" default:"info" toml:"logging.channel" env:"LOGGING_CHANNEL"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingMJPEG      string `help:"MJPEG server logging level" default:"info" toml:"logging.mjpeg" env:"LOGGING_MJPEG"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingStatus     string `help:"Status logging level" default:"info" toml:"logging.status" env:"LOGGING_STATUS"`
}

// Defaults returns the options with every default applied, as the CLI
// would produce them without flags.
func Defaults() Options {
	return Options{
		Config:               "config.toml",
		ConfigWatch:          true,
		Address:              "127.0.0.1",
		Port:                 8080,
		Framerate:            120,
		Quality:              90,
		KeepAlive:            "1s",
		WriteTimeout:         "5s",
		LeftName:             "left",
		LeftSource:           "draw Image1",
		LeftGamma:            "1.0",
		RightName:            "right",
		RightSource:          "draw Image2",
		RightGamma:           "1.0",
		CaptureBackend:       "ffmpeg",
		CaptureInputFormat:   "gdigrab",
		CaptureWidth:         322,
		CaptureHeight:        241,
		CaptureFPS:           120,
		ReacquirePeriod:      "1s",
		ReacquireRetry:       "2s",
		ObsPrometheusEnabled: true,
		ObsSSEInterval:       "2s",
		LoggingLevel:         "info",
		LoggingFormat:        "text",
		LoggingCapture:       "info",
		LoggingFFmpeg:        "warn",
		LoggingChannel:       "info",
		LoggingSupervisor:    "info",
		LoggingMJPEG:         "info",
		LoggingAPI:           "info",
		LoggingStatus:        "info",
	}
}
