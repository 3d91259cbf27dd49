package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	output = &buf
	mutex.Unlock()
	t.Cleanup(func() {
		mutex.Lock()
		output = os.Stdout
		mutex.Unlock()
	})
	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	reset(t)
	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"capture": "debug", "mjpeg": "warn"},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"mjpeg", false, false, true},
		{"supervisor", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestOutputCarriesModule(t *testing.T) {
	buf := reset(t)
	Initialize(Config{Level: "debug", Format: "text"})

	GetLogger("channel").Debug("Capture active", "channel", "left")

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "module=channel", "channel=left", `msg="Capture active"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	buf := reset(t)
	Initialize(Config{Level: "info", Format: "json"})

	GetLogger("api").Info("HTTP server listening", "port", 8080)

	if out := buf.String(); !strings.Contains(out, `"module":"api"`) || !strings.Contains(out, `"port":8080`) {
		t.Errorf("json output = %q", out)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	reset(t)

	before := GetLogger("capture")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"capture": "debug"}})

	after := GetLogger("capture")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Initialize should apply the module override")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("earlier logger should follow the level change")
	}
}

func TestSetModuleLevel(t *testing.T) {
	reset(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("mjpeg")
	if err := SetModuleLevel("mjpeg", "error"); err != nil {
		t.Fatalf("SetModuleLevel: %v", err)
	}
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after setting error level")
	}

	if err := SetModuleLevel("mjpeg", "loud"); err == nil {
		t.Error("unknown level should fail")
	}
}

func TestSetLevels(t *testing.T) {
	buf := reset(t)
	Initialize(Config{Level: "info", Format: "json", Modules: map[string]string{"api": "warn"}})

	api := GetLogger("api")
	channel := GetLogger("channel")
	SetLevels(Config{Level: "warn", Format: "text", Modules: map[string]string{"api": "debug"}})

	ctx := context.Background()
	if !api.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("api should be at debug after SetLevels")
	}
	if channel.Handler().Enabled(ctx, slog.LevelInfo) {
		t.Error("channel should follow the new global level")
	}

	api.Debug("still json")
	if !strings.Contains(buf.String(), `"msg":"still json"`) {
		t.Errorf("format should not change: %q", buf.String())
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(multi).With("module", "test")

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Count(debugBuf.String(), "debug only") != 1 || strings.Contains(infoBuf.String(), "debug only") {
		t.Errorf("debug record routed wrong: %q / %q", debugBuf.String(), infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "both") || !strings.Contains(infoBuf.String(), "both") {
		t.Error("info record should reach both handlers")
	}
	if !strings.Contains(infoBuf.String(), "module=test") {
		t.Error("WithAttrs should propagate to every handler")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestJournalFields(t *testing.T) {
	fields := map[string]string{}
	addAttrToFields(fields, slog.String("channel", "left"), nil)
	addAttrToFields(fields, slog.Int("fps", 120), []string{"capture"})
	addAttrToFields(fields, slog.Group("client", slog.String("id", "abc")), nil)

	want := map[string]string{
		"CHANNEL":     "left",
		"CAPTURE_FPS": "120",
		"CLIENT_ID":   "abc",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}

	if got := mapLevelToPriority(slog.LevelWarn); got != journal.PriWarning {
		t.Errorf("warn priority = %v", got)
	}
}
