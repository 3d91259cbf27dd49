package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testConfig struct {
	Config string

	StringField string   `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool     `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"INT_FIELD"`
	SliceField  []string `toml:"test.slice_field" env:"SLICE_FIELD"`
	GammaField  string   `toml:"left.gamma" env:"GAMMA_FIELD"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
slice_field = ["item1", "item2"]

[left]
gamma = 1.2
`)

	cfg := &testConfig{Config: path}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := &testConfig{
		Config:      path,
		StringField: "hello world",
		BoolField:   true,
		IntField:    42,
		SliceField:  []string{"item1", "item2"},
		GammaField:  "1.2",
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("DROOLON_STRING_FIELD", "env string")
	t.Setenv("DROOLON_INT_FIELD", "123")
	t.Setenv("DROOLON_SLICE_FIELD", " a , b ,c")
	t.Setenv("DROOLON_GAMMA_FIELD", "0.8")

	cfg := &testConfig{}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.StringField != "env string" || cfg.IntField != 123 || cfg.GammaField != "0.8" {
		t.Errorf("got %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("SliceField = %v", cfg.SliceField)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml"
int_field = 100
`)
	t.Setenv("DROOLON_STRING_FIELD", "env")
	t.Setenv("DROOLON_INT_FIELD", "200")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "300"); err != nil {
		t.Fatal(err)
	}

	cfg := &testConfig{Config: path, IntField: 300}
	if err := LoadConfig(cfg, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.StringField != "env" {
		t.Errorf("StringField = %q, env should override the file", cfg.StringField)
	}
	if cfg.IntField != 300 {
		t.Errorf("IntField = %d, a changed flag should win", cfg.IntField)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg := &testConfig{Config: filepath.Join(t.TempDir(), "absent.toml")}
	if err := LoadConfig(cfg, nil); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		env  map[string]string
	}{
		{name: "invalid syntax", toml: "[test\ninvalid"},
		{name: "wrong toml type", toml: "[test]\nint_field = \"many\""},
		{name: "bad env int", env: map[string]string{"DROOLON_INT_FIELD": "many"}},
		{name: "bad env bool", env: map[string]string{"DROOLON_BOOL_FIELD": "perhaps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := &testConfig{}
			if tt.toml != "" {
				cfg.Config = writeConfig(t, tt.toml)
			}
			if err := LoadConfig(cfg, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":                 "port",
		"LeftGamma":            "left-gamma",
		"LoggingAPI":           "logging-api",
		"LoggingMJPEG":         "logging-mjpeg",
		"CaptureFPS":           "capture-fps",
		"ObsSSEInterval":       "obs-sse-interval",
		"FeaturesLEDControl":   "features-led-control",
		"ObsPrometheusEnabled": "obs-prometheus-enabled",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"server": map[string]any{"port": int64(8080)},
		"root":   "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"server.port", int64(8080)},
		{"server.address", nil},
		{"root.child", nil},
		{"missing", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDefaultOptionsFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[right]
source = "draw Right"
gamma = 0.75

[logging]
capture = "debug"
`)
	opts := Defaults()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Port != 9000 || opts.RightSource != "draw Right" || opts.RightGamma != "0.75" || opts.LoggingCapture != "debug" {
		t.Errorf("options = %+v", opts)
	}
	if opts.LeftSource != "draw Image1" {
		t.Errorf("LeftSource = %q, default should survive", opts.LeftSource)
	}
}
