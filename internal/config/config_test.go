package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their
// defaults and parses args into it.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}

	if cfg.Paths.OutputDir != "." {
		t.Errorf("Paths.OutputDir = %q; want %q", cfg.Paths.OutputDir, ".")
	}

	if cfg.Paths.GoldenDir != "deconv_data/exp_data" {
		t.Errorf("Paths.GoldenDir = %q; want %q", cfg.Paths.GoldenDir, "deconv_data/exp_data")
	}

	if cfg.Core.Selection != "" {
		t.Errorf("Core.Selection = %q; want empty", cfg.Core.Selection)
	}

	if cfg.Core.StreamCapacity != 16 {
		t.Errorf("Core.StreamCapacity = %d; want 16", cfg.Core.StreamCapacity)
	}

	if cfg.Core.OverflowCheck {
		t.Error("Core.OverflowCheck = true; want false")
	}

	if cfg.Core.WeightsLayout != "canonical" {
		t.Errorf("Core.WeightsLayout = %q; want %q", cfg.Core.WeightsLayout, "canonical")
	}

	if cfg.Harness.Pattern != "constant" || cfg.Harness.Value != 1 || cfg.Harness.Format != "csv" {
		t.Errorf("Harness = %+v; want constant/1/csv", cfg.Harness)
	}
}

// --- ParseLogLevel ---

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v; wantErr %v", tt.input, err, tt.wantErr)
			}

			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v; want %v", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"log-level", "info"},
		{"paths-golden-dir", "deconv_data/exp_data"},
		{"core-stream-capacity", "16"},
		{"core-overflow-check", "false"},
		{"harness-pattern", "constant"},
		{"harness-format", "csv"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flag %q bound to %q is not registered", fk.flag, fk.key)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--core-selection=IDX_3",
		"--core-pe=3",
		"--core-workers=4",
		"--core-overflow-check",
		"--core-output-shift=2",
		"--core-output-precision=ap_uint<8>",
		"--harness-pattern=ramp",
		"--log-level=debug",
	)

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Core.Selection != "IDX_3" {
		t.Errorf("Core.Selection = %q; want %q", cfg.Core.Selection, "IDX_3")
	}

	if cfg.Core.PE != 3 || cfg.Core.Workers != 4 {
		t.Errorf("Core.PE/Workers = %d/%d; want 3/4", cfg.Core.PE, cfg.Core.Workers)
	}

	if !cfg.Core.OverflowCheck {
		t.Error("Core.OverflowCheck = false; want true")
	}

	if cfg.Core.OutputShift != 2 {
		t.Errorf("Core.OutputShift = %d; want 2", cfg.Core.OutputShift)
	}

	if cfg.Core.OutputPrecision != "ap_uint<8>" {
		t.Errorf("Core.OutputPrecision = %q; want %q", cfg.Core.OutputPrecision, "ap_uint<8>")
	}

	if cfg.Harness.Pattern != "ramp" {
		t.Errorf("Harness.Pattern = %q; want %q", cfg.Harness.Pattern, "ramp")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DECONV_LOG_LEVEL", "warn")
	t.Setenv("DECONV_CORE_SELECTION", "K3_S1_H5_W5_CI1_CO3_P2")
	t.Setenv("DECONV_PATHS_OUTPUT_DIR", "/tmp/dumps")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Core.Selection != "K3_S1_H5_W5_CI1_CO3_P2" {
		t.Errorf("Core.Selection = %q", cfg.Core.Selection)
	}

	if cfg.Paths.OutputDir != "/tmp/dumps" {
		t.Errorf("Paths.OutputDir = %q; want %q", cfg.Paths.OutputDir, "/tmp/dumps")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "deconv.yaml")

	content := `
log_level: error
core:
  selection: "1"
  simd: 1
  stream_capacity: 4
harness:
  format: wav
`

	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Core.Selection != "1" || cfg.Core.StreamCapacity != 4 {
		t.Errorf("Core = %+v; want selection 1, capacity 4", cfg.Core)
	}

	if cfg.Harness.Format != "wav" {
		t.Errorf("Harness.Format = %q; want %q", cfg.Harness.Format, "wav")
	}

	if cfg.Harness.Pattern != "constant" {
		t.Errorf("Harness.Pattern = %q; want default %q", cfg.Harness.Pattern, "constant")
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "deconv.yaml")

	if err := os.WriteFile(cfgFile, []byte("core:\n  workers: 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults, "--core-workers=6"),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Core.Workers != 6 {
		t.Errorf("Core.Workers = %d; want 6", cfg.Core.Workers)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/deconv.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_NilCmd(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Cmd:      nil,
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Core.StreamCapacity != 16 {
		t.Errorf("Core.StreamCapacity = %d; want 16", cfg.Core.StreamCapacity)
	}
}
