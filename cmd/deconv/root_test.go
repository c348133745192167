package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-deconv/internal/config"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	have := map[string]bool{}
	for _, sub := range root.Commands() {
		have[sub.Name()] = true
	}
	for _, name := range []string{"list", "run", "verify", "bench", "sweep", "header", "doctor"} {
		if !have[name] {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "log-level", "core-selection", "core-output-precision", "harness-format"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestPersistentPreRun_ConfigFailures(t *testing.T) {
	dir := t.TempDir()
	badYAML := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badYAML, []byte("core: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	badType := filepath.Join(dir, "type.yaml")
	if err := os.WriteFile(badType, []byte("core:\n  pe: lots\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing config file", []string{"list", "--config=" + filepath.Join(dir, "missing.yaml")}},
		{"malformed config file", []string{"list", "--config=" + badYAML}},
		{"undecodable value", []string{"list", "--config=" + badType}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origCfg, origLoaded := activeCfg, cfgLoaded
			t.Cleanup(func() { activeCfg, cfgLoaded = origCfg, origLoaded })
			activeCfg, cfgLoaded = config.Config{}, false

			root := NewRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			if err := root.Execute(); err == nil {
				t.Fatalf("Execute(%v) succeeded", tt.args)
			}
			if cfgLoaded {
				t.Error("config marked loaded after a failed pre-run")
			}
			if strings.Contains(out.String(), "K3_S1_H3_W3_CI1_CO3_P2") {
				t.Errorf("list ran after a failed pre-run:\n%s", out.String())
			}
		})
	}
}

func TestSetupLogger_FiltersByLevel(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN"}},
		{"warn", []string{"WARN"}},
		{"not-a-level", []string{"INFO", "WARN"}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		setupLogger(&buf, tt.level)
		slog.Debug("d")
		slog.Info("i")
		slog.Warn("w")

		var got []string
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			var rec struct {
				Level string `json:"level"`
			}
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				t.Fatalf("level %s: line %q: %v", tt.level, line, err)
			}
			got = append(got, rec.Level)
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("level %s logged %v; want %v", tt.level, got, tt.want)
		}
	}
}

func TestRequireConfig(t *testing.T) {
	origCfg, origLoaded := activeCfg, cfgLoaded
	t.Cleanup(func() { activeCfg, cfgLoaded = origCfg, origLoaded })

	activeCfg, cfgLoaded = config.Config{}, false
	if _, err := requireConfig(); err == nil {
		t.Fatal("expected error when config is not loaded")
	}

	activeCfg = config.DefaultConfig()
	activeCfg.Core.Selection = "IDX_2"
	cfgLoaded = true

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig: %v", err)
	}
	if got.Core.Selection != "IDX_2" {
		t.Errorf("Core.Selection = %q; want IDX_2", got.Core.Selection)
	}
}
