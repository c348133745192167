// Package doctor provides environment preflight checks for deconv.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sys/cpu"

	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/dump"
	"github.com/example/go-deconv/internal/registry"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Feature is one host CPU capability.
type Feature struct {
	Name    string
	Present bool
}

// FeatureFunc reports host CPU capabilities.
type FeatureFunc func() []Feature

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Entries are the registry configurations to smoke-test.
	Entries []registry.Entry
	// OutputDir must exist (or be creatable) and be writable.
	OutputDir string
	// GoldenDir is optional; missing golden data is reported, not failed.
	GoldenDir string
	// CPUFeatures defaults to HostFeatures.
	CPUFeatures FeatureFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- registry ---------------------------------------------------------
	if len(cfg.Entries) == 0 {
		res.fail("registry: no configurations")
		fmt.Fprintf(w, "%s registry: no configurations\n", FailMark)
	}
	for _, e := range cfg.Entries {
		if err := checkEntry(e); err != nil {
			res.fail(fmt.Sprintf("registry entry %s: %v", e.Name, err))
			fmt.Fprintf(w, "%s registry entry %d %s: %v\n", FailMark, e.Index, e.Name, err)
		} else {
			fmt.Fprintf(w, "%s registry entry %d %s: %d outputs\n", PassMark, e.Index, e.Name, e.Config.OutputLen())
		}
	}

	// ---- output directory -------------------------------------------------
	if err := checkWritable(cfg.OutputDir); err != nil {
		res.fail(fmt.Sprintf("output dir %q: %v", cfg.OutputDir, err))
		fmt.Fprintf(w, "%s output dir %s: %v\n", FailMark, cfg.OutputDir, err)
	} else {
		fmt.Fprintf(w, "%s output dir: %s\n", PassMark, cfg.OutputDir)
	}

	// ---- golden data ------------------------------------------------------
	if cfg.GoldenDir != "" {
		n := countGolden(cfg.GoldenDir, cfg.Entries)
		fmt.Fprintf(w, "%s golden data: %d of %d configurations in %s\n", PassMark, n, len(cfg.Entries), cfg.GoldenDir)
	}

	// ---- host CPU ---------------------------------------------------------
	features := cfg.CPUFeatures
	if features == nil {
		features = HostFeatures
	}
	have := lo.FilterMap(features(), func(f Feature, _ int) (string, bool) { return f.Name, f.Present })
	if len(have) == 0 {
		have = []string{"none detected"}
	}
	fmt.Fprintf(w, "%s host %s/%s, %d CPUs, SIMD: %s\n", PassMark, runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), strings.Join(have, " "))

	return res
}

// checkEntry validates the entry, loads its weights and runs one constant
// feature map through the core against the reference.
func checkEntry(e registry.Entry) error {
	ws, err := e.Store()
	if err != nil {
		return err
	}
	core, err := deconv.NewCore(e.Config, ws)
	if err != nil {
		return err
	}
	input, err := dump.Input(e.Config, dump.PatternConstant, 1)
	if err != nil {
		return err
	}
	got, err := core.Transform(context.Background(), input)
	if err != nil {
		return err
	}
	want, err := deconv.Reference(e.Config, ws, input)
	if err != nil {
		return err
	}
	mm, err := dump.Compare(e.Config, got, want)
	if err != nil {
		return err
	}
	if len(mm) > 0 {
		return fmt.Errorf("%d outputs differ from the reference, first %s", len(mm), mm[0])
	}
	return nil
}

func checkWritable(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".deconv-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func countGolden(dir string, entries []registry.Entry) int {
	n := 0
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(dir, dump.GoldenStem(e.Config)+"_output.csv")); err == nil {
			n++
		}
	}
	return n
}

// HostFeatures reports the SIMD extensions relevant to the lane workers.
func HostFeatures() []Feature {
	switch runtime.GOARCH {
	case "amd64", "386":
		return []Feature{
			{"SSE4.1", cpu.X86.HasSSE41},
			{"AVX", cpu.X86.HasAVX},
			{"AVX2", cpu.X86.HasAVX2},
			{"FMA", cpu.X86.HasFMA},
			{"AVX512F", cpu.X86.HasAVX512F},
			{"AVX512BW", cpu.X86.HasAVX512BW},
		}
	case "arm64":
		return []Feature{
			{"ASIMD", cpu.ARM64.HasASIMD},
			{"ASIMDDP", cpu.ARM64.HasASIMDDP},
			{"SVE", cpu.ARM64.HasSVE},
			{"SVE2", cpu.ARM64.HasSVE2},
		}
	default:
		return nil
	}
}
