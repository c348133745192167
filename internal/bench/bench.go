// Package bench provides benchmarking primitives for the deconv bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and volume of a single benchmark run.
type RunResult struct {
	Index      int
	Cold       bool // true for the first run (cold-start)
	Duration   time.Duration
	Outputs    int // output scalars produced
	Throughput float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Timed returns the runs that count towards the summary: all of them, or
// all but the cold run when warm is set and more than one run exists.
func Timed(runs []RunResult, warm bool) []RunResult {
	out := make([]RunResult, 0, len(runs))
	for _, r := range runs {
		if warm && r.Cold && len(runs) > 1 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Durations extracts the run durations.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// Summary aggregates the timed runs of one benchmark.
type Summary struct {
	Stats
	Throughput float64 // total outputs over total time of the timed runs
	Timed      int     // runs included
}

// Summarize computes latency stats and overall throughput from the same
// set of runs, see Timed.
func Summarize(runs []RunResult, warm bool) Summary {
	timed := Timed(runs, warm)
	return Summary{
		Stats:      ComputeStats(Durations(timed)),
		Throughput: MeanThroughput(timed),
		Timed:      len(timed),
	}
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns output scalars per second.
// Returns 0 if d is zero to avoid division by zero.
func CalcThroughput(outputs int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(outputs) / d.Seconds()
}

// Measure calls fn n times and records each call. fn reports how many
// output scalars it produced. Each call runs under a pprof "run" label so
// CPU profiles can be split per iteration.
func Measure(ctx context.Context, n int, fn func(context.Context) (int, error)) ([]RunResult, error) {
	runs := make([]RunResult, 0, n)
	for i := range n {
		var (
			outputs int
			err     error
			d       time.Duration
		)
		pprof.Do(ctx, pprof.Labels("run", strconv.Itoa(i)), func(ctx context.Context) {
			start := time.Now()
			outputs, err = fn(ctx)
			d = time.Since(start)
		})
		if err != nil {
			return runs, fmt.Errorf("run %d: %w", i+1, err)
		}
		runs = append(runs, RunResult{
			Index:      i,
			Cold:       i == 0,
			Duration:   d,
			Outputs:    outputs,
			Throughput: CalcThroughput(outputs, d),
		})
	}
	return runs, nil
}

// MeanThroughput is total outputs over total time.
func MeanThroughput(runs []RunResult) float64 {
	var outputs int
	var total time.Duration
	for _, r := range runs {
		outputs += r.Outputs
		total += r.Duration
	}
	return CalcThroughput(outputs, total)
}

// ---------------------------------------------------------------------------
// Throughput gate
// ---------------------------------------------------------------------------

// CheckThroughput returns an error if mean < minimum.
// A minimum of 0 disables the gate.
func CheckThroughput(mean, minimum float64) error {
	if minimum <= 0 {
		return nil
	}
	if mean < minimum {
		return fmt.Errorf("mean throughput %.0f outputs/s below minimum %.0f", mean, minimum)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, sum Summary, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %14s\n", "Run", "Cold", "US", "Outputs", "Outputs/s")
	fmt.Fprintln(sb, strings.Repeat("-", 52))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %10d  %14.0f\n",
			r.Index+1,
			cold,
			micros(r.Duration),
			r.Outputs,
			r.Throughput,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 52))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %14s  (min)\n", "", "", micros(sum.Min), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %14s  (mean)\n", "", "", micros(sum.Mean), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %14s  (max)\n", "", "", micros(sum.Max), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %14.0f  (overall, %d of %d runs)\n", "", "", "", "", sum.Throughput, sum.Timed, len(runs))

	fmt.Fprint(w, sb.String())
}

func micros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e3
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationUS float64 `json:"duration_us"`
	Outputs    int     `json:"outputs"`
	Throughput float64 `json:"outputs_per_sec"`
}

type jsonStats struct {
	MinUS      float64 `json:"min_us"`
	MeanUS     float64 `json:"mean_us"`
	MaxUS      float64 `json:"max_us"`
	Throughput float64 `json:"outputs_per_sec"`
	TimedRuns  int     `json:"timed_runs"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, sum Summary, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinUS:      micros(sum.Min),
			MeanUS:     micros(sum.Mean),
			MaxUS:      micros(sum.Max),
			Throughput: sum.Throughput,
			TimedRuns:  sum.Timed,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationUS: micros(r.Duration),
			Outputs:    r.Outputs,
			Throughput: r.Throughput,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
