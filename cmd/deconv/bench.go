package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/example/go-deconv/internal/bench"
)

func newBenchCmd() *cobra.Command {
	var (
		runs          int
		format        string
		minThroughput float64
		cpuProfile    string
		warm          bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark feature-map latency and output throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			l, err := resolveLayer(cfg)
			if err != nil {
				return err
			}
			core, err := newCore(cfg, l.cfg, l.weights)
			if err != nil {
				return err
			}
			input, err := harnessInput(cfg, l.cfg)
			if err != nil {
				return err
			}

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return fmt.Errorf("create cpu profile: %w", err)
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("start cpu profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			results, err := bench.Measure(cmd.Context(), runs, func(ctx context.Context) (int, error) {
				out, err := core.Transform(ctx, input)
				return len(out), err
			})
			if err != nil {
				return err
			}

			sum := bench.Summarize(results, warm)

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				bench.FormatJSON(results, sum, w)
			default:
				fmt.Fprintf(w, "%s  PE=%d SIMD=%d\n", l.entry.Name, l.cfg.PE, l.cfg.SIMD)
				bench.FormatTable(results, sum, w)
			}

			return bench.CheckThroughput(sum.Throughput, minThroughput)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of feature-map runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Exit non-zero if mean outputs/s falls below this value (0 = disabled)")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().BoolVar(&warm, "warm", false, "Exclude the cold first run from the stats and the throughput gate")

	return cmd
}
