package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-deconv/internal/config"
	"github.com/example/go-deconv/internal/deconv"
	"github.com/example/go-deconv/internal/dump"
	"github.com/example/go-deconv/internal/registry"
	"github.com/example/go-deconv/internal/weights"
)

// sweepResult is the outcome of one registry entry across its tilings.
type sweepResult struct {
	entry   registry.Entry
	tilings int
	path    string
	err     error
}

func newSweepCmd() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every registry configuration under every PE/SIMD tiling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			format, err := dump.ParseFormat(cfg.Harness.Format)
			if err != nil {
				return err
			}

			entries := registry.All()
			results := make([]sweepResult, len(entries))

			g, gctx := errgroup.WithContext(cmd.Context())
			if jobs > 0 {
				g.SetLimit(jobs)
			}
			for i, e := range entries {
				g.Go(func() error {
					res := sweepEntry(gctx, cfg, e, format)
					results[i] = res
					if res.err != nil {
						slog.Warn("sweep entry failed", "config", e.Name, "error", res.err)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(w, "FAIL  %-26s  %v\n", r.entry.Name, r.err)
					continue
				}
				fmt.Fprintf(w, "ok    %-26s  %2d tilings  %s\n", r.entry.Name, r.tilings, r.path)
			}
			if failed > 0 {
				return fmt.Errorf("sweep: %d of %d configurations failed", failed, len(entries))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", 0, "Configurations processed in parallel (0 = unlimited)")

	return cmd
}

// sweepEntry runs e under every PE/SIMD divisor pair, checks each result
// against the PE=1 SIMD=1 baseline and dumps the baseline output.
func sweepEntry(ctx context.Context, c config.Config, e registry.Entry, format dump.Format) sweepResult {
	res := sweepResult{entry: e}

	base := e.Config
	base.OutputShift = c.Core.OutputShift
	ws, err := deconv.LoadWeights(base, e.Weights())
	if err != nil {
		res.err = err
		return res
	}
	input, err := harnessInput(c, base)
	if err != nil {
		res.err = err
		return res
	}

	var want []int64
	for _, pe := range weights.Divisors(base.CO) {
		for _, simd := range weights.Divisors(base.CI) {
			tiled, err := ws.Retile(pe, simd)
			if err != nil {
				res.err = err
				return res
			}
			core, err := newCore(c, tiled.Config(), tiled)
			if err != nil {
				res.err = err
				return res
			}
			got, err := core.Transform(ctx, input)
			if err != nil {
				res.err = fmt.Errorf("PE=%d SIMD=%d: %w", pe, simd, err)
				return res
			}
			if want == nil {
				want = got
			} else if !slices.Equal(got, want) {
				res.err = fmt.Errorf("PE=%d SIMD=%d output differs from PE=1 SIMD=1", pe, simd)
				return res
			}
			res.tilings++
		}
	}

	res.path, res.err = dump.WriteFile(c.Paths.OutputDir, base, want, format)
	return res
}
