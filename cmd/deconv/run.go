package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-deconv/internal/dump"
	"github.com/example/go-deconv/internal/runtime/stream"
)

func newRunCmd() *cobra.Command {
	var maps int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream synthetic feature maps through the core and dump the output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if maps < 1 {
				return fmt.Errorf("--maps must be at least 1")
			}

			format, err := dump.ParseFormat(cfg.Harness.Format)
			if err != nil {
				return err
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

			// Every map carries the same raster, split into SIMD-wide vectors.
			var vecs [][]int64
			for range maps {
				for lo := 0; lo < len(input); lo += l.cfg.SIMD {
					vecs = append(vecs, slices.Clone(input[lo:lo+l.cfg.SIMD]))
				}
			}

			in := stream.New[[]int64]("run.in", cfg.Core.StreamCapacity)
			out := stream.New[[]int64]("run.out", cfg.Core.StreamCapacity)
			var outVecs [][]int64

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return stream.Feed(gctx, in, vecs) })
			g.Go(func() error {
				defer out.Close()
				_, err := core.Run(gctx, in, out)
				return err
			})
			g.Go(func() error {
				var err error
				outVecs, err = stream.Drain(gctx, out)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			if done := core.FeatureMaps(); done != maps {
				return fmt.Errorf("core completed %d of %d feature maps", done, maps)
			}

			flat := make([]int64, 0, maps*l.cfg.OutputLen())
			for _, v := range outVecs {
				flat = append(flat, v...)
			}
			n := l.cfg.OutputLen()
			if len(flat) != maps*n {
				return fmt.Errorf("core produced %d outputs; want %d", len(flat), maps*n)
			}
			first := flat[:n]
			for m := 1; m < maps; m++ {
				if !slices.Equal(first, flat[m*n:(m+1)*n]) {
					return fmt.Errorf("feature map %d differs from feature map 0", m)
				}
			}

			path, err := dump.WriteFile(cfg.Paths.OutputDir, l.cfg, first, format)
			if err != nil {
				return err
			}
			slog.Info("run complete",
				"config", l.entry.Name,
				"pe", l.cfg.PE,
				"simd", l.cfg.SIMD,
				"maps", core.FeatureMaps(),
				"outputs", n,
				"band_rows", core.BandRows(),
				"stream_capacity", in.Cap(),
				"vectors_in", in.Reads(),
				"vectors_out", out.Writes(),
				"path", path,
			)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().IntVar(&maps, "maps", 1, "Number of back-to-back feature maps to stream")

	return cmd
}
