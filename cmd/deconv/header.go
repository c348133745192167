package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-deconv/internal/weights"
)

func newHeaderCmd() *cobra.Command {
	var (
		pe, simd int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "header",
		Short: "Emit the weight table as an HLS C++ header",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			l, err := resolveLayer(cfg)
			if err != nil {
				return err
			}

			tilings := weights.Tilings(l.cfg)
			if pe > 0 || simd > 0 {
				t := weights.Tiling{PE: l.cfg.PE, SIMD: l.cfg.SIMD}
				if pe > 0 {
					t.PE = pe
				}
				if simd > 0 {
					t.SIMD = simd
				}
				if err := l.cfg.WithTiling(t.PE, t.SIMD).Validate(); err != nil {
					return err
				}
				tilings = []weights.Tiling{t}
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create header: %w", err)
				}
				defer f.Close()
				w = f
			}
			return weights.FormatHeader(w, l.weights, tilings)
		},
	}

	cmd.Flags().IntVar(&pe, "pe", 0, "Emit a single PE tiling (0 = all generated tilings)")
	cmd.Flags().IntVar(&simd, "simd", 0, "Emit a single SIMD tiling (0 = all generated tilings)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the header to a file instead of stdout")

	return cmd
}
