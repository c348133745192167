package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-deconv/internal/dump"
)

// errVerifyFailed is returned when the core output disagrees with the golden data.
var errVerifyFailed = errors.New("verify: output differs from golden data")

func newVerifyCmd() *cobra.Command {
	var maxReport int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the core against a golden input/weights/output set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			l, err := resolveLayer(cfg)
			if err != nil {
				return err
			}
			g, err := dump.LoadGolden(cfg.Paths.GoldenDir, l.cfg)
			if err != nil {
				return err
			}
			// Golden weights replace the registry table.
			core, err := newCore(cfg, l.cfg, g.Weights)
			if err != nil {
				return err
			}
			got, err := core.Transform(cmd.Context(), g.Input)
			if err != nil {
				return err
			}
			mm, err := dump.Compare(l.cfg, got, g.Output)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(mm) == 0 {
				fmt.Fprintf(w, "%s: %d outputs match\n", g.Stem, len(got))
				return nil
			}
			for i, m := range mm {
				if maxReport > 0 && i >= maxReport {
					fmt.Fprintf(w, "... %d more\n", len(mm)-i)
					break
				}
				fmt.Fprintln(w, m)
			}
			return fmt.Errorf("%w: %d of %d outputs (%s)", errVerifyFailed, len(mm), len(got), g.Stem)
		},
	}

	cmd.Flags().IntVar(&maxReport, "max-report", 10, "Mismatches to print (0 = all)")

	return cmd
}
