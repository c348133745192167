package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-deconv/internal/doctor"
	"github.com/example/go-deconv/internal/registry"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run preflight checks for the registry and data directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			result := doctor.Run(doctor.Config{
				Entries:   registry.All(),
				OutputDir: cfg.Paths.OutputDir,
				GoldenDir: cfg.Paths.GoldenDir,
			}, out)

			// The configured selection, overrides and weights file must
			// resolve to a core that accepts its weights.
			l, err := resolveLayer(cfg)
			if err == nil {
				_, err = newCore(cfg, l.cfg, l.weights)
			}
			if err != nil {
				result.AddFailure(fmt.Sprintf("layer: %v", err))
				_, _ = fmt.Fprintf(out, "%s layer: %v\n", doctor.FailMark, err)
			} else {
				_, _ = fmt.Fprintf(out, "%s layer: %s\n", doctor.PassMark, l.cfg)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")
			return nil
		},
	}
}
