package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-deconv/internal/registry"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registry configurations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "%-3s  %-26s  %-9s  %-9s  %7s  %s\n", "IDX", "NAME", "IN", "OUT", "OUTPUTS", "SELECTORS")
			for _, e := range registry.All() {
				c := e.Config
				name := e.Name
				if e.Index == registry.Default().Index {
					name += " *"
				}
				fmt.Fprintf(w, "%-3d  %-26s  %-9s  %-9s  %7d  %s %s\n",
					e.Index,
					name,
					fmt.Sprintf("%dx%dx%d", c.H, c.W, c.CI),
					fmt.Sprintf("%dx%dx%d", c.OutHeight(), c.OutWidth(), c.CO),
					c.OutputLen(),
					e.IndexTag(),
					e.Tag(),
				)
			}
			return nil
		},
	}
}
