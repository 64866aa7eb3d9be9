package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPacksCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "List the catalog with live store prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			s, err := buildStack(ctx, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.waitReady(ctx); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PACK\tNAME\tVALUE\tPRICE\tTAG")
			for _, p := range s.ctrl.Packs() {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\n", p.PackID, p.ItemName, p.ItemValue, p.Price, p.Tag)
			}
			return tw.Flush()
		},
	}
}
