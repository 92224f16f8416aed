package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the category taxonomy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories in canonical order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, registry, err := loadRegistry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "#\tCATEGORY\t")
			for i, c := range registry.Categories() {
				marker := ""
				if c == registry.Fallback() {
					marker = "(fallback)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, c, marker)
			}
			return nil
		},
	})
	return cmd
}
