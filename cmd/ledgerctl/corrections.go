package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ledgerlens/internal/export"
)

func correctionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Inspect the correction log used for retraining",
	}
	cmd.AddCommand(correctionsCountCmd())
	cmd.AddCommand(correctionsExportCmd())
	return cmd
}

func correctionsCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded corrections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, registry, err := loadRegistry()
			if err != nil {
				return err
			}
			store, closeFn, err := openCorrections(cfg, registry)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := store.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count corrections: %w", err)
			}
			fmt.Println(n)
			return nil
		},
	}
}

func correctionsExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the correction log as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, registry, err := loadRegistry()
			if err != nil {
				return err
			}
			store, closeFn, err := openCorrections(cfg, registry)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := store.ReadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read corrections: %w", err)
			}

			if out == "" {
				out = export.BuildFilename("corrections", f, time.Now())
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := export.Write(file, f, export.CorrectionTable(records)); err != nil {
				_ = file.Close()
				return fmt.Errorf("failed to write export: %w", err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "exported %d corrections to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv, xlsx)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: generated name)")
	return cmd
}
