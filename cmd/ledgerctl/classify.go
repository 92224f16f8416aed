package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ledgerlens/internal/classifier"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/ranker"
	"ledgerlens/internal/service"
)

func classifyCmd() *cobra.Command {
	var (
		merchant string
		amount   string
	)
	cmd := &cobra.Command{
		Use:   "classify [description]",
		Short: "Categorize one expense with the local model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := loadRegistry()
			if err != nil {
				return err
			}
			model, err := classifier.LoadKeywordModel(cfg.Classifier.ModelPath)
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			categorizer := service.NewCategorizer(
				classifier.NewAdapter(registry, model),
				ranker.New(registry, ranker.Options{TopK: cfg.Classifier.TopK, LowConfidenceFloor: cfg.Classifier.LowConfidenceFloor}),
			)

			in := domain.CategorizationInput{MerchantName: merchant}
			if len(args) == 1 {
				in.Description = args[0]
			}
			if amount != "" {
				d, err := decimal.NewFromString(strings.TrimSpace(amount))
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				in.Amount = &d
			}

			res, err := categorizer.Categorize(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Printf("%s (confidence %.2f)", res.Category, res.Confidence)
			if res.LowConfidence {
				fmt.Print(" [low confidence]")
			}
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			for _, alt := range res.Alternatives {
				fmt.Fprintf(w, "  %s\t%.4f\n", alt.Category, alt.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&merchant, "merchant", "", "merchant name")
	cmd.Flags().StringVar(&amount, "amount", "", "transaction amount")
	return cmd
}
