// Command ledgerctl is the operator CLI: it inspects the taxonomy, classifies text
// offline, exports the correction log and issues API tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ledgerlens/internal/config"
	"ledgerlens/internal/corrections"
	"ledgerlens/internal/repository/postgres"
	"ledgerlens/internal/taxonomy"
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Operate the ledgerlens categorization engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(taxonomyCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(correctionsCmd())
	rootCmd.AddCommand(tokenCmd())
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRegistry reads configuration and the taxonomy every command depends on.
func loadRegistry() (*config.Config, *taxonomy.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	registry, err := taxonomy.Load(&cfg.Taxonomy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	return cfg, registry, nil
}

// openCorrections opens the configured correction store, connecting to postgres only
// when that backend is selected.
func openCorrections(cfg *config.Config, registry *taxonomy.Registry) (corrections.Store, func(), error) {
	var db *sqlx.DB
	if cfg.Corrections.Backend == corrections.BackendPostgres {
		var err error
		db, err = postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}
	store, err := corrections.Open(&cfg.Corrections, registry, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}
	return store, func() {
		_ = store.Close()
		if db != nil {
			_ = db.Close()
		}
	}, nil
}
