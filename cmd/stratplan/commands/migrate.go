package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stratplan/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the progress schema",
	Long: `Creates the progress schema and tables in DATABASE_URL. Statements
are idempotent, so the command can run on every deploy.

Example:
  go run ./cmd/stratplan migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		PrintError("Migration failed")
		return err
	}

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Schema ready (ping %v, %d/%d connections)",
		status.ResponseTime, status.Stats.TotalConns, status.Stats.MaxConns))
	return nil
}
