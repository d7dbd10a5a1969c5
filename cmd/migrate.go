package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfenske/planward/internal/config"
	"github.com/jfenske/planward/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// runMigrate opens the database, which applies the idempotent schema,
// and closes it again.
func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := store.Open(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.DatabasePath, err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	fmt.Printf("schema up to date: %s\n", cfg.DatabasePath)
	return nil
}
