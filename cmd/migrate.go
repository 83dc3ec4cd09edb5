package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnidoc/omnidoc/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if err := db.Migrate(cfg.ConnString()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	cmd.Println("database is up to date")
	return nil
}
