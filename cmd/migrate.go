package cmd

import (
	"github.com/spf13/cobra"

	"messenger-service/internal/db"
	"messenger-service/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	Long: `Apply the database schema to DB_DSN and exit.

Statements are idempotent, so running migrate against an up-to-date
database is a no-op. serve applies the same schema on startup.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		conn, err := db.Connect(cmd.Context(), cfg.DBDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		return db.Migrate(cmd.Context(), conn, logger.Named("db"))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
