package cli

import (
	"github.com/spf13/cobra"

	"stockwatcher/internal/app/di"
	"stockwatcher/internal/platform/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		m, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer m.Shutdown()

		return db.Migrate(m.DB(), di.Models()...)
	},
}
