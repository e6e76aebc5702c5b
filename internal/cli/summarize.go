package cli

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockwatcher/internal/app/di"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Run the daily summary job once",
	Long: `Aggregate the trades of every active stock for the trade date stored in
the last_trade_date application property, then print the run report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := di.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		report, err := c.Aggregator.GenerateDailySummaries(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}
