package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockwatcher/internal/app/di"
	"stockwatcher/internal/app/router"
	summaryhandler "stockwatcher/internal/feature/summaries/transport/handler"
	summaryusecase "stockwatcher/internal/feature/summaries/usecase"
	"stockwatcher/internal/platform/logging"
)

const shutdownGrace = 15 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP surface and the daily summary scheduler",
	Long: `Serve health, readiness and metrics endpoints plus the JWT-protected
admin endpoints. Unless SUMMARY_SCHEDULED=false, the daily summary job runs
once a day at SUMMARY_SCHEDULE_HOUR in SUMMARY_TIMEZONE.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default: HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.HTTP.JWTSecret == "" {
		logging.Warn().Msg("JWT_SECRET is not set; admin endpoints will reject every request")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := di.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Summary.Scheduled {
		loc, err := cfg.Summary.Location()
		if err != nil {
			return err
		}
		scheduler := summaryusecase.NewScheduler(c.Aggregator, cfg.Summary.ScheduleHour, loc)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	h := summaryhandler.NewSummaryHandler(ctx, c.Aggregator, c.ClosePrices)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router.NewRouter(c.DB, h, cfg.HTTP.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http server shutdown failed")
	}
	return nil
}
