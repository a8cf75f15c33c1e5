package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/listing"
	"github.com/realpulse/bds-harvester/internal/status"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawl control API",
		Long: `Starts the HTTP control surface: poll /api/status, start a crawl with
POST /api/start, stop it with POST /api/stop, and scrape /metrics. One
crawl runs at a time.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	runFn := func(ctx context.Context, seeds []string, filter *listing.FilterSpec) error {
		_, err := rt.orch.Run(ctx, seeds, filter)
		return err
	}
	srv := status.NewServer(rt.sink, runFn, rt.registry, rt.logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-cmd.Context().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			rt.logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	rt.logger.Info("control API listening", zap.Int("port", rt.cfg.Server.Port))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve control api: %w", err)
	}
	return nil
}
