// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/browser"
	"github.com/realpulse/bds-harvester/internal/config"
	"github.com/realpulse/bds-harvester/internal/crawl"
	"github.com/realpulse/bds-harvester/internal/logging"
	"github.com/realpulse/bds-harvester/internal/metrics"
	"github.com/realpulse/bds-harvester/internal/normalize"
	"github.com/realpulse/bds-harvester/internal/status"
	"github.com/realpulse/bds-harvester/internal/store"
	"github.com/realpulse/bds-harvester/internal/taxonomy"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bds-harvester",
		Short: "Resumable listing harvester for batdongsan.com.vn",
		Long: `bds-harvester crawls paginated real-estate listings through a real
Chrome session, normalizes each listing against a reference taxonomy, and
merges the results into daily JSON partitions. Interrupted runs resume
where they left off: everything already collected today is skipped and
kept.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults apply when omitted")
	cmd.AddCommand(newRunCmd(), newServeCmd())
	return cmd
}

// Execute runs the CLI. An interrupt cancels the command context, which the
// orchestrator turns into a flush-and-exit.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs to crawl.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	session  *browser.Session
	orch     *crawl.Orchestrator
	sink     *status.Sink
	registry *prometheus.Registry
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	resolver := taxonomy.New(nil)
	if cfg.Taxonomy.Workbook != "" {
		resolver, err = taxonomy.Load(cfg.Taxonomy.Workbook, logger)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy workbook: %w", err)
		}
	} else {
		logger.Warn("no taxonomy workbook configured, categorical fields stay unresolved")
	}

	st, err := store.Open(cfg.Output.Root, logger)
	if err != nil {
		return nil, err
	}
	session, err := browser.NewSession(cfg.Browser.Session(), logger)
	if err != nil {
		return nil, err
	}

	sink := status.NewSink()
	registry := prometheus.NewRegistry()
	orch, err := crawl.New(cfg.Crawl.Settings(), session, normalize.New(resolver),
		st, sink, metrics.New(registry), logger)
	if err != nil {
		session.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		orch:     orch,
		sink:     sink,
		registry: registry,
	}, nil
}

func (r *runtime) close() {
	r.session.Close()
	_ = r.logger.Sync()
}
