// Command guidactl runs analytics and maintenance tasks against the
// configured backend from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guida/internal/backend"
	"guida/internal/cli"
	"guida/internal/config"
	applog "guida/internal/log"
	"guida/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "guidactl",
		Short:        "Directory analytics from the command line",
		Long:         "guidactl builds summaries, exports them and seeds demo data using the backend selected by DATA_BACKEND.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}
	root.AddCommand(newSummaryCmd(), newExportCmd(), newSeedCmd())
	return root
}

// env is what every subcommand needs: configuration, a logger and an open
// backend. close must be called when the command is done.
type env struct {
	cfg     *config.Config
	logger  *applog.Logger
	backend *backend.BackendResult
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentCLI)
	be, err := cli.OpenBackend(ctx, cfg, logger, false)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	return &env{cfg: cfg, logger: logger, backend: be}, nil
}

func (e *env) analytics() *services.AnalyticsService {
	return services.NewAnalyticsService(e.backend.Source, services.AnalyticsOptions{
		Store:    e.backend.Store,
		Location: e.cfg.Location(),
		Logger:   e.logger,
	})
}

func (e *env) close() {
	if err := e.backend.Close(); err != nil {
		e.logger.Error("Backend close error", "error", err)
	}
}

// summaryFlags are shared by summary and export.
type summaryFlags struct {
	kind     string
	business string
	rangeDay int
	unit     string
	dims     []string
}

func (f *summaryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "impressions", "record kind: transactions, impressions or reviews")
	cmd.Flags().StringVar(&f.business, "business", "", "business id; empty summarizes every business")
	cmd.Flags().IntVar(&f.rangeDay, "range", 0, "range in days (default DEFAULT_RANGE_DAYS)")
	cmd.Flags().StringVar(&f.unit, "unit", "day", "bucket unit: hour, day or month")
	cmd.Flags().StringSliceVar(&f.dims, "dims", nil, "breakdown dimensions, comma separated (default category)")
}

// request builds the summary request. An explicit --range 0 is passed on
// so the pipeline rejects it; an absent flag uses defaultRange.
func (f *summaryFlags) request(cmd *cobra.Command, defaultRange int) services.SummaryRequest {
	rangeDays := f.rangeDay
	if !cmd.Flags().Changed("range") {
		rangeDays = defaultRange
	}
	return services.SummaryRequest{
		Kind:       f.kind,
		BusinessID: f.business,
		RangeDays:  rangeDays,
		Unit:       f.unit,
		Dimensions: f.dims,
	}
}
