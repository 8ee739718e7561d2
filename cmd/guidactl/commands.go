package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guida/internal/backend"
	"guida/internal/entities"
	"guida/internal/export"
	"guida/internal/mockdata"
)

func newSummaryCmd() *cobra.Command {
	var flags summaryFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Build a summary and print it as JSON",
		Example: `  guidactl summary --kind impressions --range 30 --dims device,location
  guidactl summary --kind transactions --business 0d9c... --unit month --range 365`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			sum, err := e.analytics().Compute(cmd.Context(), flags.request(cmd, e.cfg.DefaultRangeDays))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		flags  summaryFlags
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a summary as CSV or XLSX",
		Long:  "Export builds a summary and writes it to --out. Without --out the file is named after the kind, business and date; --out - writes to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			req := flags.request(cmd, e.cfg.DefaultRangeDays)
			sum, err := e.analytics().Compute(cmd.Context(), req)
			if err != nil {
				return err
			}

			if out == "-" {
				return export.Write(cmd.OutOrStdout(), sum, f)
			}
			if out == "" {
				out = export.Filename(strings.ToLower(req.Kind), req.BusinessID, sum, f)
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.Write(file, sum, f); err != nil {
				_ = file.Close()
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var (
		businesses int
		days       int
		seed       uint64
		appendData bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write deterministic demo data into the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if businesses < 1 || days < 1 {
				return fmt.Errorf("--business and --days must be positive")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			existing, err := entities.BusinessCollection(e.backend.Store).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list businesses: %w", err)
			}
			if len(existing) > 0 && !appendData {
				return fmt.Errorf("store already holds %d businesses; pass --append with a new --seed to add more", len(existing))
			}

			ds := mockdata.Generator{Seed: seed, Now: time.Now().In(e.cfg.Location())}.Generate(businesses, days)
			if err := mockdata.Store(cmd.Context(), e.backend.Store, ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d businesses, %d impressions, %d transactions, %d reviews into %s\n",
				len(ds.Businesses), len(ds.Impressions), len(ds.Transactions), len(ds.Reviews), e.backend.Type)
			if e.backend.Type != backend.SQLiteBackend {
				e.logger.Warn("Backend is not persistent, seeded data is lost on exit", "backend", e.backend.Type)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&businesses, "business", 6, "number of businesses to generate")
	cmd.Flags().IntVar(&days, "days", 90, "days of activity per business")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed; ids are derived from it")
	cmd.Flags().BoolVar(&appendData, "append", false, "seed even when the store is not empty")
	return cmd
}
