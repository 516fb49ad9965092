package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Raam977/citius-scraper/internal/config"
	"github.com/Raam977/citius-scraper/internal/crawler"
	"github.com/Raam977/citius-scraper/internal/database"
	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/parser"
	"github.com/Raam977/citius-scraper/internal/report"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search insolvency notices and export the results",
		Long: `Search runs one query against the Citius insolvency notices portal.

Every result page is read and the full creditor list of each notice is
loaded. Records are exported to a CSV file with a JSON file next to it, and a
summary is printed in the selected format.

Examples:
  # Search by NIF/NIPC
  citius search --nif 515755230

  # Search by designation within a date range
  citius search --designacao "Empresa Exemplo" --data-inicio 2024-01-01 --data-fim 2024-06-30

  # Only the current court structure, Markdown summary, saved to history
  citius search --nif 515755230 --tribunal nova --format markdown --save

  # Run a saved search from .citius.yaml
  citius search --profile empresa

  # Keep every fetched page for analysis
  citius search --nif 515755230 --debug-dir ./dumps`,
		Args: cobra.NoArgs,
		RunE: runSearchCmd,
	}

	addCriteriaFlags(cmd)

	// Run limits
	cmd.Flags().Int("max-pages", config.DefaultMaxPages, "Maximum number of result pages")
	cmd.Flags().Duration("timeout", config.DefaultRunTimeout, "Timeout for the whole search (0 disables)")
	cmd.Flags().Duration("request-timeout", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Duration("delay", config.DefaultMinDelay, "Minimum delay between requests")
	cmd.Flags().Int("workers", config.DefaultWorkers, "Concurrent creditor list requests (1-4)")
	cmd.Flags().String("url", config.DefaultURL, "Search page URL")

	// Output
	cmd.Flags().StringP("format", "f", config.DefaultFormat, "Summary format: csv, json, markdown or text")
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile, "CSV export path (a .json file is written next to it; empty disables)")
	cmd.Flags().StringP("report", "r", "", "Write the summary to a file instead of stdout")
	cmd.Flags().String("debug-dir", "", "Write every fetched page to this directory")
	cmd.Flags().String("metrics-file", "", "Write request metrics in Prometheus text format to this file")
	cmd.Flags().Bool("save", false, "Save the search to the history database")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildSearchConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSearch(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildSearchConfig layers the search flags over the config file.
func buildSearchConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, file, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Criteria, err = criteriaFromFlags(cmd, file); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.RunTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("request-timeout") {
		if cfg.Timeout, err = flags.GetDuration("request-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.MinDelay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("url") {
		if cfg.URL, err = flags.GetString("url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.OutputFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("debug-dir") {
		if cfg.DebugDir, err = flags.GetString("debug-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("save") {
		if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
			return nil, err
		}
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newPaginator wires the fetcher, parser and expander for cfg.
func newPaginator(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*crawler.Paginator, error) {
	opts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMinDelay(cfg.MinDelay),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithMetrics(fetch.NewMetrics(reg)),
		fetch.WithExpiredMarkers(cfg.ExpiredMarkers...),
	}
	if cfg.DebugDir != "" {
		dumper, err := fetch.NewDumper(cfg.DebugDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetch.WithDumper(dumper))
		logger.Info("dumping fetched pages", "dir", dumper.Dir())
	}
	client := fetch.NewClient(cfg.URL, opts...)

	p, err := parser.New(cfg.URL, parser.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	var expander crawler.Expander
	if cfg.Workers == 1 {
		expander = crawler.NewSequential(client, p, logger)
	} else {
		expander = crawler.NewPool(client, p, cfg.Workers, logger)
	}

	return crawler.NewPaginator(client, p,
		crawler.WithLogger(logger),
		crawler.WithExpander(expander),
		crawler.WithMaxPages(cfg.MaxPages),
	), nil
}

// runSearch executes the search and writes every output. Records collected
// before a fatal error are still exported and saved; the error is returned
// afterwards.
func runSearch(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	paginator, err := newPaginator(cfg, registry, logger)
	if err != nil {
		return err
	}

	result := model.NewSearchResult(cfg.Criteria)
	records, diag, runErr := paginator.Run(ctx, cfg.Criteria, crawler.Limits{
		MaxPages: cfg.MaxPages,
		Timeout:  cfg.RunTimeout,
	})

	var re *crawler.RunError
	if errors.As(runErr, &re) && re.Stage == crawler.StageValidate {
		return runErr
	}

	result.Records = records
	result.Diagnostics = diag
	if runErr != nil {
		result.Error = runErr.Error()
	}

	if err := writeOutputs(ctx, cfg, result, registry, stdout, stderr); err != nil {
		if runErr != nil {
			logger.Error("failed to write outputs", "error", err)
			return runErr
		}
		return err
	}

	return runErr
}

// writeOutputs writes the export files, the history entry, the summary and
// the metrics file. The run is saved before the summary so that it carries
// the run ID.
func writeOutputs(ctx context.Context, cfg *config.Config, result *model.SearchResult, registry *prometheus.Registry, stdout, stderr io.Writer) error {
	if cfg.OutputFile != "" && len(result.Records) > 0 {
		jsonPath, err := report.SaveCSV(result, cfg.OutputFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Saved %d record(s) to %s and %s\n", len(result.Records), cfg.OutputFile, jsonPath)
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		// A cancelled run is still worth keeping.
		id, err := db.SaveSearch(context.WithoutCancel(ctx), result)
		if err != nil {
			return fmt.Errorf("failed to save search: %w", err)
		}
		fmt.Fprintf(stderr, "Saved search %s to history\n", id)
	}

	if err := writeSummary(cfg, result, stdout); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

// writeSummary renders the result to the report file or stdout.
func writeSummary(cfg *config.Config, result *model.SearchResult, stdout io.Writer) error {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	out := stdout
	if cfg.ReportFile != "" {
		f, err := report.CreateFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	if format == report.FormatText {
		// Verbose runs list every creditor and the empty sections too.
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose), report.WithShowEmpty(cfg.Verbose))
	} else if w, err = report.NewWriter(format, out, getVersion()); err != nil {
		return err
	}
	if _, err := w.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
