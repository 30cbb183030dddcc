package commands

import (
	"fmt"
	"strconv"
	"time"

	"ezvis/internal/database"
	"ezvis/internal/database/repositories"
	"ezvis/internal/enrichment"
	"ezvis/internal/ingestion"
	"ezvis/internal/parser/ezproxy"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ImportOptions holds command-line options for the import command.
type ImportOptions struct {
	DBPath    string
	BatchSize int
	Quiet     bool
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <log-file>...",
		Short: "Import EZproxy access logs into the store",
		Long: `Import one or more EZproxy access log files into the SQLite store.

Files ending in .gz or .zst are decompressed on the fly. Malformed lines are
counted and skipped. Re-importing a file appends its records again.

Exit codes:
  0 - All files imported
  1 - A file could not be read or a batch could not be stored
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "Database file (overrides DB_PATH)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Records per batch append (overrides IMPORT_BATCH_SIZE)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Print totals only")

	return cmd
}

func runImport(cmd *cobra.Command, args []string, opts *ImportOptions) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	if opts.BatchSize < 0 {
		return fmt.Errorf("invalid --batch-size %d", opts.BatchSize)
	}
	if opts.BatchSize > 0 {
		cfg.Import.BatchSize = opts.BatchSize
	}

	db, err := database.NewConnection(databaseConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.EnsureSchema(db, logger); err != nil {
		return fmt.Errorf("preparing schema: %w", err)
	}

	// GeoIP is optional; imports run without it
	var resolver ingestion.CountryResolver
	if cfg.GeoIP.Enabled {
		geoIP, err := enrichment.NewGeoIPEnricher(cfg.GeoIP.CountryDBPath, 0, logger)
		if err != nil {
			logger.Warn("GeoIP enricher initialization failed, continuing without GeoIP", logger.Args("error", err))
		} else {
			defer geoIP.Close()
			resolver = geoIP
			logger.Info("GeoIP enrichment enabled")
		}
	}

	importer := ingestion.NewImporter(
		ezproxy.NewParser(logger),
		repositories.NewRequestRepository(db, logger),
		repositories.NewImportRunRepository(db, logger),
		resolver,
		logger,
		ingestion.Options{
			BatchSize:      cfg.Import.BatchSize,
			ProgressEvery:  cfg.Import.ProgressEvery,
			FailureSamples: cfg.Import.FailureSamples,
		},
	)

	report := ingestion.NewCoordinator(importer, logger).ImportFiles(args)
	printReport(cmd, report, opts.Quiet)

	if report.HasErrors() {
		ExitCode = 1
	}
	return nil
}

func printReport(cmd *cobra.Command, report *ingestion.Report, quiet bool) {
	out := cmd.OutOrStdout()

	if !quiet {
		data := pterm.TableData{{"File", "Lines", "Imported", "Failed", "Batches", "Status"}}
		for _, f := range report.Files {
			var lines, imported, failed int64
			var batches int
			if f.Summary != nil {
				lines, imported, failed, batches = f.Summary.Lines, f.Summary.Imported, f.Summary.Failed, f.Summary.Batches
			}
			status := "ok"
			if f.Err != nil {
				status = f.Err.Error()
			}
			data = append(data, []string{
				f.Path,
				strconv.FormatInt(lines, 10),
				strconv.FormatInt(imported, 10),
				strconv.FormatInt(failed, 10),
				strconv.Itoa(batches),
				status,
			})
		}
		for _, path := range report.Skipped {
			data = append(data, []string{path, "-", "-", "-", "-", "skipped"})
		}

		if table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender(); err == nil {
			fmt.Fprintln(out, table)
		}

		for _, f := range report.Files {
			if f.Summary == nil || len(f.Summary.Failures) == 0 {
				continue
			}
			fmt.Fprintf(out, "\nSample failures in %s:\n", f.Path)
			for _, s := range f.Summary.Failures {
				fmt.Fprintf(out, "  line %d [%s] %s\n", s.LineNumber, s.Reason, preview(s.Line, 120))
			}
		}
	}

	fmt.Fprintf(out, "\nImported %d records, %d malformed lines skipped, %d file(s) in %s\n",
		report.Imported, report.Failed, len(report.Files), report.Duration.Round(time.Millisecond))
}

func preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
