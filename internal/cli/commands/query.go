package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"ezvis/internal/api/handlers"
	"ezvis/internal/database"
	"ezvis/internal/database/repositories"

	"github.com/spf13/cobra"
)

// QueryOptions holds command-line options for the query command.
type QueryOptions struct {
	DBPath string
	Start  string
	End    string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <kind>",
		Short: "Run one dashboard query and print JSON",
		Long: `Run one query of the dashboard catalog against the store and print the
result as JSON, in the same shape the API returns.

Kinds:
  requests_over_time, bandwidth_over_time, top_hosts, status_codes,
  top_countries, hourly_heatmap, error_analysis, user_agents, top_paths

Bounds accept RFC 3339 or YYYY-MM-DD[THH:MM[:SS]] (read as UTC).
Start is inclusive, end is exclusive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "Database file (overrides DB_PATH)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "Inclusive lower bound on timestamp")
	cmd.Flags().StringVar(&opts.End, "end", "", "Exclusive upper bound on timestamp")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	kind, err := repositories.ParseKind(args[0])
	if err != nil {
		return err
	}
	tr, err := repositories.ParseTimeRange(opts.Start, opts.End)
	if err != nil {
		return err
	}

	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}

	db, err := database.NewReadOnlyConnection(databaseConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := repositories.NewStatsRepository(db, logger).Query(ctx, kind, tr)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(handlers.QueryResponse{
		Query: string(kind),
		Start: tr.Start,
		End:   tr.End,
		Rows:  rows,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
