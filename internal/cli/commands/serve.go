package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ezvis/internal/api"
	"ezvis/internal/api/handlers"
	"ezvis/internal/banner"
	"ezvis/internal/database"
	"ezvis/internal/database/repositories"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ServeOptions holds command-line options for the serve command.
type ServeOptions struct {
	DBPath   string
	Bind     string
	NoBanner bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query catalog over HTTP",
		Long: `Serve the dashboard queries as JSON.

Endpoints:
  GET /health
  GET /api/<kind>?start=...&end=...
  GET /api/imports

The store is opened read-only for queries. SIGINT or SIGTERM shuts the
server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "Database file (overrides DB_PATH)")
	cmd.Flags().StringVar(&opts.Bind, "bind", "", "Listen address host:port (overrides SERVER_HOST/SERVER_PORT)")
	cmd.Flags().BoolVar(&opts.NoBanner, "no-banner", false, "Do not print the startup banner")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	addr := cfg.Server.Addr()
	if opts.Bind != "" {
		addr = opts.Bind
	}

	if !opts.NoBanner {
		banner.Print(Version)
	}

	// Create the schema once so an empty store serves empty results
	rw, err := database.NewConnection(databaseConfig(cfg), logger)
	if err != nil {
		return err
	}
	if err := database.EnsureSchema(rw, logger); err != nil {
		database.Close(rw)
		return fmt.Errorf("preparing schema: %w", err)
	}
	database.Close(rw)

	db, err := database.NewReadOnlyConnection(databaseConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolMonitor := database.NewPoolMonitor(sqlDB, logger, 30*time.Second, 0.8)
	poolMonitor.Start(ctx)
	defer poolMonitor.Stop()

	statsHandler := handlers.NewStatsHandler(
		repositories.NewStatsRepository(db, logger),
		repositories.NewImportRunRepository(db, logger),
		logger,
	)
	webServer := api.NewServer(&api.Config{
		Addr:       addr,
		Production: cfg.Server.Production,
		Pool:       poolMonitor,
	}, statsHandler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- webServer.Run()
	}()

	logger.Info("ezvis is serving", logger.Args("url", pterm.Sprintf("http://%s", addr), "db", cfg.Database.Path))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithCaller().Error("Server forced to shutdown", logger.Args("error", err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}
