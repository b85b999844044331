// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/cratedigger/internal/config"
	"github.com/tomtom215/cratedigger/internal/logging"
	"github.com/tomtom215/cratedigger/internal/recommend"
	"github.com/tomtom215/cratedigger/internal/supervisor"
	"github.com/tomtom215/cratedigger/internal/supervisor/services"
)

// flags holds the parsed command line.
type flags struct {
	configPath string
	collection string
	userID     string
	force      bool
}

// newRootCmd builds the command tree. run receives the subcommand's flags
// and whether serve mode was selected.
func newRootCmd(run func(f flags, serve bool) error) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "recommender",
		Short:         "Cratedigger record recommendations",
		Long:          "Generates record recommendations from an owned collection and keeps the metadata cache warm.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&f.configPath, "config", "", "path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&f.collection, "collection", "", "owned-items JSON file (overrides catalog.path)")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate recommendations once and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return run(f, false)
		},
	}
	generateCmd.Flags().StringVar(&f.userID, "user", "", "user ID to generate for (default: warmer.user_id)")
	generateCmd.Flags().BoolVar(&f.force, "force", false, "bypass the cached result")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the warmer, refresh loop and HTTP API under supervision",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return run(f, true)
		},
	}

	rootCmd.AddCommand(generateCmd, serveCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		logging.Error().Err(err).Msg("recommender failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func run(f flags, serveMode bool) error {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if f.collection != "" {
		cfg.Catalog.Path = f.collection
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.WithComponent("recommender")

	a, err := newApp(cfg, serveMode, logger)
	if err != nil {
		return err
	}

	if serveMode {
		err = serve(a)
		a.Close()
		return err
	}
	defer a.Close()
	return generateOnce(a, f, os.Stdout)
}

// generateOnce runs one generation for a user and writes the result as
// indented JSON.
func generateOnce(a *app, f flags, out io.Writer) error {
	if a.cfg.Catalog.Path == "" {
		return errors.New("no collection: pass --collection or set catalog.path")
	}
	userID := f.userID
	if userID == "" {
		userID = a.cfg.Warmer.UserID
	}
	if userID == "" {
		return errors.New("no user: pass --user or set warmer.user_id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := recommend.NewFileCatalog(a.cfg.Catalog.Path)
	result := a.engine.GenerateForUser(ctx, catalog, userID, recommend.Options{ForceRefresh: f.force})

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("generation failed: %s: %s", result.Reason, result.Error)
	}
	return nil
}

// serve runs the supervisor tree until SIGINT or SIGTERM.
func serve(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), buildTreeConfig(a.cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	var catalog recommend.Catalog
	if a.cfg.Catalog.Path != "" {
		catalog = recommend.NewFileCatalog(a.cfg.Catalog.Path)
	}

	count := addServices(tree, a, catalog)
	if count == 0 {
		return errors.New("nothing to serve: enable warmer, refresh or set server.addr")
	}

	a.logger.Info().Int("services", count).Msg("Starting supervisor tree")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, rErr := tree.UnstoppedServiceReport(); rErr == nil && len(report) > 0 {
		a.logger.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	a.logger.Info().Msg("Shutdown complete")
	return nil
}

// addServices registers the warmer, refresh loop and API server that the
// configuration enables and returns how many were added.
func addServices(tree *supervisor.SupervisorTree, a *app, catalog recommend.Catalog) int {
	n := 0
	if a.warmer != nil {
		tree.AddCacheService(a.warmer)
		n++
	}
	if a.cfg.Refresh.Enabled && catalog != nil {
		tree.AddCacheService(services.NewRefreshService(a.engine, catalog, services.RefreshServiceConfig{
			Users:        a.cfg.Refresh.Users,
			RunOnStartup: a.cfg.Refresh.RunOnStartup,
			Interval:     a.cfg.Refresh.Interval,
			Timeout:      a.cfg.Refresh.Timeout,
		}, a.logger))
		n++
	}
	if a.cfg.Server.Addr != "" {
		tree.AddAPIService(services.NewAPIService(a.apiServer(catalog), services.APIServiceConfig{
			Addr:         a.cfg.Server.Addr,
			DrainTimeout: a.cfg.Server.ShutdownTimeout,
		}, a.logger))
		n++
	}
	return n
}
