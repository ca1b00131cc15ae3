package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"hmdamart/internal/geography"
	"hmdamart/internal/incremental"
	runhandler "hmdamart/internal/incremental/handler"
	"hmdamart/internal/platform/config"
	"hmdamart/internal/platform/httpserver"
	"hmdamart/internal/platform/logger"
	"hmdamart/internal/platform/metrics"
	tierhandler "hmdamart/internal/tiering/handler"
	httptransport "hmdamart/internal/transport/http"
)

// rootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type rootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "hmdamart",
		Short: "Classify HMDA loan records and materialize them by reporting year",
		Long: `hmdamart classifies raw HMDA loan application records into race,
ethnicity, income and tract categories and appends each new reporting year to
a partitioned derived table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			opts.cfg = cfg
			opts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log level (debug|info|warn|error)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRematerializeCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newTiersCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Materialize every source year above the derived store's watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				res, err := a.controller.Run(ctx)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
}

func newRematerializeCommand(opts *rootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "rematerialize",
		Short: "Delete one reporting year from the derived store and materialize it again",
		Example: `  hmdamart rematerialize --year 2019
  hmdamart rematerialize --year 2019 --config hmdamart.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if year <= 0 {
				return fmt.Errorf("--year must be positive, got %d", year)
			}
			return withPipeline(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				res, err := a.controller.Rematerialize(ctx, year)
				return printResult(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "reporting year to rebuild (required)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newTiersCommand(opts *rootOptions) *cobra.Command {
	var (
		msa  string
		year int
		mode string
	)
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the minority tier of every tract in one MSA/MD and year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := geography.ParseMode(mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a := newApp(opts.cfg, opts.logger)
			defer a.Close()
			if err := a.openStore(ctx); err != nil {
				return err
			}
			res, err := a.tiers.TierRegion(ctx, msa, year, m)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tierhandler.FromRegion(res))
		},
	}
	cmd.Flags().StringVar(&msa, "msa", "", "MSA/MD code (required)")
	cmd.Flags().IntVar(&year, "year", 0, "reporting year (required)")
	cmd.Flags().StringVar(&mode, "mode", string(geography.ModeQuartile), "tiering strategy (quartile|fixed)")
	_ = cmd.MarkFlagRequired("msa")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the reporting years present in the derived store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := newApp(opts.cfg, opts.logger)
			defer a.Close()
			if err := a.openStore(ctx); err != nil {
				return err
			}
			parts, err := a.derived.Partitions(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), runhandler.FromPartitions(parts))
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run triggers, status, tier lookups, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				return serve(ctx, a, runOnStart)
			})
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "start an incremental run once the server is listening")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	log := a.logger
	runs := runhandler.New(ctx, a.controller, a.derived, log)
	router := httptransport.NewRouter(httptransport.Options{
		Logger:   log,
		Metrics:  metrics.New(a.registry),
		Gatherer: a.registry,
		Timeout:  a.cfg.Server.RequestTimeout,
		Checks:   a.checks(),
	}, runs, tierhandler.New(a.tiers, log))

	srv := httpserver.New(a.cfg.Server, router)
	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "starting hmdamart", "addr", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if runOnStart {
		go func() {
			if _, err := a.controller.Run(ctx); err != nil {
				log.ErrorContext(ctx, "startup run failed", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	// Background runs observe ctx and roll back their open partition.
	runs.Wait()
	return nil
}

// withPipeline opens the store and pipeline, calls fn, and closes everything.
func withPipeline(ctx context.Context, opts *rootOptions, fn func(context.Context, *app) error) error {
	a := newApp(opts.cfg, opts.logger)
	defer func() {
		if err := a.Close(); err != nil {
			opts.logger.Warn("close failed", "error", err)
		}
	}()
	if err := a.openStore(ctx); err != nil {
		return err
	}
	if err := a.openPipeline(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// printResult writes the run report even when the run failed part-way, so
// committed years stay visible to the operator.
func printResult(w io.Writer, res *incremental.RunResult, err error) error {
	if res != nil {
		if werr := writeJSON(w, runhandler.FromResult(res, err)); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
