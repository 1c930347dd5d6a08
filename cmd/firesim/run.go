package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/firesim/internal/api"
	"github.com/talgya/firesim/internal/engine"
	"github.com/talgya/firesim/internal/persistence"
)

func runCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation to the end of its cycle and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			db, err := openArchive(opts.dbPath)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			if err := eng.RunToEnd(ctx); err != nil {
				return fmt.Errorf("run interrupted at tick %d: %w", eng.Tick(), err)
			}

			out := cmd.OutOrStdout()
			eng.View(func(sim *engine.Simulation) { printSummary(out, sim, time.Since(start)) })
			if db == nil {
				return nil
			}
			run, err := archive(db, eng)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Archived as run %s\n", run.ID)
			return nil
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func serveCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation in real time behind the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			db, err := openArchive(opts.dbPath)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				eng.OnEnd = func(uint64) {
					if _, err := archive(db, eng); err != nil {
						slog.Error("archive failed", "error", err)
					}
				}
			}

			adminKey := os.Getenv("FIRESIM_ADMIN_KEY")
			if adminKey == "" {
				slog.Warn("FIRESIM_ADMIN_KEY not set, control endpoint will be disabled")
			}
			srv := &api.Server{Eng: eng, DB: db, Addr: addr, AdminKey: adminKey}
			srv.Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Starting simulation... (Ctrl+C to stop)")
			err = serveLoop(ctx, eng)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				slog.Error("HTTP shutdown failed", "error", serr)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

// serveLoop runs the engine in real time. When a cycle ends it waits for a
// reset from the control endpoint and carries on.
func serveLoop(ctx context.Context, eng *engine.Engine) error {
	for {
		if err := eng.Run(ctx); err != nil {
			return err
		}
		slog.Info("cycle complete, waiting for reset", "tick", eng.Tick())

		poll := time.NewTicker(250 * time.Millisecond)
		for eng.Ended() {
			select {
			case <-ctx.Done():
				poll.Stop()
				return ctx.Err()
			case <-poll.C:
			}
		}
		poll.Stop()
	}
}

func runsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.dbPath == "" {
				return errors.New("--db is required")
			}
			db, err := persistence.Open(opts.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

// openArchive opens the run archive, or returns nil when none is configured.
func openArchive(path string) (*persistence.DB, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("run archive opened", "path", path)
	return db, nil
}

func archive(db *persistence.DB, eng *engine.Engine) (persistence.Run, error) {
	var (
		run persistence.Run
		err error
	)
	eng.View(func(sim *engine.Simulation) { run, err = db.SaveRun(sim, time.Now()) })
	if err != nil {
		return persistence.Run{}, fmt.Errorf("archive run: %w", err)
	}
	return run, nil
}
