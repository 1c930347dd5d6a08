// Command firesim runs the city fire and crime agent simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/firesim/internal/config"
	"github.com/talgya/firesim/internal/engine"
	"github.com/talgya/firesim/internal/entropy"
)

// options holds the flags shared by the subcommands.
type options struct {
	configPath string
	logLevel   string
	dbPath     string

	seed     int64
	scenario string
	days     int
	speed    string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "firesim",
		Short:         "City fire and crime agent simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(opts.logLevel)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML run configuration (defaults when empty)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite run archive path")

	rootCmd.AddCommand(runCmd(&opts))
	rootCmd.AddCommand(serveCmd(&opts))
	rootCmd.AddCommand(runsCmd(&opts))
	rootCmd.AddCommand(configCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}

// addRunFlags registers the flags that override configuration values.
func addRunFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.Int64Var(&opts.seed, "seed", 0, "random seed (0 draws one)")
	f.StringVar(&opts.scenario, "scenario", "", "NORMAL, RIOT, LARGE_EVENT or CRISIS")
	f.IntVar(&opts.days, "days", 0, "cycle length in days: 1, 7 or 30")
	f.StringVar(&opts.speed, "speed", "", "real-time pace: 1x, 2x or 4x")
}

// loadConfig reads the configuration file and applies flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Lookup("seed") != nil && f.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if f.Lookup("scenario") != nil && f.Changed("scenario") {
		cfg.Scenario = opts.scenario
	}
	if f.Lookup("days") != nil && f.Changed("days") {
		cfg.Days = opts.days
	}
	if f.Lookup("speed") != nil && f.Changed("speed") {
		cfg.Speed = opts.speed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// buildEngine turns a configuration into a ready engine.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	p.Seed = entropy.Seed(p.Seed)
	slog.Info("building city", "seed", p.Seed, "scenario", p.Scenario.String(),
		"days", p.Days, "grid", fmt.Sprintf("%dx%d", p.Width, p.Height))
	sim := engine.Build(p)
	return engine.NewEngine(sim, cfg.EngineSpeed()), nil
}
