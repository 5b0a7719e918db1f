package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowsim/internal/config"
)

var (
	dataDir    string
	logLevel   string
	logFormat  string
	traceSpans bool

	configFile  string
	preset      string
	scenario    string
	dt          float64
	duration    float64
	steps       int
	ranks       int
	gridN       int
	ro          float64
	progressOut string
	noSave      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "flowsim",
		Short:        "rotating shallow water simulation and optimal balance",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".flowsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&progressOut, "progress", "auto", "progress display (auto, tty, log, none)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&traceSpans, "trace", false, "record module spans and print a summary")

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "balance the initial state of a scenario",
		Args:  cobra.NoArgs,
		RunE:  runBalance,
	}
	addRunFlags(balanceCmd)
	balanceCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the result")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the series of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "energy spectrum and trend of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark a scenario over rank counts",
		Args:  cobra.NoArgs,
		RunE:  benchScenario,
	}
	addRunFlags(benchCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-18s %s  ranks=%d  grid=%dx%d\n", name, p.Scenario, p.Ranks, p.Grid.Nx, p.Grid.Ny)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a config file (yaml or toml) from a preset or the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	rootCmd.AddCommand(runCmd, balanceCmd, listCmd, plotCmd, exportCmd, analyzeCmd, benchCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&scenario, "scenario", "", "initial condition (jet, bump)")
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 0, "duration")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps")
	cmd.Flags().IntVar(&ranks, "ranks", 0, "number of ranks")
	cmd.Flags().IntVar(&gridN, "n", 0, "grid points per axis")
	cmd.Flags().Float64Var(&ro, "ro", -1, "rossby number")
}

func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	switch strings.ToLower(logFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	return nil
}

// loadConfig resolves the config from preset, file, environment and
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	default:
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("scenario") {
		cfg.Scenario = scenario
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration, cfg.Steps = duration, 0
	}
	if flags.Changed("steps") {
		cfg.Steps, cfg.Duration = steps, 0
	}
	if flags.Changed("ranks") {
		cfg.Ranks = ranks
	}
	if flags.Changed("n") {
		cfg.Grid.Nx, cfg.Grid.Ny = gridN, gridN
	}
	if flags.Changed("ro") {
		cfg.Physics.Ro = ro
	}
	return cfg, nil
}
