package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowsim/internal/config"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/experiment"
	"github.com/san-kum/flowsim/internal/progress"
	"github.com/san-kum/flowsim/internal/storage"
)

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func newReporter(kind string, cancel func(), log *logrus.Entry) (progress.Reporter, error) {
	if kind == "auto" {
		kind = "log"
		if isTerminal(os.Stdout) {
			kind = "tty"
		}
	}
	switch kind {
	case "tty":
		// keep log lines from tearing the live view
		if logrus.GetLevel() == logrus.InfoLevel {
			logrus.SetLevel(logrus.WarnLevel)
		}
		return progress.NewTTY(os.Stdout, os.Stdin, cancel), nil
	case "log":
		return progress.NewLogReporter(log), nil
	case "none":
		return progress.Discard, nil
	default:
		return nil, fmt.Errorf("unknown progress display %q", kind)
	}
}

func runMetadata(cfg *config.Config) storage.RunMetadata {
	return storage.RunMetadata{
		Scenario: cfg.Scenario,
		Dt:       cfg.Dt,
		Ranks:    cfg.Ranks,
		Order:    cfg.Order,
		Grid:     [2]int{cfg.Grid.Nx, cfg.Grid.Ny},
		Params: map[string]float64{
			"f0":   cfg.Physics.F0,
			"csqr": cfg.Physics.Csqr,
			"ro":   cfg.Physics.Ro,
			"ah":   cfg.Physics.Ah,
		},
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logrus.WithField("component", "flowsim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reporter, err := newReporter(progressOut, cancel, log)
	if err != nil {
		return err
	}
	opts := []experiment.Option{experiment.WithLogger(log), experiment.WithReporter(reporter)}

	var spans *spanStats
	if traceSpans {
		tp, stats := newTracerProvider()
		defer tp.Shutdown(context.Background())
		spans = stats
		opts = append(opts, experiment.WithTracer(tp.Tracer("flowsim")))
	}

	exp, err := experiment.New(cfg, opts...)
	if err != nil {
		return err
	}
	out, err := exp.Run(ctx)
	if err != nil {
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			log.WithFields(logrus.Fields{"step": simErr.Step, "t": simErr.Time}).Error("simulation stopped")
		}
		return err
	}

	fmt.Printf("scenario: %s  ranks: %d  grid: %dx%d\n", cfg.Scenario, cfg.Ranks, cfg.Grid.Nx, cfg.Grid.Ny)
	fmt.Printf("steps: %d  t: %.4f  elapsed: %v\n\n", out.Steps, out.Time, out.Elapsed)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range []string{"energy_initial", "energy_final", "energy_drift", "max_cfl", "stability"} {
		fmt.Fprintf(w, "%s\t%.6g\n", name, out.Metrics[name])
	}
	w.Flush()
	fmt.Println()
	fmt.Print(out.Timers)

	if spans != nil {
		fmt.Println()
		if err := spans.Print(os.Stdout); err != nil {
			return err
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := runMetadata(cfg)
	meta.Steps, meta.Time, meta.Metrics = out.Steps, out.Time, out.Metrics
	runID, err := st.Save(meta, out.Series)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Balance.ReturnDetails = true
	log := logrus.WithField("component", "flowsim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp, err := experiment.New(cfg, experiment.WithLogger(log))
	if err != nil {
		return err
	}
	out, err := exp.Balance(ctx)
	if err != nil {
		return err
	}
	res := out.Result

	fmt.Printf("scenario: %s  ramp: %s  period: %g  steps/ramp: %d\n",
		cfg.Scenario, cfg.Balance.RampType, cfg.Balance.RampPeriod, out.RampSteps)
	fmt.Printf("stop: %s  passes: %d  elapsed: %v\n\n", res.Stop, res.Passes, out.Elapsed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITER\tCHANGE")
	errs := make([]float64, 0, len(res.Iterations))
	for _, it := range res.Iterations {
		fmt.Fprintf(w, "%d\t%.3e\n", it.Index, it.Error)
		errs = append(errs, it.Error)
	}
	w.Flush()
	if len(errs) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(errs, asciigraph.Height(8), asciigraph.Caption("change per iteration")))
	}

	fmt.Printf("\ndistance from initial state: %.6e\n", out.Distance)
	fmt.Printf("imbalance after %g: %.6e\n", cfg.Duration+float64(cfg.Steps)*cfg.Dt, out.Imbalance)
	if out.ControlEffort > 0 {
		fmt.Printf("mean ramp factor: %.4f\n", out.ControlEffort)
	}
	if errors.Is(res.Err, dynamo.ErrDiverging) {
		log.Warn("balancing stopped on a growing change; the last converging candidate was kept")
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := runMetadata(cfg)
	meta.Metrics = map[string]float64{
		"distance":       out.Distance,
		"imbalance":      out.Imbalance,
		"control_effort": out.ControlEffort,
	}
	runID, err := st.SaveBalance(meta, cfg.Balance.RampType, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}
