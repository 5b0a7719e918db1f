package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowsim/internal/experiment"
)

func benchScenario(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logrus.WithField("component", "bench")
	// energy logging would dominate short runs
	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)
	quiet.SetOutput(os.Stderr)

	rankCounts := []int{1, 2, 4}
	if cmd.Flags().Changed("ranks") {
		rankCounts = []int{base.Ranks}
	}

	fmt.Printf("benchmarking %s on %dx%d\n\n", base.Scenario, base.Grid.Nx, base.Grid.Ny)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANKS\tSTEPS\tTIME\tSTEPS/SEC\tDRIFT")

	for _, n := range rankCounts {
		cfg := *base
		cfg.Ranks = n
		exp, err := experiment.New(&cfg, experiment.WithLogger(logrus.NewEntry(quiet)))
		if err != nil {
			return err
		}
		out, err := exp.Run(context.Background())
		if err != nil {
			log.WithError(err).WithField("ranks", n).Error("bench run failed")
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%.2e\n",
			n, out.Steps, out.Elapsed, float64(out.Steps)/out.Elapsed.Seconds(), out.Metrics["energy_drift"])
	}

	return w.Flush()
}
