package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowsim/internal/analysis"
	"github.com/san-kum/flowsim/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSCENARIO\tTIME\tRANKS\tGRID\tDT\tRESULT")

	for _, run := range runs {
		result := fmt.Sprintf("drift=%.2e", run.Metrics["energy_drift"])
		if run.Balance != nil {
			result = fmt.Sprintf("%s after %d", run.Balance.Stop, run.Balance.Passes)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%dx%d\t%.4g\t%s\n",
			run.ID,
			run.Kind,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ranks,
			run.Grid[0], run.Grid[1],
			run.Dt,
			result,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	if series.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", series.Len())

	for _, name := range series.Names {
		graph := asciigraph.Plot(series.Column(name),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.Kind != storage.KindRun {
		return fmt.Errorf("%s is a %s record, not a model run", runID, meta.Kind)
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	energy := series.Column("energy")
	if len(energy) == 0 {
		return fmt.Errorf("no energy samples")
	}

	fmt.Printf("energy analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n\n", meta.Scenario)

	sum, err := analysis.Summarize(series.Times, energy)
	if err != nil {
		return err
	}
	fmt.Printf("mean: %.8g  stddev: %.3e  range: [%.8g, %.8g]\n", sum.Mean, sum.StdDev, sum.Min, sum.Max)
	fmt.Printf("trend: %.3e per unit time\n\n", sum.Slope)

	ps := analysis.PowerSpectrum(energy)
	if len(ps) > 1 {
		graph := asciigraph.Plot(ps,
			asciigraph.Height(15),
			asciigraph.Width(80),
			asciigraph.Caption("energy spectrum"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	sampleDt := series.Times[1] - series.Times[0]
	period, err := analysis.DominantPeriod(energy, sampleDt)
	if errors.Is(err, analysis.ErrTooShort) {
		fmt.Println("too few samples for a period estimate")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("dominant period: %.4f\n", period)
	return nil
}
