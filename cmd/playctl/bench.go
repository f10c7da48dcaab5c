package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
)

// BenchResult summarises the synchronous phase durations of repeated runs
type BenchResult struct {
	Runs   int
	Faults int
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

func newBenchCmd() *cobra.Command {
	var (
		runs int
		ui   bool
	)

	cmd := &cobra.Command{
		Use:   "bench FILE|-",
		Short: "Run a source repeatedly and report timing statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res, err := bench(cmd.Context(), source, ui, runs)
			if err != nil {
				return err
			}
			printBench(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&runs, "runs", "n", 20, "Number of runs")
	cmd.Flags().BoolVar(&ui, "ui", false, "Compile as UI code (JSX)")
	return cmd
}

// bench runs source n times in one playground. Timers are disabled so
// each sample is the transform plus synchronous phase.
func bench(ctx context.Context, source string, ui bool, n int) (BenchResult, error) {
	if n <= 0 {
		return BenchResult{}, errors.New("runs must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := sandbox.DefaultConfig()
	cfg.AsyncTimeout = 0
	p := playground.New(source, ui, playground.WithExecutor(sandbox.New(cfg)))
	defer p.Close()

	samples := make([]float64, 0, n)
	faults := 0
	for i := 0; i < n; i++ {
		start := time.Now()
		snap, err := p.Run(ctx)
		if err != nil {
			return BenchResult{}, err
		}
		samples = append(samples, float64(time.Since(start)))
		if snap.Fault != nil {
			faults++
		}
	}
	sort.Float64s(samples)

	return BenchResult{
		Runs:   n,
		Faults: faults,
		Mean:   time.Duration(stat.Mean(samples, nil)),
		StdDev: time.Duration(stat.PopStdDev(samples, nil)),
		P50:    time.Duration(stat.Quantile(0.5, stat.Empirical, samples, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil)),
		Max:    time.Duration(samples[len(samples)-1]),
	}, nil
}

func printBench(w io.Writer, r BenchResult) {
	fmt.Fprintf(w, "runs:   %d (%d faulted)\n", r.Runs, r.Faults)
	fmt.Fprintf(w, "mean:   %s ± %s\n", r.Mean, r.StdDev)
	fmt.Fprintf(w, "p50:    %s\n", r.P50)
	fmt.Fprintf(w, "p95:    %s\n", r.P95)
	fmt.Fprintf(w, "max:    %s\n", r.Max)
}
