package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-logfmt/logfmt"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/polystore/polystore/pkg/engine"
)

// addOptimizeCommand adds the optimize command to the application.
func addOptimizeCommand(app *kingpin.Application, flags *globalFlags) {
	cmd := app.Command("optimize", "Print a plan before and after optimization.")
	file := cmd.Arg("plan", "Plan file").Required().ExistingFile()

	cmd.Action(func(_ *kingpin.ParseContext) error {
		cfg, err := loadConfig(flags.configFile, flags)
		if err != nil {
			exitWithErr(err)
		}
		if err := optimizePlan(context.Background(), cfg, newLogger(flags.logLevel), *file, os.Stdout); err != nil {
			exitWithErr(err)
		}
		return nil
	})
}

// addRunCommand adds the run command to the application.
func addRunCommand(app *kingpin.Application, flags *globalFlags) {
	cmd := app.Command("run", "Optimize a plan and print the rows it produces as logfmt.")
	file := cmd.Arg("plan", "Plan file").Required().ExistingFile()
	explain := cmd.Flag("explain", "Print the optimized plan before the rows.").Bool()

	cmd.Action(func(_ *kingpin.ParseContext) error {
		cfg, err := loadConfig(flags.configFile, flags)
		if err != nil {
			exitWithErr(err)
		}
		if err := runPlan(context.Background(), cfg, newLogger(flags.logLevel), *file, *explain, os.Stdout); err != nil {
			exitWithErr(err)
		}
		return nil
	})
}

func readPlanFile(path string) (*engine.PlanFile, *engine.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	pf, err := engine.DecodePlanFile(f)
	if err != nil {
		return nil, nil, err
	}
	plan, err := pf.BuildPlan()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build plan: %w", err)
	}
	return pf, plan, nil
}

func optimizePlan(ctx context.Context, cfg Config, logger log.Logger, path string, w io.Writer) error {
	_, plan, err := readPlanFile(path)
	if err != nil {
		return err
	}

	e, err := engine.New(engine.Params{
		Logger:     logger,
		Registerer: prometheus.NewRegistry(),
		Config:     cfg.Engine,
		Storage:    engine.NewMemoryStorage(),
	})
	if err != nil {
		return err
	}

	printPlan(w, "Plan:", plan)
	res, err := e.Optimize(ctx, plan)
	if err != nil {
		return err
	}
	printPlan(w, "Optimized plan:", plan)

	bold := color.New(color.Bold)
	bold.Fprintln(w, "Applied rules:")
	for i, name := range res.Applications {
		fmt.Fprintf(w, "\t%d. %s\n", i+1, name)
	}
	if !res.Converged {
		color.New(color.FgYellow).Fprintf(w, "\titeration budget of %d used up before the plan converged\n", cfg.Engine.Optimizer.MaxIterations)
	}
	return nil
}

func runPlan(ctx context.Context, cfg Config, logger log.Logger, path string, explain bool, w io.Writer) error {
	pf, plan, err := readPlanFile(path)
	if err != nil {
		return err
	}

	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	storage, err := pf.LoadStorage(mem, filepath.Dir(path))
	if err != nil {
		return err
	}
	defer storage.Close()
	level.Info(logger).Log(
		"msg", "loaded fragments",
		"fragments", len(pf.Fragments),
		"size", humanize.Bytes(uint64(mem.CurrentAlloc())),
	)

	e, err := engine.New(engine.Params{
		Logger:     logger,
		Registerer: prometheus.NewRegistry(),
		Config:     cfg.Engine,
		Storage:    storage,
	})
	if err != nil {
		return err
	}

	res, err := e.Execute(ctx, plan)
	if err != nil {
		return err
	}
	if explain {
		printPlan(w, "Optimized plan:", plan)
	}
	if err := writeRows(w, res); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "printed rows", "rows", humanize.Comma(int64(len(res.Rows))))
	return nil
}

func printPlan(w io.Writer, title string, plan *engine.Plan) {
	color.New(color.Bold).Fprintln(w, title)
	for _, line := range strings.Split(strings.TrimRight(engine.PrintPlan(plan), "\n"), "\n") {
		fmt.Fprintf(w, "\t%s\n", line)
	}
}

// writeRows writes one logfmt record per row, keyed by qualified field name.
func writeRows(w io.Writer, res engine.Result) error {
	enc := logfmt.NewEncoder(w)
	for _, row := range res.Rows {
		for i := 0; i < res.Header.Len(); i++ {
			if err := enc.EncodeKeyval(res.Header.Field(i).QualifiedName(), row.Value(i)); err != nil {
				return err
			}
		}
		if err := enc.EndRecord(); err != nil {
			return err
		}
	}
	return nil
}
