package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bher20/avoidedcost/internal/batch"
	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/report"
	"github.com/bher20/avoidedcost/internal/storage"
)

type runFlags struct {
	input            string
	output           string
	format           string
	elecDetail       string
	gasDetail        string
	elecComponents   string
	gasComponents    string
	elecAggregateBy  string
	gasAggregateBy   string
	concurrency      int
	continueOnError  bool
	joinOnValueCurve bool
	save             bool
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute TRC and PAC benefits for a batch of projects",
		Long: "Computes every project of --input, or of the stored project table when no\n" +
			"input is given, and writes the portfolio table with a final Totals row.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("concurrency") {
				a.cfg.Concurrency = f.concurrency
			}
			if cmd.Flags().Changed("continue-on-error") {
				a.cfg.ContinueOnError = f.continueOnError
			}
			if cmd.Flags().Changed("join-on-value-curve") {
				a.cfg.JoinOnValueCurve = f.joinOnValueCurve
			}
			return a.run(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "project CSV (\"-\" for stdin); defaults to the stored project table")
	fl.StringVarP(&f.output, "output", "o", "-", "portfolio output file (\"-\" for stdout)")
	fl.StringVar(&f.format, "format", "csv", "portfolio output format: csv or json")
	fl.StringVar(&f.elecDetail, "elec-detail", "", "write hourly electric benefits to this file")
	fl.StringVar(&f.gasDetail, "gas-detail", "", "write quarterly gas benefits to this file")
	fl.StringVar(&f.elecComponents, "elec-components", "", "electric components in detail output (default all)")
	fl.StringVar(&f.gasComponents, "gas-components", "", "gas components in detail output (default all)")
	fl.StringVar(&f.elecAggregateBy, "elec-aggregate-by", "", "sum electric detail by "+strings.Join(report.ElecAggregateColumns, ","))
	fl.StringVar(&f.gasAggregateBy, "gas-aggregate-by", "", "sum gas detail by "+strings.Join(report.GasAggregateColumns, ","))
	fl.IntVar(&f.concurrency, "concurrency", 1, "projects computed at once")
	fl.BoolVar(&f.continueOnError, "continue-on-error", false, "report failing projects instead of aborting")
	fl.BoolVar(&f.joinOnValueCurve, "join-on-value-curve", false, "select avoided costs by each project's value_curve_name")
	fl.BoolVar(&f.save, "save", false, "store the run in run_results")
	return cmd
}

type detailSpec struct {
	elecComps []calc.ElecComponent
	gasComps  []calc.GasComponent
	elecBy    []string
	gasBy     []string
}

func parseDetail(f runFlags) (detailSpec, error) {
	var d detailSpec
	var err error
	if d.elecComps, err = calc.ParseElecComponents(f.elecComponents); err != nil {
		return d, err
	}
	if d.gasComps, err = calc.ParseGasComponents(f.gasComponents); err != nil {
		return d, err
	}
	if d.elecBy, err = report.ParseAggregateColumns(f.elecAggregateBy, report.ElecAggregateColumns); err != nil {
		return d, err
	}
	if d.gasBy, err = report.ParseAggregateColumns(f.gasAggregateBy, report.GasAggregateColumns); err != nil {
		return d, err
	}
	return d, nil
}

func readInput(ctx context.Context, st storage.Storage, input string) (*batch.Batch, error) {
	switch input {
	case "":
		stored, err := st.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		return batch.FromProjects(engine.ProjectsFrom(stored))
	case "-":
		return batch.ReadCSV(os.Stdin)
	}
	fh, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return batch.ReadCSV(fh)
}

// checkTables fails with every required table that has no rows. The project
// table only matters when projects come from storage.
func checkTables(ctx context.Context, st storage.Storage, fromStorage bool) error {
	empty, err := storage.EmptyTables(ctx, st)
	if err != nil {
		return err
	}
	var missing []string
	for _, t := range empty {
		if t == storage.TableProjectInfo && !fromStorage {
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) > 0 {
		return fmt.Errorf("no rows in %s; load them with `avoidedcost load`", strings.Join(missing, ", "))
	}
	return nil
}

func create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (a *app) run(ctx context.Context, f runFlags) error {
	if f.format != "csv" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	detail, err := parseDetail(f)
	if err != nil {
		return err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return err
	}

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := checkTables(ctx, st, f.input == ""); err != nil {
		return err
	}
	b, err := readInput(ctx, st, f.input)
	if err != nil {
		return err
	}
	shapes, err := engine.LoadShapeTableFrom(ctx, st)
	if err != nil {
		return err
	}

	res, err := a.compute(ctx, st, shapes, opts, b, f, detail)
	if err != nil {
		return err
	}

	rows := engine.Portfolio(b, res)
	out, err := create(f.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if f.format == "json" {
		err = report.WritePortfolioJSON(out, rows)
	} else {
		err = report.WritePortfolioCSV(out, b.Header, rows)
	}
	if err != nil {
		return fmt.Errorf("write portfolio: %w", err)
	}

	if f.save {
		snap := report.NewSnapshot("cli", rows, res)
		if err := report.SaveSnapshot(ctx, st, snap); err != nil {
			return err
		}
		slog.Info("run stored", "id", snap.ID)
	}
	for _, fl := range res.Failures {
		slog.Warn("project skipped", "id", fl.ID, "err", fl.Err)
	}
	return nil
}

// compute streams detail rows straight to their files when no aggregation
// is requested and runs sequentially; otherwise it keeps them for the
// aggregation pass.
func (a *app) compute(ctx context.Context, st storage.Storage, shapes *calc.LoadShapeTable, opts engine.Options, b *batch.Batch, f runFlags, d detailSpec) (*engine.Result, error) {
	wantDetail := f.elecDetail != "" || f.gasDetail != ""
	src := engine.StorageSource{Storage: st}

	if !wantDetail {
		return engine.New(src, shapes, opts).Run(ctx, b.Projects)
	}

	elecOut, gasOut := io.Discard, io.Discard
	if f.elecDetail != "" {
		fh, err := os.Create(f.elecDetail)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		elecOut = fh
	}
	if f.gasDetail != "" {
		fh, err := os.Create(f.gasDetail)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		gasOut = fh
	}

	if len(d.elecBy) == 0 && len(d.gasBy) == 0 && opts.Concurrency <= 1 {
		ew := report.NewElecDetailWriter(elecOut, d.elecComps)
		gw := report.NewGasDetailWriter(gasOut, d.gasComps)
		res, err := engine.New(src, shapes, opts).Stream(ctx, b.Projects, func(r *engine.ProjectResult) error {
			if err := ew.Write(r.Elec); err != nil {
				return err
			}
			return gw.Write(r.Gas)
		})
		if err != nil {
			return nil, err
		}
		if err := ew.Flush(); err != nil {
			return nil, err
		}
		return res, gw.Flush()
	}

	opts.KeepDetail = true
	res, err := engine.New(src, shapes, opts).Run(ctx, b.Projects)
	if err != nil {
		return nil, err
	}
	if err := writeElec(elecOut, res.Elec, d); err != nil {
		return nil, err
	}
	if err := writeGas(gasOut, res.Gas, d); err != nil {
		return nil, err
	}
	return res, nil
}

func writeElec(w io.Writer, rows []calc.ElecBenefit, d detailSpec) error {
	if len(d.elecBy) > 0 {
		return report.WriteElecAggregate(w, d.elecBy, report.AggregateElec(rows, d.elecBy), d.elecComps)
	}
	ew := report.NewElecDetailWriter(w, d.elecComps)
	if err := ew.Write(rows); err != nil {
		return err
	}
	return ew.Flush()
}

func writeGas(w io.Writer, rows []calc.GasBenefit, d detailSpec) error {
	if len(d.gasBy) > 0 {
		return report.WriteGasAggregate(w, d.gasBy, report.AggregateGas(rows, d.gasBy), d.gasComps)
	}
	gw := report.NewGasDetailWriter(w, d.gasComps)
	if err := gw.Write(rows); err != nil {
		return err
	}
	return gw.Flush()
}
