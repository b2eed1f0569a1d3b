// Package engine runs projects through the benefit calculation and assembles
// portfolio results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/metrics"
)

// Source supplies both avoided-cost streams.
type Source interface {
	calc.ElecSource
	calc.GasSource
}

type Options struct {
	// Concurrency is the number of projects computed at once. Values below
	// one run sequentially.
	Concurrency int
	// ContinueOnError records failing projects in Result.Failures instead of
	// aborting the run.
	ContinueOnError bool
	// Adjustments overrides the therms profile table. Nil uses the
	// registered utility defaults.
	Adjustments calc.ThermsAdjustments
	// KeepDetail retains the hourly and quarterly benefit rows in Result.
	KeepDetail bool
	// JoinOnValueCurve selects avoided costs by each project's value curve
	// instead of its utility and climate zone.
	JoinOnValueCurve bool
}

type Engine struct {
	src    Source
	shapes *calc.LoadShapeTable
	opts   Options
}

func New(src Source, shapes *calc.LoadShapeTable, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Adjustments == nil {
		opts.Adjustments = calc.DefaultThermsAdjustments()
	}
	return &Engine{src: src, shapes: shapes, opts: opts}
}

// ProjectResult holds one project's benefit rows and output row.
type ProjectResult struct {
	Project calc.Project
	Elec    []calc.ElecBenefit
	Gas     []calc.GasBenefit
	Summary calc.Summary
}

// Failure is a project that could not be computed.
type Failure struct {
	Index int
	ID    string
	Err   error
}

func (f Failure) Error() string { return f.Err.Error() }

// Result is the outcome of a run. Summaries are unrounded, in input order and
// exclude failed projects.
type Result struct {
	Summaries []calc.Summary
	Totals    calc.Summary
	Elec      []calc.ElecBenefit
	Gas       []calc.GasBenefit
	Failures  []Failure
}

// Project computes a single project.
func (e *Engine) Project(ctx context.Context, p calc.Project) (*ProjectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	p = p.Normalize()
	res, err := e.project(ctx, p)
	if err != nil {
		metrics.ObserveProject(start, 0, 0, err)
		return nil, projectError(p.ID, err)
	}
	metrics.ObserveProject(start, len(res.Elec), len(res.Gas), nil)
	slog.Debug("engine: project done", "id", p.ID, "elec_rows", len(res.Elec), "gas_rows", len(res.Gas), "duration", time.Since(start))
	return res, nil
}

func (e *Engine) project(ctx context.Context, p calc.Project) (*ProjectResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	scope, err := p.Scope(e.opts.JoinOnValueCurve)
	if err != nil {
		return nil, err
	}
	shape, err := e.shapes.Resolve(p.Utility, p.LoadShape, p.MWhSavings)
	if err != nil {
		return nil, err
	}
	elecCosts, err := calc.FetchElecWindow(ctx, e.src, p, scope)
	if err != nil {
		return nil, err
	}
	sched := calc.NewDiscountSchedule(p.EUL, p.DiscountRate)
	elec := calc.ElectricBenefits(p, shape, elecCosts, sched)

	gasCosts, err := calc.FetchGasWindow(ctx, e.src, p, scope)
	if err != nil {
		return nil, err
	}
	gas, err := calc.GasBenefits(p, gasCosts, sched, e.opts.Adjustments)
	if err != nil {
		return nil, err
	}
	return &ProjectResult{
		Project: p,
		Elec:    elec,
		Gas:     gas,
		Summary: calc.Summarize(p, elec, gas),
	}, nil
}

// projectError names the project in err. Data errors carry the project
// themselves and are returned as is.
func projectError(id string, err error) error {
	var de *calc.DataError
	if errors.As(err, &de) {
		if de.Project == "" {
			de.Project = id
		}
		return err
	}
	return fmt.Errorf("project %s: %w", id, err)
}

// Run computes every project. Output order follows input order whatever the
// concurrency.
func (e *Engine) Run(ctx context.Context, projects []calc.Project) (*Result, error) {
	results := make([]*ProjectResult, len(projects))
	errs := make([]error, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, p := range projects {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := e.Project(gctx, p)
			if err != nil {
				if e.opts.ContinueOnError && gctx.Err() == nil {
					errs[i] = err
					return nil
				}
				return err
			}
			if !e.opts.KeepDetail {
				r.Elec, r.Gas = nil, nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, r := range results {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Index: i, ID: projects[i].ID, Err: errs[i]})
			slog.Warn("engine: project failed", "id", projects[i].ID, "error", errs[i])
			continue
		}
		res.Summaries = append(res.Summaries, r.Summary)
		res.Elec = append(res.Elec, r.Elec...)
		res.Gas = append(res.Gas, r.Gas...)
	}
	sort.SliceStable(res.Elec, func(i, j int) bool { return calc.ElecBenefitLess(res.Elec[i], res.Elec[j]) })
	sort.SliceStable(res.Gas, func(i, j int) bool { return calc.GasBenefitLess(res.Gas[i], res.Gas[j]) })
	res.Totals = calc.Totals(res.Summaries)
	slog.Info("engine: run done", "projects", len(projects), "failures", len(res.Failures))
	return res, nil
}

// Stream computes projects one at a time and hands each result to fn before
// moving on, so detail rows for a large portfolio are never all in memory.
// The returned Result has summaries and totals but no detail rows.
func (e *Engine) Stream(ctx context.Context, projects []calc.Project, fn func(*ProjectResult) error) (*Result, error) {
	res := &Result{}
	for i, p := range projects {
		r, err := e.Project(ctx, p)
		if err != nil {
			if e.opts.ContinueOnError && ctx.Err() == nil {
				res.Failures = append(res.Failures, Failure{Index: i, ID: p.ID, Err: err})
				slog.Warn("engine: project failed", "id", p.ID, "error", err)
				continue
			}
			return nil, err
		}
		if fn != nil {
			if err := fn(r); err != nil {
				return nil, err
			}
		}
		res.Summaries = append(res.Summaries, r.Summary)
	}
	res.Totals = calc.Totals(res.Summaries)
	return res, nil
}
