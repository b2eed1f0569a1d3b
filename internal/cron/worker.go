// Package cron recomputes the stored portfolio on a schedule.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bher20/avoidedcost/internal/alerting"
	"github.com/bher20/avoidedcost/internal/batch"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/metrics"
	"github.com/bher20/avoidedcost/internal/report"
	"github.com/bher20/avoidedcost/internal/storage"
)

const (
	JobName = "recompute_portfolio"
	// ScheduleSettingKey overrides the configured schedule from the settings
	// table while the worker runs.
	ScheduleSettingKey = "worker_schedule"
	DefaultSchedule    = "@daily"

	lockKey int64 = 0x61766f6964 // "avoid"
)

var (
	ErrLockHeld     = errors.New("advisory lock held by another worker")
	ErrMissingInput = errors.New("reference tables are empty")
)

// NextRun returns the next run after last. setting is a number of seconds or
// a standard cron expression (descriptors like @hourly are accepted).
func NextRun(setting string, last time.Time) (time.Time, error) {
	setting = strings.TrimSpace(setting)
	if v, err := strconv.Atoi(setting); err == nil {
		if v <= 0 {
			return time.Time{}, fmt.Errorf("schedule %q: seconds must be positive", setting)
		}
		return last.Add(time.Duration(v) * time.Second), nil
	}
	sched, err := cron.ParseStandard(setting)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %q: %w", setting, err)
	}
	return sched.Next(last), nil
}

type Worker struct {
	st       storage.Storage
	opts     engine.Options
	schedule string
	// Poll is how often the settings table and the clock are checked.
	Poll time.Duration
	// Alerter, when set, is told about failed jobs and failed projects.
	Alerter *alerting.Alerter
}

func NewWorker(st storage.Storage, opts engine.Options, schedule string) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Worker{st: st, opts: opts, schedule: schedule, Poll: 10 * time.Second}
}

func (w *Worker) nextRun(last time.Time) time.Time {
	next, err := NextRun(w.schedule, last)
	if err != nil {
		slog.Error("cron: invalid schedule, retrying in 5m", "error", err)
		return last.Add(5 * time.Minute)
	}
	return next
}

// refreshSchedule picks up a schedule stored in the settings table and
// reports whether it changed.
func (w *Worker) refreshSchedule(ctx context.Context) bool {
	val, err := w.st.GetSetting(ctx, ScheduleSettingKey)
	if err != nil || val == "" || val == w.schedule {
		return false
	}
	if _, err := NextRun(val, time.Now()); err != nil {
		slog.Warn("cron: ignoring invalid schedule setting", "value", val, "error", err)
		return false
	}
	slog.Info("cron: schedule updated", "from", w.schedule, "to", val)
	w.schedule = val
	return true
}

// Run executes the job immediately and then on schedule until ctx is done.
// In a multi-instance deployment only the holder of the advisory lock runs
// each cycle.
func (w *Worker) Run(ctx context.Context) error {
	w.refreshSchedule(ctx)
	slog.Info("cron: worker starting", "schedule", w.schedule, "job", JobName)

	ticker := time.NewTicker(w.Poll)
	defer ticker.Stop()

	nextRun := time.Now()
	for {
		if !time.Now().Before(nextRun) {
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrLockHeld) {
				slog.Error("cron: job failed", "job", JobName, "error", err)
			}
			nextRun = w.nextRun(time.Now())
			slog.Info("cron: next run scheduled", "at", nextRun)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.refreshSchedule(ctx) {
				nextRun = w.nextRun(time.Now())
			}
		}
	}
}

// RunOnce recomputes every stored project and stores the run. It returns
// ErrLockHeld when another worker holds the job lock.
func (w *Worker) RunOnce(ctx context.Context) (*report.Snapshot, error) {
	started := time.Now()

	ok, err := w.st.AcquireAdvisoryLock(ctx, lockKey)
	if err != nil {
		metrics.UpdateJobMetrics(JobName, started, err)
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !ok {
		slog.Info("cron: advisory lock held by another worker, skipping run")
		return nil, ErrLockHeld
	}

	var snap *report.Snapshot
	func() {
		defer func() {
			if _, err := w.st.ReleaseAdvisoryLock(context.WithoutCancel(ctx), lockKey); err != nil {
				slog.Warn("cron: release advisory lock failed", "error", err)
			}
		}()
		snap, err = w.recompute(ctx, started)
	}()

	metrics.UpdateJobMetrics(JobName, started, err)
	dur := time.Since(started)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if uerr := w.st.UpdateScheduledJob(context.WithoutCancel(ctx), JobName, started, dur, err == nil, errMsg); uerr != nil {
		slog.Warn("cron: update scheduled_jobs failed", "error", uerr)
	}
	w.reportPool()
	w.alert(ctx, started, snap, err)

	if err != nil {
		return nil, err
	}
	slog.Info("cron: job completed", "job", JobName, "run", snap.ID, "duration", dur)
	return snap, nil
}

func (w *Worker) recompute(ctx context.Context, started time.Time) (*report.Snapshot, error) {
	empty, err := storage.EmptyTables(ctx, w.st)
	if err != nil {
		return nil, err
	}
	if len(empty) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(empty, ", "))
	}

	stored, err := w.st.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	b, err := batch.FromProjects(engine.ProjectsFrom(stored))
	if err != nil {
		return nil, fmt.Errorf("stored projects: %w", err)
	}

	shapes, err := engine.LoadShapeTableFrom(ctx, w.st)
	if err != nil {
		return nil, err
	}

	prog, err := newProgress(ctx, w.st, b.Projects)
	if err != nil {
		return nil, fmt.Errorf("batch progress: %w", err)
	}

	e := engine.New(engine.StorageSource{Storage: w.st}, shapes, w.opts)
	res, err := e.Stream(ctx, b.Projects, func(r *engine.ProjectResult) error {
		prog.set(ctx, r.Project.ID, storage.BatchCompleted, started, "")
		return nil
	})
	if err != nil {
		prog.abort(context.WithoutCancel(ctx), started, err)
		return nil, err
	}
	for _, f := range res.Failures {
		prog.set(ctx, f.ID, storage.BatchFailed, started, f.Err.Error())
	}

	snap := report.NewSnapshot("worker", engine.Portfolio(b, res), res)
	if err := report.SaveSnapshot(ctx, w.st, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (w *Worker) alert(ctx context.Context, started time.Time, snap *report.Snapshot, err error) {
	if !w.Alerter.Enabled() {
		return
	}
	a := alerting.JobAlert{JobName: JobName, Duration: time.Since(started)}
	if err != nil {
		a.JobError = err.Error()
	} else {
		a.RunID = snap.ID
		a.Projects = len(snap.Portfolio) - 1
		for _, f := range snap.Failures {
			a.Failed = append(a.Failed, alerting.ProjectFailure{Project: f.ID, Error: f.Error})
		}
	}
	if _, aerr := w.Alerter.Send(context.WithoutCancel(ctx), a); aerr != nil {
		slog.Warn("cron: alert failed", "error", aerr)
	}
}

func (w *Worker) reportPool() {
	pg, ok := w.st.(*storage.PostgresPoolStorage)
	if !ok {
		return
	}
	s := pg.PoolStats()
	metrics.UpdateDBPoolMetrics("postgrespool", float64(s.Total), float64(s.Idle), float64(s.InUse), s.AcquireDelta)
}
