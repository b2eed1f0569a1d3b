package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/internal/alerting"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/storage"
)

func seed(t *testing.T, projects ...storage.ProjectInfo) *storage.MemoryStorage {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.InsertElecAvoidedCosts(ctx, []storage.ElecAvoidedCost{
		{Utility: "PGE", Region: "CZ12", Year: 2024, Month: 1, HourOfDay: 1, HourOfYear: 1, Total: 0.05},
	}))
	require.NoError(t, st.InsertGasAvoidedCosts(ctx, []storage.GasAvoidedCost{
		{Year: 2024, Month: 1, Total: 1},
	}))
	require.NoError(t, st.InsertLoadShapeValues(ctx, []storage.LoadShapeValue{
		{LoadShapeName: "PGE_RES", Source: "reference", HourOfYear: 1, Value: 1},
	}))
	require.NoError(t, st.UpsertProjects(ctx, projects))
	return st
}

func project(id, shape string) storage.ProjectInfo {
	return storage.ProjectInfo{
		ID: id, StartYear: 2024, StartQuarter: 1, Utility: "PGE", ClimateZone: "12",
		MWhSavings: 10, LoadShape: shape, ThermsSavings: 40, ThermsProfile: "annual",
		Units: 1, EUL: 1, NTG: 1, DiscountRate: 0.08, Admin: 10,
	}
}

func TestNextRun(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	next, err := NextRun("300", last)
	require.NoError(t, err)
	assert.Equal(t, last.Add(5*time.Minute), next)

	next, err = NextRun("0 2 * * *", last)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), next)

	next, err = NextRun("@daily", last)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next)

	_, err = NextRun("-5", last)
	assert.Error(t, err)
	_, err = NextRun("every tuesday", last)
	assert.Error(t, err)
}

func TestRunOnceStoresRun(t *testing.T) {
	ctx := context.Background()
	st := seed(t, project("p1", "RES"), project("p2", "RES"))
	w := NewWorker(st, engine.Options{}, "")

	snap, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "worker", snap.Source)
	assert.Len(t, snap.Portfolio, 3)
	assert.Empty(t, snap.Failures)

	runs, err := st.ListRunResults(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, snap.ID, runs[0].ID)

	job, err := st.GetScheduledJob(ctx, JobName)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.LastSuccess)
	assert.Empty(t, job.LastError)

	// The lock is released after the run.
	ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunOnceRecordsFailures(t *testing.T) {
	ctx := context.Background()
	st := seed(t, project("good", "RES"), project("bad", "NOPE"))
	w := NewWorker(st, engine.Options{ContinueOnError: true}, "")

	snap, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Failures, 1)
	assert.Equal(t, "bad", snap.Failures[0].ID)
	assert.Nil(t, snap.Portfolio[0].Result)
	assert.NotNil(t, snap.Portfolio[1].Result)
}

func TestRunOnceAbortMarksProjectsFailed(t *testing.T) {
	ctx := context.Background()
	st := seed(t, project("a", "NOPE"), project("b", "RES"))
	w := NewWorker(st, engine.Options{}, "")

	_, err := w.RunOnce(ctx)
	require.Error(t, err)

	job, err := st.GetScheduledJob(ctx, JobName)
	require.NoError(t, err)
	assert.Equal(t, 0, job.LastSuccess)
	assert.Contains(t, job.LastError, "load shape not found")

	runs, err := st.ListRunResults(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunOnceEmptyTables(t *testing.T) {
	w := NewWorker(storage.NewMemory(), engine.Options{}, "")
	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), storage.TableProjectInfo)
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	st := seed(t, project("p1", "RES"))
	ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = NewWorker(st, engine.Options{}, "").RunOnce(ctx)
	assert.True(t, errors.Is(err, ErrLockHeld))
}

func TestRunSchedulesFromSettings(t *testing.T) {
	st := seed(t, project("p1", "RES"))
	require.NoError(t, st.SetSetting(context.Background(), ScheduleSettingKey, "3600"))

	w := NewWorker(st, engine.Options{}, "@daily")
	w.Poll = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "3600", w.schedule)

	runs, err := st.ListRunResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunOnceAlertsOnFailedProjects(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			mu.Lock()
			got = append(got, body)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	st := seed(t, project("good", "RES"), project("bad", "NOPE"))
	w := NewWorker(st, engine.Options{ContinueOnError: true}, "")
	w.Alerter = alerting.New(alerting.Config{WebhookURL: srv.URL})

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, JobName, got[0]["job_name"])
	assert.Equal(t, float64(2), got[0]["projects"])
	assert.Equal(t, float64(1), got[0]["failed_count"])
}
