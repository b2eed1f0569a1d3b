package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/storage"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()

	s := calc.Summary{ID: "p1", TRC: calc.Float(1.5), TotalBenefits: 15}
	tot := calc.Summary{ID: calc.TotalsID, TRC: calc.Float(1.5), TotalBenefits: 15}
	rows := []engine.PortfolioRow{
		{Record: map[string]string{"id": "p1"}, Summary: &s},
		{Record: map[string]string{"id": "p2"}},
		{Record: map[string]string{"id": calc.TotalsID}, Summary: &tot},
	}
	res := &engine.Result{Failures: []engine.Failure{{Index: 1, ID: "p2", Err: errors.New("boom")}}}

	snap := NewSnapshot("test", rows, res)
	require.NotEmpty(t, snap.ID)
	require.NoError(t, SaveSnapshot(ctx, st, snap))

	got, err := LoadSnapshot(ctx, st, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test", got.Source)
	require.Len(t, got.Portfolio, 3)
	assert.Nil(t, got.Portfolio[1].Result)
	assert.Equal(t, 1.5, got.Portfolio[0].Result.TRC.Float64)
	assert.Equal(t, []FailureJSON{{ID: "p2", Error: "boom"}}, got.Failures)

	runs, err := st.ListRunResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Projects)
	assert.Equal(t, 1, runs[0].Failures)

	missing, err := LoadSnapshot(ctx, st, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
