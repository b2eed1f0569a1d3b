package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/storage"
)

func TestLoadElecAvoidedCosts(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	in := "state,utility,region,datetime,year,quarter,month,hour_of_day,hour_of_year,energy,total,marginal_ghg,value_curve_name\n" +
		"ca,pge,12,2024-01-01 00:00:00,2024,1,1,0,1,0.04,0.05,0.4,ACC 2022\n" +
		"ca,pge,12,2024-01-01 01:00:00,2024,1,1,1,2,0.03,0.04,0.3,ACC 2022\n"

	n, err := LoadElecAvoidedCosts(ctx, st, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := st.ElecAvoidedCosts(ctx, storage.CostFilter{Utility: "PGE", Region: "CZ12"}, 2024, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CA", rows[0].State)
	assert.Equal(t, 0.05, rows[0].Total)
	assert.Equal(t, 0.4, rows[0].MarginalGHG)
	assert.Equal(t, "ACC 2022", rows[1].ValueCurveName)
}

func TestLoadElecAvoidedCostsBadCell(t *testing.T) {
	in := "utility,region,year,month,hour_of_year,total\nPGE,CZ1,2024,1,1,abc\n"
	_, err := LoadElecAvoidedCosts(context.Background(), storage.NewMemory(), strings.NewReader(in))
	var ie *calc.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "total", ie.Column)
	assert.Equal(t, 1, ie.Row)
}

func TestLoadElecAvoidedCostsMissingColumns(t *testing.T) {
	_, err := LoadElecAvoidedCosts(context.Background(), storage.NewMemory(), strings.NewReader("utility,year\n"))
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "hour_of_year")
}

func TestLoadGasAvoidedCostsChunks(t *testing.T) {
	ctx := context.Background()
	var sb strings.Builder
	sb.WriteString("state,utility,region,year,quarter,month,market,t_d,environment,btm_methane,total,upstream_methane,marginal_ghg,value_curve_name\n")
	rows := ChunkSize + 5
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "CA,PGE,SYSTEM,%d,1,1,0.5,0.25,0.1,0.05,0.9,0.02,0.005,ACC\n", 2000+i%50)
	}
	st := storage.NewMemory()
	n, err := LoadGasAvoidedCosts(ctx, st, strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, rows, n)

	count, err := st.CountRows(ctx, storage.TableGasAvCosts)
	require.NoError(t, err)
	assert.EqualValues(t, rows, count)

	got, err := st.GasAvoidedCosts(ctx, storage.CostFilter{Utility: "PGE"}, 2000, 2000)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 0.25, got[0].TD)
}

func TestReferenceShapeName(t *testing.T) {
	assert.Equal(t, "PGE_RES_LIGHTING", ReferenceShapeName("pge", "res_lighting"))
	assert.Equal(t, "PGE_RES_LIGHTING", ReferenceShapeName("PGE", "PGE_RES_LIGHTING"))
	assert.Equal(t, "FLAT", ReferenceShapeName("", "flat"))
}

func TestLoadReferenceLoadShapes(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	in := "state,utility,region,quarter,month,hour_of_day,hour_of_year,res_lighting,com_hvac\n" +
		"CA,PGE,SYSTEM,1,1,0,1,0.25,0.5\n" +
		"CA,PGE,SYSTEM,1,1,1,2,0.75,0.5\n" +
		"CA,SCE,SYSTEM,1,1,0,1,1,1\n"

	n, err := LoadReferenceLoadShapes(ctx, st, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	names, err := st.LoadShapeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PGE_COM_HVAC", "PGE_RES_LIGHTING", "SCE_COM_HVAC", "SCE_RES_LIGHTING"}, names)
}

func TestLoadReferenceLoadShapesDuplicateHour(t *testing.T) {
	in := "state,utility,region,quarter,month,hour_of_day,hour_of_year,res\n" +
		"CA,PGE,SYSTEM,1,1,0,1,0.25\n" +
		"CA,PGE,SYSTEM,1,1,0,1,0.25\n"
	_, err := LoadReferenceLoadShapes(context.Background(), storage.NewMemory(), strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded on row 1")
}

func TestLoadMeteredLoadShapesNormalises(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	in := "hour_of_year,meter_a,meter_b\n1,1,0\n2,3,2\n"

	n, err := LoadMeteredLoadShapes(ctx, st, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2*calc.HoursPerYear, n)

	values, err := st.LoadShapeValues(ctx)
	require.NoError(t, err)
	byKey := make(map[string]float64)
	for _, v := range values {
		assert.Equal(t, string(calc.SourceMetered), v.Source)
		byKey[fmt.Sprintf("%s/%d", v.LoadShapeName, v.HourOfYear)] = v.Value
	}
	assert.InDelta(t, 0.25, byKey["METER_A/1"], 1e-12)
	assert.InDelta(t, 0.75, byKey["METER_A/2"], 1e-12)
	assert.InDelta(t, 1, byKey["METER_B/2"], 1e-12)
}

func TestLoadMeteredLoadShapesZeroSum(t *testing.T) {
	_, err := LoadMeteredLoadShapes(context.Background(), storage.NewMemory(), strings.NewReader("hour_of_year,m\n1,0\n"))
	assert.ErrorContains(t, err, "sums to zero")
}

func TestLoadFileProjects(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "projects.csv")
	in := "id,start_year,start_quarter,utility,climate_zone,mwh_savings,load_shape,therms_savings,therms_profile,units,eul,ntg,discount_rate,admin,measure,incentive,value_curve_name\n" +
		"p1,2024,1,pge,12,1,res,0,annual,1,5,1,0.07,0,0,0,ACC 2022\n"
	require.NoError(t, os.WriteFile(path, []byte(in), 0o644))

	st := storage.NewMemory()
	n, err := LoadFile(ctx, st, KindProjects, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ps, err := st.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "PGE", ps[0].Utility)
	assert.Equal(t, "CZ12", ps[0].ClimateZone)
	assert.Equal(t, "ACC 2022", ps[0].ValueCurveName)

	_, err = LoadFile(ctx, st, Kind("nope"), path)
	assert.Error(t, err)
}
