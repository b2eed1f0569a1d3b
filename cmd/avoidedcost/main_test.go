package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/pkg/utilities"
)

type cli struct {
	t   *testing.T
	dir string
	db  string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("AVOIDEDCOST_AUTO_MIGRATE", "true")
	t.Setenv("AVOIDEDCOST_LOG_LEVEL", "error")
	dir := t.TempDir()
	return &cli{t: t, dir: dir, db: filepath.Join(dir, "test.db")}
}

func (c *cli) file(name, content string) string {
	c.t.Helper()
	p := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db-driver", "sqlite", "--db-dsn", c.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const projectsCSV = "id,start_year,start_quarter,utility,climate_zone,mwh_savings,load_shape,therms_savings,therms_profile,units,eul,ntg,discount_rate,admin,measure,incentive\n" +
	"p1,2024,1,PGE,12,10,RES,40,annual,1,1,1,0.08,10,0,0\n" +
	"p2,2024,2,PGE,12,5,RES,0,annual,1,2,0.8,0.08,5,2,1\n"

func (c *cli) loadReference() {
	c.t.Helper()
	elec := c.file("elec.csv", "state,utility,region,year,quarter,month,hour_of_day,hour_of_year,total,marginal_ghg\n"+
		"CA,PGE,CZ12,2024,1,1,1,1,0.05,0.4\n"+
		"CA,PGE,CZ12,2025,1,1,1,1,0.06,0.4\n"+
		"CA,PGE,CZ12,2026,1,1,1,1,0.07,0.4\n")
	gas := c.file("gas.csv", "year,month,total\n2024,1,1\n2024,4,4\n2025,1,2\n2026,1,3\n")
	shapes := c.file("shapes.csv", "hour_of_year,RES\n1,2\n2,2\n")

	for _, args := range [][]string{
		{"load", "elec-av-costs", elec},
		{"load", "gas-av-costs", gas},
		{"load", "metered-load-shapes", shapes},
	} {
		_, err := c.exec(args...)
		require.NoError(c.t, err, args)
	}
}

func TestRunFromCSV(t *testing.T) {
	c := newCLI(t)
	c.loadReference()
	in := c.file("projects.csv", projectsCSV)
	out := filepath.Join(c.dir, "out.csv")
	elecDetail := filepath.Join(c.dir, "elec.csv.out")
	gasAgg := filepath.Join(c.dir, "gas.csv.out")

	_, err := c.exec("run", "-i", in, "-o", out,
		"--elec-detail", elecDetail, "--elec-components", "total",
		"--gas-detail", gasAgg, "--gas-aggregate-by", "year")
	require.NoError(t, err)

	fh, err := os.Open(out)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "id", rows[0][0])
	assert.Contains(t, rows[0], "TRC")
	assert.Equal(t, "p1", rows[1][0])
	assert.Equal(t, "Totals", rows[3][0])

	detail, err := os.ReadFile(elecDetail)
	require.NoError(t, err)
	assert.Contains(t, string(detail), "hour_of_year")

	agg, err := os.ReadFile(gasAgg)
	require.NoError(t, err)
	assert.Contains(t, string(agg), "year")
}

func TestRunFromStorageSavesSnapshot(t *testing.T) {
	c := newCLI(t)
	c.loadReference()

	_, err := c.exec("run", "-o", filepath.Join(c.dir, "x.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_info")

	_, err = c.exec("load", "projects", c.file("projects.csv", projectsCSV))
	require.NoError(t, err)

	out := filepath.Join(c.dir, "out.json")
	_, err = c.exec("run", "--format", "json", "--save", "--concurrency", "2", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var rows []struct {
		Input  map[string]string `json:"input"`
		Result map[string]any    `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Totals", rows[2].Input["id"])

	_, err = c.exec("reset", "--table", "run_results")
	require.NoError(t, err)
}

func TestRunRejectsBadFlags(t *testing.T) {
	c := newCLI(t)
	_, err := c.exec("run", "--format", "xml")
	assert.Error(t, err)
	_, err = c.exec("run", "--elec-aggregate-by", "week")
	assert.Error(t, err)
	_, err = c.exec("load", "nonsense", "x.csv")
	assert.Error(t, err)
	_, err = c.exec("reset")
	assert.Error(t, err)
}

func TestTokenCommands(t *testing.T) {
	c := newCLI(t)
	out, err := c.exec("token", "create", "ci", "--role", "analyst", "--expires", "30d")
	require.NoError(t, err)
	assert.Contains(t, out, "role:   analyst")

	out, err = c.exec("token", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ci")

	_, err = c.exec("token", "create", "bad", "--role", "root")
	assert.Error(t, err)
}

func TestUtilitiesCommand(t *testing.T) {
	c := newCLI(t)
	out, err := c.exec("utilities")
	require.NoError(t, err)
	assert.Contains(t, out, "PGE")
	assert.Contains(t, out, "0.9427")

	out, err = c.exec("utilities", "sce")
	require.NoError(t, err)
	assert.Contains(t, out, "SCE")
	assert.NotContains(t, out, "PGE")

	_, err = c.exec("utilities", "nope")
	assert.ErrorIs(t, err, utilities.ErrUtilityNotFound)
}
