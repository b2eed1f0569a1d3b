// Package ingest loads reference data and projects from CSV files into
// storage, in chunks so that large avoided-cost files stream through.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bher20/avoidedcost/internal/batch"
	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/metrics"
	"github.com/bher20/avoidedcost/internal/storage"
)

// ChunkSize is the number of rows written per insert.
const ChunkSize = 10000

// Kind names a loadable file type.
type Kind string

const (
	KindElecAvoidedCosts Kind = "elec-av-costs"
	KindGasAvoidedCosts  Kind = "gas-av-costs"
	KindLoadShapes       Kind = "load-shapes"
	KindMeteredShapes    Kind = "metered-load-shapes"
	KindProjects         Kind = "projects"
)

var Kinds = []Kind{KindElecAvoidedCosts, KindGasAvoidedCosts, KindLoadShapes, KindMeteredShapes, KindProjects}

var ErrMissingColumns = errors.New("missing required columns")

// LoadFile loads one file of the given kind and returns the rows written.
func LoadFile(ctx context.Context, st storage.Storage, kind Kind, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int
	switch kind {
	case KindElecAvoidedCosts:
		n, err = LoadElecAvoidedCosts(ctx, st, f)
	case KindGasAvoidedCosts:
		n, err = LoadGasAvoidedCosts(ctx, st, f)
	case KindLoadShapes:
		n, err = LoadReferenceLoadShapes(ctx, st, f)
	case KindMeteredShapes:
		n, err = LoadMeteredLoadShapes(ctx, st, f)
	case KindProjects:
		n, err = LoadProjectInfo(ctx, st, f)
	default:
		return 0, fmt.Errorf("unknown file kind %q", kind)
	}
	if err != nil {
		return n, fmt.Errorf("%s %s: %w", kind, path, err)
	}
	slog.Info("ingest: loaded", "kind", kind, "path", path, "rows", n)
	return n, nil
}

// chunker buffers rows and hands them to insert ChunkSize at a time.
type chunker[T any] struct {
	ctx    context.Context
	table  string
	insert func(context.Context, []T) error
	buf    []T
	total  int
}

func newChunker[T any](ctx context.Context, table string, insert func(context.Context, []T) error) *chunker[T] {
	return &chunker[T]{ctx: ctx, table: table, insert: insert, buf: make([]T, 0, ChunkSize)}
}

func (c *chunker[T]) add(row T) error {
	c.buf = append(c.buf, row)
	if len(c.buf) >= ChunkSize {
		return c.flush()
	}
	return nil
}

func (c *chunker[T]) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if err := c.insert(c.ctx, c.buf); err != nil {
		return fmt.Errorf("insert into %s after %d rows: %w", c.table, c.total, err)
	}
	c.total += len(c.buf)
	metrics.RowsLoadedTotal.WithLabelValues(c.table).Add(float64(len(c.buf)))
	c.buf = make([]T, 0, ChunkSize)
	return nil
}

// table is a CSV reader positioned after the header.
type table struct {
	r      *csv.Reader
	header []string
	index  map[string]int
	row    int
}

func openTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{r: cr, index: make(map[string]int, len(head))}
	for i, h := range head {
		h = batch.NormalizeHeader(h)
		t.header = append(t.header, h)
		t.index[h] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return t, nil
}

// next returns the next record, or io.EOF.
func (t *table) next() ([]string, error) {
	rec, err := t.r.Read()
	if err != nil {
		return nil, err
	}
	t.row++
	return rec, nil
}

// pick maps the wanted columns of rec that exist in the header.
func (t *table) pick(rec []string, cols []string) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		if i, ok := t.index[c]; ok && i < len(rec) {
			out[c] = rec[i]
		}
	}
	return out
}

var elecColumns = []string{
	"state", "utility", "region", "year", "quarter", "month", "hour_of_day", "hour_of_year",
	"energy", "losses", "ancillary_services", "capacity", "transmission", "distribution",
	"cap_and_trade", "ghg_adder", "ghg_rebalancing", "ghg_adder_rebalancing", "methane_leakage",
	"total", "marginal_ghg", "value_curve_name",
}

// LoadElecAvoidedCosts loads the hourly electric avoided-cost table. Utility,
// region and state are upper-cased so lookups match normalised projects.
func LoadElecAvoidedCosts(ctx context.Context, st storage.Storage, r io.Reader) (int, error) {
	t, err := openTable(r, "utility", "region", "year", "month", "hour_of_year", "total")
	if err != nil {
		return 0, err
	}
	c := newChunker(ctx, storage.TableElecAvCosts, st.InsertElecAvoidedCosts)
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.total, err
		}
		var row storage.ElecAvoidedCost
		if err := batch.DecodeRecord(t.row, "", t.pick(rec, elecColumns), &row, "csv"); err != nil {
			return c.total, err
		}
		row.State = strings.ToUpper(strings.TrimSpace(row.State))
		row.Utility = calc.NormalizeUtility(row.Utility)
		row.Region = calc.NormalizeClimateZone(row.Region)
		if err := c.add(row); err != nil {
			return c.total, err
		}
	}
	return c.total, c.flush()
}

var gasColumns = []string{
	"state", "utility", "region", "year", "quarter", "month", "market", "t_d",
	"environment", "btm_methane", "upstream_methane", "total", "marginal_ghg", "value_curve_name",
}

// LoadGasAvoidedCosts loads the monthly gas avoided-cost table.
func LoadGasAvoidedCosts(ctx context.Context, st storage.Storage, r io.Reader) (int, error) {
	t, err := openTable(r, "year", "month", "total")
	if err != nil {
		return 0, err
	}
	c := newChunker(ctx, storage.TableGasAvCosts, st.InsertGasAvoidedCosts)
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.total, err
		}
		var row storage.GasAvoidedCost
		if err := batch.DecodeRecord(t.row, "", t.pick(rec, gasColumns), &row, "csv"); err != nil {
			return c.total, err
		}
		row.State = strings.ToUpper(strings.TrimSpace(row.State))
		row.Utility = strings.ToUpper(strings.TrimSpace(row.Utility))
		row.Region = strings.ToUpper(strings.TrimSpace(row.Region))
		if err := c.add(row); err != nil {
			return c.total, err
		}
	}
	return c.total, c.flush()
}

// referenceFixed are the leading columns of a reference load-shape file;
// every column after hour_of_year is a shape.
var referenceFixed = []string{"state", "utility", "region", "quarter", "month", "hour_of_day", "hour_of_year"}

// ReferenceShapeName is the stored name of a reference shape column: the
// column upper-cased and prefixed with the utility unless it already is.
func ReferenceShapeName(utility, column string) string {
	u := calc.NormalizeUtility(utility)
	c := strings.ToUpper(strings.TrimSpace(column))
	if u == "" || strings.HasPrefix(c, u+"_") {
		return c
	}
	return u + "_" + c
}

type shapeHour struct {
	name string
	hour int
}

// LoadReferenceLoadShapes loads a wide reference load-shape file.
func LoadReferenceLoadShapes(ctx context.Context, st storage.Storage, r io.Reader) (int, error) {
	t, err := openTable(r, referenceFixed...)
	if err != nil {
		return 0, err
	}
	hourCol := t.index["hour_of_year"]
	var shapeCols []int
	for i := hourCol + 1; i < len(t.header); i++ {
		shapeCols = append(shapeCols, i)
	}
	if len(shapeCols) == 0 {
		return 0, errors.New("no load shape columns after hour_of_year")
	}

	seen := make(map[shapeHour]int)
	c := newChunker(ctx, storage.TableElecLoadShape, st.InsertLoadShapeValues)
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.total, err
		}
		var fixed struct {
			State      string `csv:"state"`
			Utility    string `csv:"utility"`
			Region     string `csv:"region"`
			Quarter    int    `csv:"quarter"`
			Month      int    `csv:"month"`
			HourOfDay  int    `csv:"hour_of_day"`
			HourOfYear int    `csv:"hour_of_year"`
		}
		if err := batch.DecodeRecord(t.row, "", t.pick(rec, referenceFixed), &fixed, "csv"); err != nil {
			return c.total, err
		}
		if fixed.HourOfYear < 1 || fixed.HourOfYear > calc.HoursPerYear {
			return c.total, &calc.InputError{Row: t.row, Column: "hour_of_year",
				Err: fmt.Errorf("%d is outside 1-%d", fixed.HourOfYear, calc.HoursPerYear)}
		}
		for _, i := range shapeCols {
			name := ReferenceShapeName(fixed.Utility, t.header[i])
			v, err := parseCell(rec, i)
			if err != nil {
				return c.total, &calc.InputError{Row: t.row, Column: t.header[i], Err: err}
			}
			key := shapeHour{name, fixed.HourOfYear}
			if first, dup := seen[key]; dup {
				return c.total, &calc.InputError{Row: t.row, Column: t.header[i],
					Err: fmt.Errorf("hour %d of %s already loaded on row %d", fixed.HourOfYear, name, first)}
			}
			seen[key] = t.row
			err = c.add(storage.LoadShapeValue{
				LoadShapeName: name,
				Source:        string(calc.SourceReference),
				State:         strings.ToUpper(strings.TrimSpace(fixed.State)),
				Utility:       calc.NormalizeUtility(fixed.Utility),
				Region:        strings.ToUpper(strings.TrimSpace(fixed.Region)),
				Quarter:       fixed.Quarter,
				Month:         fixed.Month,
				HourOfDay:     fixed.HourOfDay,
				HourOfYear:    fixed.HourOfYear,
				Value:         v,
			})
			if err != nil {
				return c.total, err
			}
		}
	}
	return c.total, c.flush()
}

// LoadMeteredLoadShapes loads per-meter hourly consumption, hour_of_year then
// one column per meter, and stores each meter normalised to sum to one.
// The file is read in full because normalising needs every hour.
func LoadMeteredLoadShapes(ctx context.Context, st storage.Storage, r io.Reader) (int, error) {
	t, err := openTable(r, "hour_of_year")
	if err != nil {
		return 0, err
	}
	hourCol := t.index["hour_of_year"]
	var meters []int
	for i := range t.header {
		if i != hourCol {
			meters = append(meters, i)
		}
	}
	if len(meters) == 0 {
		return 0, errors.New("no meter columns")
	}

	values := make([][]float64, len(meters))
	for m := range values {
		values[m] = make([]float64, calc.HoursPerYear)
	}
	seen := make([]int, calc.HoursPerYear)
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		hour, err := strconv.Atoi(strings.TrimSpace(rec[hourCol]))
		if err != nil || hour < 1 || hour > calc.HoursPerYear {
			return 0, &calc.InputError{Row: t.row, Column: "hour_of_year", Err: fmt.Errorf("invalid hour %q", rec[hourCol])}
		}
		if first := seen[hour-1]; first != 0 {
			return 0, &calc.InputError{Row: t.row, Column: "hour_of_year",
				Err: fmt.Errorf("hour %d already loaded on row %d", hour, first)}
		}
		seen[hour-1] = t.row
		for m, i := range meters {
			v, err := parseCell(rec, i)
			if err != nil {
				return 0, &calc.InputError{Row: t.row, Column: t.header[i], Err: err}
			}
			values[m][hour-1] = v
		}
	}

	c := newChunker(ctx, storage.TableElecLoadShape, st.InsertLoadShapeValues)
	for m, i := range meters {
		name := strings.ToUpper(strings.TrimSpace(t.header[i]))
		var sum float64
		for _, v := range values[m] {
			sum += v
		}
		if sum == 0 {
			return c.total, fmt.Errorf("metered load shape %s sums to zero", name)
		}
		for h, v := range values[m] {
			err := c.add(storage.LoadShapeValue{
				LoadShapeName: name,
				Source:        string(calc.SourceMetered),
				HourOfYear:    h + 1,
				Value:         v / sum,
			})
			if err != nil {
				return c.total, err
			}
		}
	}
	return c.total, c.flush()
}

// LoadProjectInfo upserts a project table into storage.
func LoadProjectInfo(ctx context.Context, st storage.Storage, r io.Reader) (int, error) {
	b, err := batch.ReadCSV(r)
	if err != nil {
		return 0, err
	}
	c := newChunker(ctx, storage.TableProjectInfo, st.UpsertProjects)
	for _, p := range b.Projects {
		if err := c.add(engine.ProjectInfoFrom(p)); err != nil {
			return c.total, err
		}
	}
	return c.total, c.flush()
}

func parseCell(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, nil
	}
	s := strings.TrimSpace(rec[i])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
