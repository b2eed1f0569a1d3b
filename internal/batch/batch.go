// Package batch reads the tabular project input of a run.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/bher20/avoidedcost/internal/calc"
)

// Columns are the project columns every batch must carry, in output order.
var Columns = []string{
	"id", "start_year", "start_quarter", "utility", "climate_zone",
	"mwh_savings", "load_shape", "therms_savings", "therms_profile",
	"units", "eul", "ntg", "discount_rate", "admin", "measure", "incentive",
}

// OptionalColumns are decoded into projects when present.
var OptionalColumns = []string{"value_curve_name"}

// RequiredCells are numeric columns that may not be blank. Other blank
// numeric cells decode as zero.
var RequiredCells = []string{"start_year", "start_quarter", "units", "eul", "ntg", "discount_rate"}

var aliases = map[string]string{
	"region":         "climate_zone",
	"admin_cost":     "admin",
	"measure_cost":   "measure",
	"incentive_cost": "incentive",
}

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrDuplicateID    = errors.New("duplicate project id")
	ErrBlankCell      = errors.New("value is required")
)

// Batch is a parsed project table. Records keep every input column, keyed by
// the normalised header, so extra columns reach the portfolio output.
type Batch struct {
	Header   []string
	Records  []map[string]string
	Projects []calc.Project
}

// NormalizeHeader lower-cases a column name and applies the known aliases.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	if a, ok := aliases[h]; ok {
		return a
	}
	return h
}

// ReadCSV parses a project table. Every row is decoded and validated, and all
// problems are returned together as InputErrors joined with errors.Join.
func ReadCSV(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("batch: read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("batch: %w: empty input", ErrMissingColumns)
	}

	header := make([]string, len(rows[0]))
	have := make(map[string]bool)
	for i, h := range rows[0] {
		header[i] = NormalizeHeader(h)
		have[header[i]] = true
	}
	var missing []string
	for _, c := range Columns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("batch: %w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	b := &Batch{Header: header}
	var errs []error
	seen := make(map[string]int)
	for i, row := range rows[1:] {
		rowNum := i + 1
		rec := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		if blank := blankCells(rowNum, rec); len(blank) > 0 {
			errs = append(errs, blank...)
			continue
		}
		var p calc.Project
		if err := DecodeRecord(rowNum, rec["id"], pick(rec, decodeColumns), &p, "json"); err != nil {
			errs = append(errs, err)
			continue
		}
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			errs = append(errs, &calc.InputError{Row: rowNum, ID: p.ID, Err: err})
			continue
		}
		if first, dup := seen[p.ID]; dup {
			errs = append(errs, &calc.InputError{Row: rowNum, ID: p.ID, Column: "id",
				Err: fmt.Errorf("%w (first seen on row %d)", ErrDuplicateID, first)})
			continue
		}
		seen[p.ID] = rowNum
		b.Records = append(b.Records, rec)
		b.Projects = append(b.Projects, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

// FromProjects builds a batch from already-typed projects, such as a JSON
// request body or the stored project table.
func FromProjects(ps []calc.Project) (*Batch, error) {
	b := &Batch{Header: append([]string(nil), Columns...)}
	var errs []error
	seen := make(map[string]bool)
	for i, p := range ps {
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			errs = append(errs, &calc.InputError{Row: i + 1, ID: p.ID, Err: err})
			continue
		}
		if seen[p.ID] {
			errs = append(errs, &calc.InputError{Row: i + 1, ID: p.ID, Column: "id", Err: ErrDuplicateID})
			continue
		}
		seen[p.ID] = true
		b.Records = append(b.Records, record(p))
		b.Projects = append(b.Projects, p)
		if p.ValueCurve != "" && len(b.Header) == len(Columns) {
			b.Header = append(b.Header, OptionalColumns...)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

func record(p calc.Project) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	rec := map[string]string{
		"id":             p.ID,
		"start_year":     strconv.Itoa(p.StartYear),
		"start_quarter":  strconv.Itoa(p.StartQuarter),
		"utility":        p.Utility,
		"climate_zone":   p.ClimateZone,
		"mwh_savings":    f(p.MWhSavings),
		"load_shape":     p.LoadShape,
		"therms_savings": f(p.ThermsSavings),
		"therms_profile": p.ThermsProfile,
		"units":          f(p.Units),
		"eul":            strconv.Itoa(p.EUL),
		"ntg":            f(p.NTG),
		"discount_rate":  f(p.DiscountRate),
		"admin":          f(p.Admin),
		"measure":        f(p.Measure),
		"incentive":      f(p.Incentive),
	}
	if p.ValueCurve != "" {
		rec["value_curve_name"] = p.ValueCurve
	}
	return rec
}

var decodeColumns = append(append([]string(nil), Columns...), OptionalColumns...)

func blankCells(row int, rec map[string]string) []error {
	var errs []error
	for _, c := range RequiredCells {
		if strings.TrimSpace(rec[c]) == "" {
			errs = append(errs, &calc.InputError{Row: row, ID: strings.TrimSpace(rec["id"]), Column: c, Err: ErrBlankCell})
		}
	}
	return errs
}

func pick(rec map[string]string, cols []string) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		out[c] = rec[c]
	}
	return out
}

// DecodeRecord decodes string cells into the struct pointed to by out, one
// column at a time so that each failure names its column. Fields are matched
// by the given struct tag. Blank numeric cells decode as zero.
func DecodeRecord(row int, id string, rec map[string]string, out any, tag string) error {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var errs []error
	for _, c := range cols {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			TagName:          tag,
			Result:           out,
			DecodeHook:       mapstructure.DecodeHookFuncKind(cellHook),
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(map[string]any{c: rec[c]}); err != nil {
			errs = append(errs, &calc.InputError{Row: row, ID: strings.TrimSpace(id), Column: c, Err: unwrapDecodeError(err)})
		}
	}
	return errors.Join(errs...)
}

// cellHook trims cells and accepts integral floats such as "9.0" for integer
// fields.
func cellHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s == "" {
			return s, nil
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return s, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return int64(f), nil
	case reflect.Float32, reflect.Float64:
		if s == "" {
			return s, nil
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
	}
	return s, nil
}

// unwrapDecodeError strips mapstructure's "1 error(s) decoding" wrapper.
func unwrapDecodeError(err error) error {
	var me *mapstructure.Error
	if errors.As(err, &me) && len(me.Errors) == 1 {
		return errors.New(me.Errors[0])
	}
	return err
}
