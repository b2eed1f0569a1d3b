package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bher20/avoidedcost/internal/calc"
)

// Columns that detail rows can be grouped by, besides the project ID which
// is always a key.
var (
	ElecAggregateColumns = []string{"year", "quarter", "month", "hour_of_day", "hour_of_year"}
	GasAggregateColumns  = []string{"year", "quarter"}
)

// ParseAggregateColumns validates a comma separated group-by list against
// allowed. An empty string means no aggregation.
func ParseAggregateColumns(s string, allowed []string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		c := strings.ToLower(strings.TrimSpace(f))
		ok := false
		for _, a := range allowed {
			if a == c {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("cannot aggregate by %q, want a subset of %s", f, strings.Join(allowed, ", "))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// ElecAggregate sums electric benefit rows sharing a project and group-by
// values. Unmatched hours form their own groups with Matched false.
type ElecAggregate struct {
	ID            string
	Keys          []int
	Matched       bool
	HourlySavings float64
	Benefits      calc.ElecComponents
	MarginalGHG   float64
	Levelized     float64
}

func elecKey(r calc.ElecBenefit, col string) int {
	switch col {
	case "year":
		return r.Year
	case "quarter":
		return r.Quarter
	case "month":
		return r.Month
	case "hour_of_day":
		return r.HourOfDay
	}
	return r.HourOfYear
}

func groupKey(id string, matched bool, keys []int) string {
	var sb strings.Builder
	sb.WriteString(id)
	fmt.Fprintf(&sb, "\x00%t", matched)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\x00%d", k)
	}
	return sb.String()
}

// AggregateElec groups rows by ID and the by columns, keeping first-seen
// group order.
func AggregateElec(rows []calc.ElecBenefit, by []string) []ElecAggregate {
	idx := make(map[string]int)
	var out []ElecAggregate
	for _, r := range rows {
		keys := make([]int, len(by))
		for i, c := range by {
			keys[i] = elecKey(r, c)
		}
		k := groupKey(r.ID, r.Matched, keys)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ElecAggregate{ID: r.ID, Keys: keys, Matched: r.Matched})
		}
		a := &out[i]
		a.HourlySavings += r.HourlySavings
		a.Benefits = a.Benefits.Add(r.Benefits)
		a.MarginalGHG += r.MarginalGHG
		a.Levelized += r.Levelized
	}
	return out
}

// GasAggregate sums gas benefit rows sharing a project and group-by values.
type GasAggregate struct {
	ID            string
	Keys          []int
	ThermsSavings float64
	Benefits      calc.GasComponents
	Levelized     float64
}

func AggregateGas(rows []calc.GasBenefit, by []string) []GasAggregate {
	idx := make(map[string]int)
	var out []GasAggregate
	for _, r := range rows {
		keys := make([]int, len(by))
		for i, c := range by {
			if c == "year" {
				keys[i] = r.Year
			} else {
				keys[i] = r.Quarter
			}
		}
		k := groupKey(r.ID, true, keys)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, GasAggregate{ID: r.ID, Keys: keys})
		}
		a := &out[i]
		a.ThermsSavings += r.ThermsSavings
		a.Benefits = a.Benefits.Add(r.Benefits)
		a.Levelized += r.Levelized
	}
	return out
}

// WriteElecAggregate writes aggregated electric rows. Group keys that do not
// exist for unmatched hours are blank.
func WriteElecAggregate(w io.Writer, by []string, aggs []ElecAggregate, comps []calc.ElecComponent) error {
	if len(comps) == 0 {
		comps = calc.ElecComponentNames
	}
	cw := csv.NewWriter(w)
	h := append([]string{"id"}, by...)
	h = append(h, "hourly_savings")
	for _, c := range comps {
		h = append(h, string(c))
	}
	if err := cw.Write(append(h, "marginal_ghg", "av_csts_levelized")); err != nil {
		return err
	}
	for _, a := range aggs {
		rec := []string{a.ID}
		for i, c := range by {
			if !a.Matched && c != "hour_of_year" {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.Itoa(a.Keys[i]))
		}
		rec = append(rec, formatFloat(a.HourlySavings))
		for _, c := range comps {
			v, _ := a.Benefits.Get(c)
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(a.MarginalGHG), formatFloat(a.Levelized))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteGasAggregate(w io.Writer, by []string, aggs []GasAggregate, comps []calc.GasComponent) error {
	if len(comps) == 0 {
		comps = calc.GasComponentNames
	}
	cw := csv.NewWriter(w)
	h := append([]string{"id"}, by...)
	h = append(h, "therms_savings")
	for _, c := range comps {
		h = append(h, string(c))
	}
	if err := cw.Write(append(h, "av_csts_levelized")); err != nil {
		return err
	}
	for _, a := range aggs {
		rec := []string{a.ID}
		for _, k := range a.Keys {
			rec = append(rec, strconv.Itoa(k))
		}
		rec = append(rec, formatFloat(a.ThermsSavings))
		for _, c := range comps {
			v, _ := a.Benefits.Get(c)
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(a.Levelized))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
