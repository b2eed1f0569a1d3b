package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bher20/avoidedcost/internal/calc"
)

// ElecDetailWriter writes hourly electric benefit rows. The header goes out
// with the first Write, so it can be fed one project at a time.
type ElecDetailWriter struct {
	cw    *csv.Writer
	comps []calc.ElecComponent
	wrote bool
}

func NewElecDetailWriter(w io.Writer, comps []calc.ElecComponent) *ElecDetailWriter {
	if len(comps) == 0 {
		comps = calc.ElecComponentNames
	}
	return &ElecDetailWriter{cw: csv.NewWriter(w), comps: comps}
}

func (d *ElecDetailWriter) header() []string {
	h := []string{"id", "year", "month", "hour_of_day", "hour_of_year", "quarter", "hourly_savings", "discount"}
	for _, c := range d.comps {
		h = append(h, string(c))
	}
	return append(h, "marginal_ghg", "av_csts_levelized")
}

// Write appends rows. Joined fields of unmatched hours are blank.
func (d *ElecDetailWriter) Write(rows []calc.ElecBenefit) error {
	if !d.wrote {
		if err := d.cw.Write(d.header()); err != nil {
			return err
		}
		d.wrote = true
	}
	for _, r := range rows {
		rec := []string{r.ID, "", "", "", strconv.Itoa(r.HourOfYear), "", formatFloat(r.HourlySavings), ""}
		if r.Matched {
			rec[1] = strconv.Itoa(r.Year)
			rec[2] = strconv.Itoa(r.Month)
			rec[3] = strconv.Itoa(r.HourOfDay)
			rec[5] = strconv.Itoa(r.Quarter)
			rec[7] = formatFloat(r.Discount)
		}
		for _, c := range d.comps {
			if !r.Matched {
				rec = append(rec, "")
				continue
			}
			v, _ := r.Benefits.Get(c)
			rec = append(rec, formatFloat(v))
		}
		if r.Matched {
			rec = append(rec, formatFloat(r.MarginalGHG), formatFloat(r.Levelized))
		} else {
			rec = append(rec, "", "")
		}
		if err := d.cw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *ElecDetailWriter) Flush() error {
	d.cw.Flush()
	return d.cw.Error()
}

// GasDetailWriter writes quarterly gas benefit rows.
type GasDetailWriter struct {
	cw    *csv.Writer
	comps []calc.GasComponent
	wrote bool
}

func NewGasDetailWriter(w io.Writer, comps []calc.GasComponent) *GasDetailWriter {
	if len(comps) == 0 {
		comps = calc.GasComponentNames
	}
	return &GasDetailWriter{cw: csv.NewWriter(w), comps: comps}
}

func (d *GasDetailWriter) Write(rows []calc.GasBenefit) error {
	if !d.wrote {
		h := []string{"id", "year", "quarter", "therms_savings", "therms_profile_adjustment", "discount"}
		for _, c := range d.comps {
			h = append(h, string(c))
		}
		if err := d.cw.Write(append(h, "av_csts_levelized")); err != nil {
			return err
		}
		d.wrote = true
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Quarter),
			formatFloat(r.ThermsSavings),
			formatFloat(r.Adjustment),
			formatFloat(r.Discount),
		}
		for _, c := range d.comps {
			v, _ := r.Benefits.Get(c)
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(r.Levelized))
		if err := d.cw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *GasDetailWriter) Flush() error {
	d.cw.Flush()
	return d.cw.Error()
}
