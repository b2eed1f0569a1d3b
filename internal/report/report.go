// Package report writes run results as CSV and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/engine"
)

// OutputColumns are the result columns appended to the input columns of a
// portfolio table.
var OutputColumns = []string{
	"TRC",
	"PAC",
	"TRC (and PAC) Electric Benefits ($)",
	"TRC (and PAC) Gas Benefits ($)",
	"TRC (and PAC) Total Benefits ($)",
	"TRC Costs ($)",
	"PAC Costs ($)",
	"Electricity First Year Net Savings (MWh)",
	"Electricity Lifecycle Net Savings (MWh)",
	"Gas First Year Net Savings (Therms)",
	"Gas Lifecycle Net Savings (Therms)",
	"Electricity Lifecycle GHG Savings (Tons)",
	"Gas Lifecycle GHG Savings (Tons)",
	"Total Lifecycle GHG Savings (Tons)",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryCells renders s in OutputColumns order. Undefined ratios are blank.
func SummaryCells(s calc.Summary) []string {
	return []string{
		s.TRC.String(),
		s.PAC.String(),
		formatFloat(s.ElecBenefits),
		formatFloat(s.GasBenefits),
		formatFloat(s.TotalBenefits),
		formatFloat(s.TRCCosts),
		formatFloat(s.PACCosts),
		formatFloat(s.ElecFirstYearMWh),
		formatFloat(s.ElecLifecycleMWh),
		formatFloat(s.GasFirstYearTherms),
		formatFloat(s.GasLifecycleTherms),
		formatFloat(s.ElecLifecycleGHG),
		formatFloat(s.GasLifecycleGHG),
		formatFloat(s.TotalLifecycleGHG),
	}
}

// WritePortfolioCSV writes the input columns of header followed by
// OutputColumns. Failed projects have blank result cells.
func WritePortfolioCSV(w io.Writer, header []string, rows []engine.PortfolioRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), header...), OutputColumns...)); err != nil {
		return err
	}
	blank := make([]string, len(OutputColumns))
	for _, r := range rows {
		rec := make([]string, 0, len(header)+len(OutputColumns))
		for _, h := range header {
			rec = append(rec, r.Record[h])
		}
		if r.Summary != nil {
			rec = append(rec, SummaryCells(*r.Summary)...)
		} else {
			rec = append(rec, blank...)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PortfolioJSONRow is the JSON form of a portfolio row.
type PortfolioJSONRow struct {
	Input  map[string]string `json:"input"`
	Result *calc.Summary     `json:"result"`
}

func WritePortfolioJSON(w io.Writer, rows []engine.PortfolioRow) error {
	out := make([]PortfolioJSONRow, len(rows))
	for i, r := range rows {
		out[i] = PortfolioJSONRow{Input: r.Record, Result: r.Summary}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
