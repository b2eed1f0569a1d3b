package engine

import (
	"github.com/bher20/avoidedcost/internal/batch"
	"github.com/bher20/avoidedcost/internal/calc"
)

// PortfolioRow is one input record with its rounded output row. Summary is
// nil for projects that failed.
type PortfolioRow struct {
	Record  map[string]string
	Summary *calc.Summary
}

// Portfolio left-joins the run's summaries onto the batch records by project
// ID and appends the Totals row.
func Portfolio(b *batch.Batch, res *Result) []PortfolioRow {
	byID := make(map[string]calc.Summary, len(res.Summaries))
	for _, s := range res.Summaries {
		byID[s.ID] = s
	}
	rows := make([]PortfolioRow, 0, len(b.Records)+1)
	for i, rec := range b.Records {
		row := PortfolioRow{Record: rec}
		if s, ok := byID[b.Projects[i].ID]; ok {
			r := s.Rounded()
			row.Summary = &r
		}
		rows = append(rows, row)
	}
	totals := res.Totals.Rounded()
	rows = append(rows, PortfolioRow{
		Record:  map[string]string{"id": calc.TotalsID},
		Summary: &totals,
	})
	return rows
}
