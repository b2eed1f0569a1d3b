package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/storage"
)

// FailureJSON is a project left out of a run.
type FailureJSON struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Snapshot is a stored run: the portfolio table with its Totals row and the
// projects that failed.
type Snapshot struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	CreatedAt time.Time          `json:"created_at"`
	Portfolio []PortfolioJSONRow `json:"portfolio"`
	Failures  []FailureJSON      `json:"failures,omitempty"`
}

// NewSnapshot gives a run a fresh ID.
func NewSnapshot(source string, rows []engine.PortfolioRow, res *engine.Result) Snapshot {
	s := Snapshot{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Portfolio: make([]PortfolioJSONRow, len(rows)),
	}
	for i, r := range rows {
		s.Portfolio[i] = PortfolioJSONRow{Input: r.Record, Result: r.Summary}
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, FailureJSON{ID: f.ID, Error: f.Err.Error()})
	}
	return s
}

func SaveSnapshot(ctx context.Context, st storage.Storage, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", s.ID, err)
	}
	projects := len(s.Portfolio)
	if projects > 0 {
		projects-- // Totals
	}
	return st.SaveRunResult(ctx, storage.RunResult{
		ID:        s.ID,
		Source:    s.Source,
		Projects:  projects,
		Failures:  len(s.Failures),
		Payload:   payload,
		CreatedAt: s.CreatedAt,
	})
}

// LoadSnapshot returns nil when no run has the ID.
func LoadSnapshot(ctx context.Context, st storage.Storage, id string) (*Snapshot, error) {
	r, err := st.GetRunResult(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &s, nil
}
