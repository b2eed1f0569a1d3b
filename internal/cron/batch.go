package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/storage"
)

// progress records per-project state of one recompute in batch_progress.
type progress struct {
	st      storage.Storage
	batchID string
}

func newProgress(ctx context.Context, st storage.Storage, projects []calc.Project) (*progress, error) {
	p := &progress{st: st, batchID: uuid.New().String()}
	for _, pr := range projects {
		if err := st.SaveBatchProgress(ctx, storage.BatchProgress{
			BatchID:   p.batchID,
			ProjectID: pr.ID,
			Status:    storage.BatchPending,
		}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *progress) set(ctx context.Context, id, status string, started time.Time, errMsg string) {
	now := time.Now()
	bp := storage.BatchProgress{
		BatchID:      p.batchID,
		ProjectID:    id,
		Status:       status,
		StartedAt:    &started,
		CompletedAt:  &now,
		ErrorMessage: errMsg,
	}
	if err := p.st.SaveBatchProgress(ctx, bp); err != nil {
		slog.Warn("cron: save batch progress failed", "batch", p.batchID, "project", id, "error", err)
	}
}

// abort marks every project that never finished as failed.
func (p *progress) abort(ctx context.Context, started time.Time, cause error) {
	ids, err := p.st.GetPendingBatchProjects(ctx, p.batchID)
	if err != nil {
		slog.Warn("cron: list pending projects failed", "batch", p.batchID, "error", err)
		return
	}
	for _, id := range ids {
		p.set(ctx, id, storage.BatchFailed, started, cause.Error())
	}
}
