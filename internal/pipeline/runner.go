package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatherhub/eventdir/config"
	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/metrics"
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/internal/snapshot"
)

// Runner executes one full aggregation pass: fan-out fetch, merge,
// diagnostics, and the atomic snapshot swap.
type Runner struct {
	orch   *Orchestrator
	store  *snapshot.Store
	groups []config.GroupRef
}

// NewRunner creates a runner over the configured group list.
func NewRunner(orch *Orchestrator, store *snapshot.Store, groups []config.GroupRef) *Runner {
	return &Runner{orch: orch, store: store, groups: groups}
}

// RunOnce performs a single aggregation pass and publishes the result.
// Group-scoped fetch failures are folded into diagnostics; a returned
// error means the pass itself failed and no snapshot was swapped in.
func (r *Runner) RunOnce(ctx context.Context) (models.Diagnostics, error) {
	start := time.Now()

	results := r.orch.FetchAll(ctx, r.groups)
	processed, failed := CountResults(results)

	prev := r.store.Current()
	data, errs := Merge(prev.Data, results)

	hash, err := Hash(data)
	if err != nil {
		// A hash failure is a programming defect, not an operational
		// condition: fail the run instead of publishing a corrupt snapshot.
		return models.Diagnostics{}, fmt.Errorf("hash aggregated data: %w", err)
	}

	diag := models.Diagnostics{
		RunID:           uuid.New().String(),
		LastRunAt:       start.UTC(),
		DurationMs:      time.Since(start).Milliseconds(),
		GroupsProcessed: processed,
		GroupsFailed:    failed,
		DataHash:        hash,
		Errors:          errs,
	}

	r.store.Publish(ctx, data, diag)

	duration := time.Since(start)
	metrics.RecordAggregationRun(duration, processed, failed)
	metrics.SetSnapshotGroups(float64(len(data)))
	logger.Info("Aggregation run completed",
		"run_id", diag.RunID,
		"duration_ms", duration.Milliseconds(),
		"groups_processed", processed,
		"groups_failed", failed,
		"data_hash", hash,
	)

	return diag, nil
}
