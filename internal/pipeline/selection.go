package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/geo"
	"github.com/sells-group/prospector/internal/model"
)

// runSelection resolves the job's geography into the candidate tile list and
// records the total. The tile query itself is deterministic, so discovery
// re-derives the same list from the store rather than carrying it in memory
// across the checkpoint.
func (o *Orchestrator) runSelection(ctx context.Context, job *model.Job) error {
	tiles, err := geo.SelectTiles(ctx, o.store, job, o.cfg.Pipeline.MaxZipTiles)
	if err != nil {
		return eris.Wrap(err, "pipeline: selection")
	}

	// A crash between this write and the stage checkpoint reruns selection;
	// adding only the difference keeps the total from inflating.
	delta := len(tiles) - job.Counters.ZipsTotal
	if delta > 0 {
		if err := o.store.AddJobCounters(ctx, job.ID, model.JobCounters{ZipsTotal: delta}); err != nil {
			return eris.Wrap(err, "pipeline: record tile count")
		}
	}
	return nil
}
