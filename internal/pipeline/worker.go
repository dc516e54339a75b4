package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/omrgest/internal/imaging"
	"github.com/dgallion1/omrgest/internal/omr"
	"github.com/dgallion1/omrgest/internal/store"
)

const persistTimeout = 10 * time.Second

// Worker processes a single scan job.
type Worker struct {
	pipeline *omr.Pipeline
	scans    *store.ScanRepository
	log      *slog.Logger
	imgOpts  imaging.Options
}

// NewWorker builds a worker. scans may be nil, in which case results are
// kept only in memory.
func NewWorker(p *omr.Pipeline, scans *store.ScanRepository, log *slog.Logger, imgOpts imaging.Options) *Worker {
	return &Worker{
		pipeline: p,
		scans:    scans,
		log:      log,
		imgOpts:  imgOpts,
	}
}

// Process normalizes the upload, runs recognition and records the result.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID)
	start := time.Now()

	// Phase 1: Normalize
	job.SetStatus(StatusNormalizing, "normalizing")
	doc, err := imaging.Normalize(job.FileData(), job.ContentType, w.imgOpts)

	var res omr.Result
	if err != nil {
		log.Warn("normalize failed", "error", err)
		res = omr.Failure(fmt.Errorf("normalize: %w", err), start)
	} else {
		// Phase 2: Recognize
		job.SetStatus(StatusAnalyzing, "analyzing")
		res = w.pipeline.Process(ctx, doc)
	}
	job.SetResult(res)

	// Phase 3: Persist
	if w.scans != nil {
		scan := store.Scan{
			ID:        job.ID,
			UserID:    job.UserID,
			Filename:  job.Filename,
			CreatedAt: job.CreatedAt,
			Result:    res,
		}
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		if err := w.scans.Save(saveCtx, scan); err != nil {
			log.Error("save scan failed", "error", err)
			job.AddError(fmt.Sprintf("save: %s", err))
		}
		cancel()
	}

	if !res.Success {
		for _, warning := range res.Warnings {
			job.AddError(warning)
		}
		job.SetStatus(StatusFailed, "done")
		return
	}
	log.Info("scan complete", "items", len(res.Items), "confidence_avg", res.ConfidenceAvg,
		"processing_ms", res.ProcessingTimeMs)
	job.SetStatus(StatusCompleted, "done")
}
