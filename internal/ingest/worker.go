package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"novelhub/internal/events"
	"novelhub/internal/job"
	"novelhub/internal/normalize"
	"novelhub/internal/spider"
	"novelhub/pkg/models"
)

// DocumentSaver is the slice of the novel repo the pipeline needs.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, doc *models.NormalizedDocument) error
}

// Worker drains the queue and runs each claimed job through the pipeline:
// crawl, normalize, save. Every stage bump is committed before the stage
// runs, so a crash leaves the job showing the stage it died in.
type Worker struct {
	Jobs       *job.Repo
	Novels     DocumentSaver
	Spiders    *spider.Registry
	Normalizer *normalize.Normalizer
	Queue      *Queue
	Hub        *events.Hub
	Metrics    *Metrics

	// CrawlTimeout bounds the crawl stage of a single job.
	CrawlTimeout time.Duration
}

// Run consumes the queue until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-w.Queue.C():
			if !ok {
				return
			}
			w.Metrics.SetQueueDepth(w.Queue.Len())
			w.process(ctx, jobID)
		}
	}
}

// process runs one job end to end. All errors terminate in the job row;
// process itself never fails.
func (w *Worker) process(ctx context.Context, jobID string) {
	start := time.Now()

	if err := w.Jobs.Claim(ctx, jobID); err != nil {
		if errors.Is(err, job.ErrNotClaimable) {
			// another worker (or a previous life of this process) won
			log.Printf("[ingest] job %s already claimed, skipping", jobID)
			return
		}
		log.Printf("[ingest] claim %s: %v", jobID, err)
		return
	}
	w.announce(ctx, jobID)

	j, err := w.Jobs.Get(ctx, jobID)
	if err != nil {
		w.fail(ctx, jobID, "crawl", err, start)
		return
	}

	sp, err := w.Spiders.Resolve(j.SourceURL)
	if err != nil {
		w.fail(ctx, jobID, "crawl", err, start)
		return
	}

	crawlCtx, cancel := context.WithTimeout(ctx, w.crawlTimeout())
	raw, err := sp.Extract(crawlCtx, j.SourceURL, jobID)
	cancel()
	if err != nil {
		w.fail(ctx, jobID, "crawl", err, start)
		return
	}

	if err := w.setStatus(ctx, jobID, models.StatusParsing); err != nil {
		return
	}
	doc, err := w.Normalizer.Document(raw)
	if err != nil {
		w.fail(ctx, jobID, "parse", err, start)
		return
	}

	// saving is recorded before the content transaction opens; a crash
	// inside SaveDocument leaves the job visibly stuck in saving
	if err := w.setStatus(ctx, jobID, models.StatusSaving); err != nil {
		return
	}
	if err := w.Novels.SaveDocument(ctx, doc); err != nil {
		w.fail(ctx, jobID, "save", err, start)
		return
	}

	if err := w.Jobs.SetStatus(ctx, jobID, models.StatusDone, ""); err != nil {
		log.Printf("[ingest] job %s finished but status write failed: %v", jobID, err)
	}
	w.announce(ctx, jobID)
	w.Metrics.JobFinished("done", time.Since(start))
	w.Metrics.AddChapters(len(doc.Chapters))
	log.Printf("[ingest] job %s done: %q (%d chapters, %d words)",
		jobID, doc.Title, len(doc.Chapters), doc.WordCount)
}

// fail records the terminal error state. The original stage error is what
// matters; a failure writing the status is logged and swallowed so it can
// never mask it.
func (w *Worker) fail(ctx context.Context, jobID, stage string, cause error, start time.Time) {
	log.Printf("[ingest] job %s failed in %s: %v", jobID, stage, cause)
	w.Metrics.StageError(stage)
	w.Metrics.JobFinished("error", time.Since(start))

	if err := w.Jobs.SetStatus(ctx, jobID, models.StatusError, cause.Error()); err != nil {
		log.Printf("[ingest] job %s: recording error state failed: %v", jobID, err)
		return
	}
	w.announce(ctx, jobID)
}

// setStatus bumps an intermediate stage. A write failure aborts the job
// quietly: the row keeps its previous stage and the next sweep or operator
// can see where it stalled.
func (w *Worker) setStatus(ctx context.Context, jobID string, status models.IngestionStatus) error {
	if err := w.Jobs.SetStatus(ctx, jobID, status, ""); err != nil {
		log.Printf("[ingest] job %s: set status %s: %v", jobID, status, err)
		return err
	}
	w.announce(ctx, jobID)
	return nil
}

func (w *Worker) announce(ctx context.Context, jobID string) {
	if w.Hub == nil {
		return
	}
	j, err := w.Jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	w.Hub.Broadcast(events.NewJobEvent(j))
}

func (w *Worker) crawlTimeout() time.Duration {
	if w.CrawlTimeout > 0 {
		return w.CrawlTimeout
	}
	return 60 * time.Minute
}
