package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"novelhub/internal/events"
	"novelhub/internal/job"
	"novelhub/internal/spider"
	"novelhub/pkg/models"
)

// Dispatcher owns the handoff from submissions to workers: it validates
// the URL, pushes the job id onto the queue, and periodically sweeps the
// database for queued jobs nobody is going to wake up for.
type Dispatcher struct {
	Jobs    *job.Repo
	Spiders *spider.Registry
	Queue   *Queue
	Hub     *events.Hub
	Metrics *Metrics

	cron *cron.Cron
	once sync.Once
}

// Dispatch validates and enqueues a freshly created job. Validation or
// queue failures move the job straight to error so the caller always sees
// a truthful status.
func (d *Dispatcher) Dispatch(ctx context.Context, j *models.IngestionJob) error {
	if !d.Spiders.IsSupported(j.SourceURL) {
		return d.reject(ctx, j.ID, fmt.Sprintf("no spider registered for %s", j.SourceURL))
	}

	if err := d.Queue.Push(j.ID); err != nil {
		return d.reject(ctx, j.ID, err.Error())
	}
	d.Metrics.SetQueueDepth(d.Queue.Len())
	return nil
}

func (d *Dispatcher) reject(ctx context.Context, jobID, reason string) error {
	if err := d.Jobs.SetStatus(ctx, jobID, models.StatusError, reason); err != nil {
		log.Printf("[dispatch] job %s: recording rejection failed: %v", jobID, err)
	} else if d.Hub != nil {
		if j, err := d.Jobs.Get(ctx, jobID); err == nil {
			d.Hub.Broadcast(events.NewJobEvent(j))
		}
	}
	return fmt.Errorf("dispatch job %s: %s", jobID, reason)
}

// ProcessQueuedJobs re-enqueues every job still strictly in queued. Run at
// startup it recovers jobs stranded by a crash or restart; on a schedule
// it catches anything that slipped through a full queue. Jobs already in
// flight are never touched: the sweep reads queued rows only, and the
// worker claim is atomic, so a double enqueue costs one wasted claim at
// most.
func (d *Dispatcher) ProcessQueuedJobs(ctx context.Context) (int, error) {
	jobs, err := d.Jobs.ListQueued(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	requeued := 0
	for i := range jobs {
		j := &jobs[i]
		if !d.Spiders.IsSupported(j.SourceURL) {
			// spider set changed since submission
			_ = d.reject(ctx, j.ID, fmt.Sprintf("no spider registered for %s", j.SourceURL))
			continue
		}
		if err := d.Queue.Push(j.ID); err != nil {
			// queue full again; leave the row queued for the next sweep
			log.Printf("[dispatch] sweep: %v", err)
			break
		}
		requeued++
	}

	if requeued > 0 {
		log.Printf("[dispatch] sweep re-enqueued %d job(s)", requeued)
	}
	d.Metrics.SetQueueDepth(d.Queue.Len())
	return requeued, nil
}

// StartSweeper runs an immediate recovery sweep, then repeats it on the
// given interval until Stop is called.
func (d *Dispatcher) StartSweeper(ctx context.Context, every time.Duration) {
	d.once.Do(func() {
		if _, err := d.ProcessQueuedJobs(ctx); err != nil {
			log.Printf("[dispatch] startup sweep: %v", err)
		}

		d.cron = cron.New()
		_, err := d.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
			if _, err := d.ProcessQueuedJobs(ctx); err != nil {
				log.Printf("[dispatch] scheduled sweep: %v", err)
			}
		})
		if err != nil {
			log.Printf("[dispatch] schedule sweep: %v", err)
			return
		}
		d.cron.Start()
	})
}

// Stop halts the scheduled sweeps. Running sweeps finish.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}
