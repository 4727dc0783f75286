package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/job"
	"novelhub/internal/normalize"
	"novelhub/internal/novel"
	"novelhub/internal/spider"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

type stubSpider struct {
	doc *models.RawDocument
	err error
}

func (s *stubSpider) Name() string { return "stub" }

func (s *stubSpider) Extract(ctx context.Context, url, jobID string) (*models.RawDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	doc := *s.doc
	doc.JobID = jobID
	doc.SourceURL = url
	return &doc, nil
}

type pipeline struct {
	jobs      *job.Repo
	novels    *novel.Repo
	worker    *Worker
	dispatch  *Dispatcher
	queueSize int
}

func newPipeline(t *testing.T, s spider.Spider) *pipeline {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := spider.NewRegistry()
	reg.Register(s, "example.com")

	jobs := job.NewRepo(db)
	novels := novel.NewRepo(db)
	queue := NewQueue(4)
	metrics := NewMetrics()

	return &pipeline{
		jobs:   jobs,
		novels: novels,
		worker: &Worker{
			Jobs:         jobs,
			Novels:       novels,
			Spiders:      reg,
			Normalizer:   normalize.New(),
			Queue:        queue,
			Metrics:      metrics,
			CrawlTimeout: time.Minute,
		},
		dispatch: &Dispatcher{
			Jobs:    jobs,
			Spiders: reg,
			Queue:   queue,
			Metrics: metrics,
		},
		queueSize: 4,
	}
}

func seriesRaw() *models.RawDocument {
	return &models.RawDocument{
		Title:    "Stub Novel",
		Synopsis: "A novel from a stub.",
		Genres:   []string{"Action", "Sci Fi"},
		Chapters: []models.RawChapter{
			{Number: 1, Title: "One", Content: "<p>alpha beta gamma</p>"},
			{Number: 2, Title: "Two", Content: "<script>x()</script><p>delta epsilon</p>"},
		},
	}
}

func TestWorkerProcessesJobEndToEnd(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/1")
	require.NoError(t, err)
	require.NoError(t, p.dispatch.Dispatch(ctx, j))

	p.worker.process(ctx, j.ID)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, got.Status)
	assert.Empty(t, got.ErrorMessage)

	n, err := p.novels.GetNovelBySourceURL(ctx, "https://example.com/novel/1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Stub Novel", n.Title)
	assert.Equal(t, 2, n.ChapterCount)
	assert.Equal(t, 5, n.WordCount, "word count excludes stripped script tags")

	// genre normalization ran: "Sci Fi" collapsed to the canonical slug
	slugs := make([]string, 0, len(n.Genres))
	for _, g := range n.Genres {
		slugs = append(slugs, g.Slug)
	}
	assert.Equal(t, []string{"action", "science-fiction"}, slugs)
}

func TestWorkerRecordsCrawlFailure(t *testing.T) {
	p := newPipeline(t, &stubSpider{err: errors.New("site returned 503")})
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/2")
	require.NoError(t, err)
	require.NoError(t, p.dispatch.Dispatch(ctx, j))

	p.worker.process(ctx, j.ID)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "503")
}

func TestWorkerRecordsParseFailure(t *testing.T) {
	raw := seriesRaw()
	raw.Title = "" // normalizer rejects documents without a title
	p := newPipeline(t, &stubSpider{doc: raw})
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/3")
	require.NoError(t, err)
	require.NoError(t, p.dispatch.Dispatch(ctx, j))

	p.worker.process(ctx, j.ID)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "validation")
}

func TestWorkerSkipsAlreadyClaimedJob(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/4")
	require.NoError(t, err)
	require.NoError(t, p.jobs.Claim(ctx, j.ID))

	p.worker.process(ctx, j.ID)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCrawling, got.Status, "second claim must not disturb the job")
}

func TestDispatchRejectsUnsupportedURL(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://unknown-site.net/novel/1")
	require.NoError(t, err)

	err = p.dispatch.Dispatch(ctx, j)
	require.Error(t, err)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "no spider registered")
}

func TestDispatchRejectsWhenQueueFull(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx := context.Background()

	for i := 0; i < p.queueSize; i++ {
		j, err := p.jobs.Create(ctx, "https://example.com/novel/fill")
		require.NoError(t, err)
		require.NoError(t, p.dispatch.Dispatch(ctx, j))
	}

	j, err := p.jobs.Create(ctx, "https://example.com/novel/overflow")
	require.NoError(t, err)
	err = p.dispatch.Dispatch(ctx, j)
	require.Error(t, err)

	got, err := p.jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "queue full")
}

func TestSweepRequeuesOnlyQueuedJobs(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx := context.Background()

	queued, err := p.jobs.Create(ctx, "https://example.com/novel/q")
	require.NoError(t, err)
	done, err := p.jobs.Create(ctx, "https://example.com/novel/d")
	require.NoError(t, err)
	require.NoError(t, p.jobs.SetStatus(ctx, done.ID, models.StatusDone, ""))
	failed, err := p.jobs.Create(ctx, "https://example.com/novel/e")
	require.NoError(t, err)
	require.NoError(t, p.jobs.SetStatus(ctx, failed.ID, models.StatusError, "boom"))

	n, err := p.dispatch.ProcessQueuedJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case id := <-p.worker.Queue.C():
		assert.Equal(t, queued.ID, id)
	default:
		t.Fatal("expected the queued job on the queue")
	}
	assert.Zero(t, p.worker.Queue.Len())
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/run")
	require.NoError(t, err)
	require.NoError(t, p.dispatch.Dispatch(ctx, j))

	var wg sync.WaitGroup
	wg.Add(1)
	go p.worker.Run(ctx, &wg)

	require.Eventually(t, func() bool {
		got, err := p.jobs.Get(context.Background(), j.ID)
		return err == nil && got.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()

	got, err := p.jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, got.Status)
}
