package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/models"
)

func newRouter(t *testing.T, p *pipeline) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(p.jobs, p.novels, p.dispatch)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitCreatesJob(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)

	w := postJSON(r, "/api/ingest", `{"url":"https://example.com/novel/1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Job models.IngestionJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Job.ID)
	assert.Equal(t, models.StatusQueued, resp.Job.Status)

	select {
	case id := <-p.worker.Queue.C():
		assert.Equal(t, resp.Job.ID, id)
	default:
		t.Fatal("job was not enqueued")
	}
}

func TestSubmitRejectsBadURL(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)

	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/api/ingest", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/api/ingest", `{"url":"not a url"}`).Code)
}

func TestSubmitUnsupportedDomainReportsErrorJob(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)

	w := postJSON(r, "/api/ingest", `{"url":"https://nowhere.invalid/novel/1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Job models.IngestionJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusError, resp.Job.Status)
	assert.Contains(t, resp.Job.ErrorMessage, "no spider registered")
}

func TestSubmitShortCircuitsExistingNovel(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)
	ctx := context.Background()

	// run one ingestion to completion so the novel exists
	j, err := p.jobs.Create(ctx, "https://example.com/novel/1")
	require.NoError(t, err)
	require.NoError(t, p.dispatch.Dispatch(ctx, j))
	<-p.worker.Queue.C()
	p.worker.process(ctx, j.ID)

	w := postJSON(r, "/api/ingest", `{"url":"https://example.com/novel/1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		JobID   string                 `json:"job_id"`
		Status  models.IngestionStatus `json:"status"`
		Message string                 `json:"message"`
		Novel   *models.Novel          `json:"novel"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.JobID, "duplicate submission must not create a job")
	assert.Equal(t, models.StatusDone, resp.Status)
	assert.Contains(t, resp.Message, "already exists")
	require.NotNil(t, resp.Novel)
	assert.Equal(t, "Stub Novel", resp.Novel.Title)
}

func TestSubmitRetriesAfterFailedJob(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)
	ctx := context.Background()

	j, err := p.jobs.Create(ctx, "https://example.com/novel/1")
	require.NoError(t, err)
	require.NoError(t, p.jobs.SetStatus(ctx, j.ID, models.StatusError, "crawl failed"))

	// the failed history must not block a fresh attempt
	w := postJSON(r, "/api/ingest", `{"url":"https://example.com/novel/1"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestGetJob(t *testing.T) {
	p := newPipeline(t, &stubSpider{doc: seriesRaw()})
	r := newRouter(t, p)

	j, err := p.jobs.Create(context.Background(), "https://example.com/novel/1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/"+j.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
