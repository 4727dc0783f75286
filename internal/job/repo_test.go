package job

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "https://example.com/fiction/1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusQueued, created.Status)

	got, err := r.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "https://example.com/fiction/1", got.SourceURL)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Zero(t, got.RetryCount)
}

func TestGetNotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j, err := r.Create(ctx, "https://example.com/fiction/2")
	require.NoError(t, err)

	require.NoError(t, r.SetStatus(ctx, j.ID, models.StatusSaving, ""))
	got, err := r.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSaving, got.Status)
	assert.Empty(t, got.ErrorMessage)

	require.NoError(t, r.SetStatus(ctx, j.ID, models.StatusError, "boom"))
	got, err = r.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestSetStatusTruncatesMessage(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j, err := r.Create(ctx, "https://example.com/fiction/3")
	require.NoError(t, err)

	long := strings.Repeat("e", 5000)
	require.NoError(t, r.SetStatus(ctx, j.ID, models.StatusError, long))

	got, err := r.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, got.ErrorMessage, 1000)
}

func TestSetStatusNotFound(t *testing.T) {
	r := newTestRepo(t)

	err := r.SetStatus(context.Background(), "missing", models.StatusDone, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimWinsOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j, err := r.Create(ctx, "https://example.com/fiction/4")
	require.NoError(t, err)

	require.NoError(t, r.Claim(ctx, j.ID))

	// second claim loses: the job is no longer queued
	assert.ErrorIs(t, r.Claim(ctx, j.ID), ErrNotClaimable)

	got, err := r.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCrawling, got.Status)
}

func TestListQueuedFiltersTerminal(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	queued, err := r.Create(ctx, "https://example.com/a")
	require.NoError(t, err)
	done, err := r.Create(ctx, "https://example.com/b")
	require.NoError(t, err)
	failed, err := r.Create(ctx, "https://example.com/c")
	require.NoError(t, err)

	require.NoError(t, r.SetStatus(ctx, done.ID, models.StatusDone, ""))
	require.NoError(t, r.SetStatus(ctx, failed.ID, models.StatusError, "x"))

	jobs, err := r.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, queued.ID, jobs[0].ID)
}
