package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novelhub/pkg/models"
)

// maxErrorLen bounds stored error messages so a runaway stack trace cannot
// bloat the job row.
const maxErrorLen = 1000

var (
	ErrNotFound = errors.New("job not found")
	// ErrNotClaimable means another worker already moved the job out of
	// queued, or the id does not exist.
	ErrNotClaimable = errors.New("job not claimable")
)

// Repo persists IngestionJob records. Status writes always commit on their
// own connection, never inside a content transaction, so a crash mid-save
// leaves the job visibly stuck in "saving" for operators.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Create inserts a new queued job for the URL and returns it.
func (r *Repo) Create(ctx context.Context, sourceURL string) (*models.IngestionJob, error) {
	now := time.Now().UTC()
	j := &models.IngestionJob{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (id, source_url, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, j.ID, j.SourceURL, j.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return j, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.IngestionJob, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, source_url, status, COALESCE(error_message, ''), retry_count, created_at, updated_at
		FROM ingestion_jobs
		WHERE id = ?
	`, id)
	return scanJob(row)
}

// SetStatus moves the job to the given status and bumps updated_at. The
// error message, when present, is truncated to a bounded length.
func (r *Repo) SetStatus(ctx context.Context, id string, status models.IngestionStatus, errMsg string) error {
	errMsg = Truncate(errMsg)

	var res sql.Result
	var err error
	if errMsg != "" {
		res, err = r.DB.ExecContext(ctx, `
			UPDATE ingestion_jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
		`, status, errMsg, time.Now().UTC(), id)
	} else {
		res, err = r.DB.ExecContext(ctx, `
			UPDATE ingestion_jobs SET status = ?, updated_at = ? WHERE id = ?
		`, status, time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim atomically transitions a job from queued to crawling. Exactly one
// caller wins; everyone else gets ErrNotClaimable.
func (r *Repo) Claim(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE ingestion_jobs SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.StatusCrawling, time.Now().UTC(), id, models.StatusQueued)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if affected == 0 {
		return ErrNotClaimable
	}
	return nil
}

// ListQueued returns jobs still strictly in queued, oldest first. Used by
// the recovery sweep.
func (r *Repo) ListQueued(ctx context.Context) ([]models.IngestionJob, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, source_url, status, COALESCE(error_message, ''), retry_count, created_at, updated_at
		FROM ingestion_jobs
		WHERE status = ?
		ORDER BY created_at ASC
	`, models.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionJob
	for rows.Next() {
		var j models.IngestionJob
		var status string
		if err := rows.Scan(&j.ID, &j.SourceURL, &status, &j.ErrorMessage, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan queued job: %w", err)
		}
		j.Status = models.IngestionStatus(status)
		out = append(out, j)
	}
	return out, rows.Err()
}

// Truncate caps an error message at the stored bound.
func Truncate(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.IngestionJob, error) {
	var j models.IngestionJob
	var status string
	err := row.Scan(&j.ID, &j.SourceURL, &status, &j.ErrorMessage, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Status = models.IngestionStatus(status)
	return &j, nil
}
