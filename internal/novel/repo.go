package novel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"novelhub/internal/normalize"
	"novelhub/pkg/models"
)

// PersistenceError wraps any failure inside the save transaction:
// constraint violations, connection failures, rollbacks.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Repo reconciles normalized documents against the relational store and
// serves the read API queries.
type Repo struct {
	DB *sql.DB

	// genre rows are never deleted, so committed slug->id pairs can be
	// cached for the life of the process. Ids resolved inside a pending
	// transaction stay out of the cache until that transaction commits:
	// a rollback would orphan them and poison every later save.
	genreCache *lru.Cache[string, int64]
}

func NewRepo(db *sql.DB) *Repo {
	cache, _ := lru.New[string, int64](512)
	return &Repo{DB: db, genreCache: cache}
}

// SaveDocument reconciles a normalized document with the store: one
// transaction per document, committed only when every step succeeded.
func (r *Repo) SaveDocument(ctx context.Context, doc *models.NormalizedDocument) error {
	if doc.IsOneShot {
		return r.saveOneShot(ctx, doc)
	}
	return r.saveSeries(ctx, doc)
}

// saveSeries upserts the novel row, replaces its genre links, and replaces
// its full chapter set with the latest crawl.
func (r *Repo) saveSeries(ctx context.Context, doc *models.NormalizedDocument) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var novelID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM novels WHERE source_url = ?`, doc.SourceURL).Scan(&novelID)
	switch {
	case err == nil:
		// existing novel: refresh mutable fields, keep the original slug
		// so reader URLs stay stable
		if doc.Status != "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE novels SET title = ?, synopsis = ?, word_count = ?, status = ?, updated_at = ?
				WHERE id = ?
			`, doc.Title, doc.Synopsis, doc.WordCount, doc.Status, now, novelID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE novels SET title = ?, synopsis = ?, word_count = ?, updated_at = ?
				WHERE id = ?
			`, doc.Title, doc.Synopsis, doc.WordCount, now, novelID)
		}
		if err != nil {
			return &PersistenceError{Op: "update novel", Err: err}
		}
	case errors.Is(err, sql.ErrNoRows):
		status := doc.Status
		if status == "" {
			status = models.NovelUnknown
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO novels (title, slug, synopsis, source_url, status, word_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, doc.Title, doc.Slug, doc.Synopsis, doc.SourceURL, status, doc.WordCount, now, now)
		if err != nil {
			return &PersistenceError{Op: "insert novel", Err: err}
		}
		novelID, err = res.LastInsertId()
		if err != nil {
			return &PersistenceError{Op: "insert novel", Err: err}
		}
	default:
		return &PersistenceError{Op: "lookup novel", Err: err}
	}

	resolved := make(map[string]int64)
	if err := r.replaceNovelGenres(ctx, tx, novelID, doc.Genres, resolved); err != nil {
		return err
	}

	// full replace, not a diff: re-ingestion always leaves exactly the
	// chapter set of the latest crawl
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE novel_id = ?`, novelID); err != nil {
		return &PersistenceError{Op: "delete chapters", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chapters (novel_id, chapter_number, title, content, source_url, word_count, is_one_shot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`)
	if err != nil {
		return &PersistenceError{Op: "prepare chapter insert", Err: err}
	}
	defer stmt.Close()

	for _, ch := range doc.Chapters {
		res, err := stmt.ExecContext(ctx, novelID, ch.Number, ch.Title, ch.Content, nullable(ch.SourceURL), ch.WordCount, now)
		if err != nil {
			return &PersistenceError{Op: fmt.Sprintf("insert chapter %d", ch.Number), Err: err}
		}
		if len(ch.Genres) > 0 {
			chapterID, err := res.LastInsertId()
			if err != nil {
				return &PersistenceError{Op: "insert chapter", Err: err}
			}
			if err := r.replaceChapterGenres(ctx, tx, chapterID, ch.Genres, resolved); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	r.cacheGenres(resolved)
	return nil
}

// saveOneShot updates the chapter row matching the document slug, or
// creates it parentless with chapter_number 1, then replaces its genres.
func (r *Repo) saveOneShot(ctx context.Context, doc *models.NormalizedDocument) error {
	if len(doc.Chapters) != 1 {
		return &PersistenceError{Op: "one-shot shape", Err: fmt.Errorf("expected 1 chapter, got %d", len(doc.Chapters))}
	}
	ch := doc.Chapters[0]

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	var chapterID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM chapters WHERE slug = ? AND is_one_shot = 1
	`, doc.Slug).Scan(&chapterID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE chapters SET title = ?, content = ?, word_count = ?, source_url = ?
			WHERE id = ?
		`, doc.Title, ch.Content, ch.WordCount, doc.SourceURL, chapterID); err != nil {
			return &PersistenceError{Op: "update one-shot", Err: err}
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (novel_id, chapter_number, title, slug, content, source_url, word_count, is_one_shot, created_at)
			VALUES (NULL, 1, ?, ?, ?, ?, ?, 1, ?)
		`, doc.Title, doc.Slug, ch.Content, doc.SourceURL, ch.WordCount, time.Now().UTC())
		if err != nil {
			return &PersistenceError{Op: "insert one-shot", Err: err}
		}
		chapterID, err = res.LastInsertId()
		if err != nil {
			return &PersistenceError{Op: "insert one-shot", Err: err}
		}
	default:
		return &PersistenceError{Op: "lookup one-shot", Err: err}
	}

	resolved := make(map[string]int64)
	genres := mergeSlugs(doc.Genres, ch.Genres)
	if err := r.replaceChapterGenres(ctx, tx, chapterID, genres, resolved); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	r.cacheGenres(resolved)
	return nil
}

func (r *Repo) replaceNovelGenres(ctx context.Context, tx *sql.Tx, novelID int64, slugs []string, resolved map[string]int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM novel_genres WHERE novel_id = ?`, novelID); err != nil {
		return &PersistenceError{Op: "clear novel genres", Err: err}
	}
	for _, slug := range slugs {
		genreID, err := r.genreID(ctx, tx, slug, resolved)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO novel_genres (novel_id, genre_id) VALUES (?, ?)
		`, novelID, genreID); err != nil {
			return &PersistenceError{Op: "attach genre " + slug, Err: err}
		}
	}
	return nil
}

func (r *Repo) replaceChapterGenres(ctx context.Context, tx *sql.Tx, chapterID int64, slugs []string, resolved map[string]int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_genres WHERE chapter_id = ?`, chapterID); err != nil {
		return &PersistenceError{Op: "clear chapter genres", Err: err}
	}
	for _, slug := range slugs {
		genreID, err := r.genreID(ctx, tx, slug, resolved)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chapter_genres (chapter_id, genre_id) VALUES (?, ?)
		`, chapterID, genreID); err != nil {
			return &PersistenceError{Op: "attach genre " + slug, Err: err}
		}
	}
	return nil
}

// genreID gets or lazily creates the genre row for a slug. Two jobs racing
// to create the same slug both land on the surviving row: the insert is a
// no-op on conflict and the id is re-read afterwards. Ids resolved here go
// into the resolved staging map, not the cache; the caller promotes them
// after commit so a rollback cannot leave dangling ids cached.
func (r *Repo) genreID(ctx context.Context, tx *sql.Tx, slug string, resolved map[string]int64) (int64, error) {
	if id, ok := r.genreCache.Get(slug); ok {
		return id, nil
	}
	if id, ok := resolved[slug]; ok {
		return id, nil
	}

	name := normalize.GenreDisplayName(slug)
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO genres (name, slug) VALUES (?, ?)
	`, name, slug); err != nil {
		return 0, &PersistenceError{Op: "create genre " + slug, Err: err}
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM genres WHERE slug = ?`, slug).Scan(&id); err != nil {
		return 0, &PersistenceError{Op: "lookup genre " + slug, Err: err}
	}

	resolved[slug] = id
	return id, nil
}

func (r *Repo) cacheGenres(resolved map[string]int64) {
	for slug, id := range resolved {
		r.genreCache.Add(slug, id)
	}
}

func mergeSlugs(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
