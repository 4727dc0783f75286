package novel

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"novelhub/pkg/models"
)

var ErrNotFound = errors.New("novel: not found")

// ListQuery filters the novel catalog. Zero values mean "no filter".
type ListQuery struct {
	Search    string
	GenreSlug string
	Status    string
	Limit     int
	Offset    int
}

func (q ListQuery) normalized() ListQuery {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (r *Repo) ListNovels(ctx context.Context, q ListQuery) ([]models.Novel, int, error) {
	q = q.normalized()

	var (
		where []string
		args  []any
	)
	if q.Search != "" {
		where = append(where, `(n.title LIKE ? OR n.synopsis LIKE ?)`)
		pat := "%" + q.Search + "%"
		args = append(args, pat, pat)
	}
	if q.GenreSlug != "" {
		where = append(where, `n.id IN (
			SELECT ng.novel_id FROM novel_genres ng
			JOIN genres g ON g.id = ng.genre_id
			WHERE g.slug = ?
		)`)
		args = append(args, q.GenreSlug)
	}
	if q.Status != "" {
		where = append(where, `n.status = ?`)
		args = append(args, q.Status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM novels n`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT n.id, n.title, n.slug, n.synopsis, n.source_url, n.status, n.word_count,
		       n.created_at, n.updated_at,
		       (SELECT COUNT(*) FROM chapters c WHERE c.novel_id = n.id) AS chapter_count
		FROM novels n`+clause+`
		ORDER BY n.updated_at DESC
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var novels []models.Novel
	for rows.Next() {
		var n models.Novel
		if err := rows.Scan(&n.ID, &n.Title, &n.Slug, &n.Synopsis, &n.SourceURL, &n.Status,
			&n.WordCount, &n.CreatedAt, &n.UpdatedAt, &n.ChapterCount); err != nil {
			return nil, 0, err
		}
		novels = append(novels, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range novels {
		genres, err := r.novelGenres(ctx, novels[i].ID)
		if err != nil {
			return nil, 0, err
		}
		novels[i].Genres = genres
	}
	return novels, total, nil
}

func (r *Repo) GetNovelBySlug(ctx context.Context, slug string) (*models.Novel, error) {
	return r.getNovel(ctx, `n.slug = ?`, slug)
}

// GetNovelBySourceURL returns nil, nil when no novel matches; callers use
// it to short-circuit duplicate submissions.
func (r *Repo) GetNovelBySourceURL(ctx context.Context, sourceURL string) (*models.Novel, error) {
	n, err := r.getNovel(ctx, `n.source_url = ?`, sourceURL)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return n, err
}

func (r *Repo) getNovel(ctx context.Context, cond string, arg any) (*models.Novel, error) {
	var n models.Novel
	err := r.DB.QueryRowContext(ctx, `
		SELECT n.id, n.title, n.slug, n.synopsis, n.source_url, n.status, n.word_count,
		       n.created_at, n.updated_at,
		       (SELECT COUNT(*) FROM chapters c WHERE c.novel_id = n.id) AS chapter_count
		FROM novels n
		WHERE `+cond, arg).Scan(&n.ID, &n.Title, &n.Slug, &n.Synopsis, &n.SourceURL, &n.Status,
		&n.WordCount, &n.CreatedAt, &n.UpdatedAt, &n.ChapterCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	genres, err := r.novelGenres(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	n.Genres = genres
	return &n, nil
}

// ListChapters returns a novel's chapters without their content, ordered by
// chapter number.
func (r *Repo) ListChapters(ctx context.Context, novelID int64, limit, offset int) ([]models.Chapter, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE novel_id = ?`, novelID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, novel_id, chapter_number, title, source_url, word_count, is_one_shot, created_at
		FROM chapters
		WHERE novel_id = ?
		ORDER BY chapter_number
		LIMIT ? OFFSET ?
	`, novelID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var (
			c         models.Chapter
			sourceURL sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.NovelID, &c.ChapterNumber, &c.Title, &sourceURL,
			&c.WordCount, &c.IsOneShot, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		c.SourceURL = sourceURL.String
		chapters = append(chapters, c)
	}
	return chapters, total, rows.Err()
}

func (r *Repo) GetChapter(ctx context.Context, novelID int64, number int) (*models.Chapter, error) {
	return r.getChapter(ctx, `novel_id = ? AND chapter_number = ?`, novelID, number)
}

func (r *Repo) getChapter(ctx context.Context, cond string, args ...any) (*models.Chapter, error) {
	var (
		c         models.Chapter
		slug      sql.NullString
		sourceURL sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, novel_id, chapter_number, title, slug, content, source_url, word_count, is_one_shot, created_at
		FROM chapters
		WHERE `+cond, args...).Scan(&c.ID, &c.NovelID, &c.ChapterNumber, &c.Title, &slug,
		&c.Content, &sourceURL, &c.WordCount, &c.IsOneShot, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Slug = slug.String
	c.SourceURL = sourceURL.String

	genres, err := r.chapterGenres(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Genres = genres
	return &c, nil
}

// ListOneShots returns standalone chapters without their content.
func (r *Repo) ListOneShots(ctx context.Context, limit, offset int) ([]models.Chapter, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE is_one_shot = 1`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, chapter_number, title, slug, source_url, word_count, created_at
		FROM chapters
		WHERE is_one_shot = 1
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var (
			c         models.Chapter
			slug      sql.NullString
			sourceURL sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ChapterNumber, &c.Title, &slug, &sourceURL, &c.WordCount, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		c.Slug = slug.String
		c.SourceURL = sourceURL.String
		c.IsOneShot = true
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range chapters {
		genres, err := r.chapterGenres(ctx, chapters[i].ID)
		if err != nil {
			return nil, 0, err
		}
		chapters[i].Genres = genres
	}
	return chapters, total, nil
}

func (r *Repo) GetOneShotBySlug(ctx context.Context, slug string) (*models.Chapter, error) {
	return r.getChapter(ctx, `slug = ? AND is_one_shot = 1`, slug)
}

// GetOneShotBySourceURL returns nil, nil when no standalone chapter matches.
func (r *Repo) GetOneShotBySourceURL(ctx context.Context, sourceURL string) (*models.Chapter, error) {
	c, err := r.getChapter(ctx, `source_url = ? AND is_one_shot = 1`, sourceURL)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (r *Repo) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, g.slug,
		       (SELECT COUNT(*) FROM novel_genres ng WHERE ng.genre_id = g.id) AS novel_count
		FROM genres g
		ORDER BY g.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug, &g.NovelCount); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

func (r *Repo) GetGenreBySlug(ctx context.Context, slug string) (*models.Genre, error) {
	var g models.Genre
	err := r.DB.QueryRowContext(ctx, `
		SELECT g.id, g.name, g.slug,
		       (SELECT COUNT(*) FROM novel_genres ng WHERE ng.genre_id = g.id) AS novel_count
		FROM genres g
		WHERE g.slug = ?
	`, slug).Scan(&g.ID, &g.Name, &g.Slug, &g.NovelCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repo) novelGenres(ctx context.Context, novelID int64) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, g.slug
		FROM genres g
		JOIN novel_genres ng ON ng.genre_id = g.id
		WHERE ng.novel_id = ?
		ORDER BY g.slug
	`, novelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

func (r *Repo) chapterGenres(ctx context.Context, chapterID int64) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, g.slug
		FROM genres g
		JOIN chapter_genres cg ON cg.genre_id = g.id
		WHERE cg.chapter_id = ?
		ORDER BY g.slug
	`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}
