package normalize

import (
	"fmt"
	"strings"

	"novelhub/pkg/models"
)

// ValidationError reports a raw document that cannot be normalized:
// missing required fields or a malformed chapter shape.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Normalizer turns a spider's RawDocument into a NormalizedDocument ready
// for persistence. It is pure: the same input always produces the same
// output.
type Normalizer struct {
	cleaner *Sanitizer
}

func New() *Normalizer {
	return &Normalizer{cleaner: NewSanitizer()}
}

// Document validates and normalizes a raw document: required fields, slug,
// genre taxonomy, per-chapter sanitized content and word counts.
func (n *Normalizer) Document(raw *models.RawDocument) (*models.NormalizedDocument, error) {
	if raw == nil {
		return nil, &ValidationError{Reason: "missing document"}
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, &ValidationError{Reason: "missing required field: title"}
	}
	if strings.TrimSpace(raw.SourceURL) == "" {
		return nil, &ValidationError{Reason: "missing required field: source_url"}
	}

	chapters := raw.Chapters
	if raw.IsOneShot {
		// a one-shot that only carries direct content gets a single
		// synthetic chapter titled after the work
		if len(chapters) == 0 && strings.TrimSpace(raw.Content) != "" {
			chapters = []models.RawChapter{{
				Number:  1,
				Title:   title,
				URL:     raw.SourceURL,
				Content: raw.Content,
			}}
		}
		if len(chapters) != 1 {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("one-shot must have exactly one chapter, got %d", len(chapters)),
			}
		}
	} else if len(chapters) == 0 {
		return nil, &ValidationError{Reason: "novel must have at least one chapter"}
	}

	doc := &models.NormalizedDocument{
		JobID:     raw.JobID,
		Title:     title,
		Slug:      Slugify(title),
		SourceURL: raw.SourceURL,
		Synopsis:  strings.TrimSpace(raw.Synopsis),
		Genres:    NormalizeGenres(raw.Genres),
		IsOneShot: raw.IsOneShot,
	}

	// status stays empty when the source reported none, so a re-ingestion
	// never downgrades an existing record to "unknown"
	if strings.TrimSpace(raw.StatusText) != "" {
		doc.Status = models.ParseNovelStatus(raw.StatusText)
	}

	doc.Chapters = make([]models.NormalizedChapter, 0, len(chapters))
	for _, ch := range chapters {
		clean := n.cleaner.CleanHTML(ch.Content)
		wc := n.cleaner.CountWords(clean)

		doc.Chapters = append(doc.Chapters, models.NormalizedChapter{
			Number:    ch.Number,
			Title:     strings.TrimSpace(ch.Title),
			SourceURL: ch.URL,
			Content:   clean,
			WordCount: wc,
			Genres:    NormalizeGenres(ch.Genres),
		})
		doc.WordCount += wc
	}

	return doc, nil
}
