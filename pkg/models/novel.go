package models

import (
	"strings"
	"time"
)

// NovelStatus is the publication status reported by the source site.
type NovelStatus string

const (
	NovelOngoing   NovelStatus = "ongoing"
	NovelCompleted NovelStatus = "completed"
	NovelUnknown   NovelStatus = "unknown"
)

// ParseNovelStatus maps free-form status text from a source into a
// NovelStatus. Anything unrecognized is "unknown".
func ParseNovelStatus(s string) NovelStatus {
	switch NovelStatus(strings.ToLower(strings.TrimSpace(s))) {
	case NovelOngoing:
		return NovelOngoing
	case NovelCompleted:
		return NovelCompleted
	default:
		return NovelUnknown
	}
}

// Novel is a multi-chapter work persisted from a crawl.
type Novel struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Synopsis  string      `json:"synopsis,omitempty"`
	SourceURL string      `json:"source_url"`
	Status    NovelStatus `json:"status"`
	WordCount int         `json:"word_count"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Genres       []Genre `json:"genres,omitempty"`
	ChapterCount int     `json:"chapter_count,omitempty"`
}

// Chapter is either a series member (NovelID set) or a standalone one-shot
// (NovelID nil, IsOneShot true, Slug set). The two shapes share one table.
type Chapter struct {
	ID            int64     `json:"id"`
	NovelID       *int64    `json:"novel_id,omitempty"`
	ChapterNumber int       `json:"chapter_number"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug,omitempty"`
	Content       string    `json:"content,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	WordCount     int       `json:"word_count"`
	IsOneShot     bool      `json:"is_one_shot"`
	CreatedAt     time.Time `json:"created_at"`

	Genres []Genre `json:"genres,omitempty"`
}

// Genre is a canonical tag shared by many novels and one-shot chapters.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	NovelCount int `json:"novel_count,omitempty"`
}
