package models

// RawChapter is a single chapter as emitted by a spider, content still dirty.
type RawChapter struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	URL     string   `json:"url,omitempty"`
	Content string   `json:"content"`
	Genres  []string `json:"genres,omitempty"`
}

// RawDocument is the unnormalized extraction result for one source URL.
//
// Every spider maps its site's markup into this structure; the pipeline
// never sees site-specific HTML beyond the chapter content blobs.
type RawDocument struct {
	JobID      string       `json:"job_id"`
	Title      string       `json:"title"`
	SourceURL  string       `json:"source_url"`
	Synopsis   string       `json:"synopsis,omitempty"`
	StatusText string       `json:"status,omitempty"`
	Genres     []string     `json:"genres,omitempty"`
	Chapters   []RawChapter `json:"chapters,omitempty"`
	IsOneShot  bool         `json:"is_one_shot"`
	// Content carries the body of a one-shot that has no chapter list;
	// the normalizer synthesizes chapter 1 from it.
	Content string `json:"content,omitempty"`
}

// NormalizedChapter is a chapter ready for persistence: sanitized HTML,
// counted words, normalized genre slugs.
type NormalizedChapter struct {
	Number    int
	Title     string
	SourceURL string
	Content   string
	WordCount int
	Genres    []string
}

// NormalizedDocument is the persistence stage's input. Producing it twice
// from the same RawDocument yields identical output.
type NormalizedDocument struct {
	JobID     string
	Title     string
	Slug      string
	SourceURL string
	Synopsis  string
	Status    NovelStatus
	Genres    []string
	Chapters  []NormalizedChapter
	WordCount int
	IsOneShot bool
}
