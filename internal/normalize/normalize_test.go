package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/models"
)

func seriesDoc() *models.RawDocument {
	return &models.RawDocument{
		JobID:      "job-1",
		Title:      "The Iron Scholar",
		SourceURL:  "https://example.com/fiction/iron-scholar",
		Synopsis:   "  A scholar with iron will.  ",
		StatusText: "Ongoing",
		Genres:     []string{"Sci-Fi", "Action", "sci fi"},
		Chapters: []models.RawChapter{
			{Number: 1, Title: "Awakening", Content: "<p>one two three</p>"},
			{Number: 2, Title: "Departure", Content: "<script>x()</script><p>four five</p>"},
		},
	}
}

func TestDocumentSeries(t *testing.T) {
	doc, err := New().Document(seriesDoc())
	require.NoError(t, err)

	assert.Equal(t, "The Iron Scholar", doc.Title)
	assert.Equal(t, "the-iron-scholar", doc.Slug)
	assert.Equal(t, "A scholar with iron will.", doc.Synopsis)
	assert.Equal(t, models.NovelOngoing, doc.Status)
	assert.Equal(t, []string{"action", "science-fiction"}, doc.Genres)
	require.Len(t, doc.Chapters, 2)
	assert.Equal(t, "<p>one two three</p>", doc.Chapters[0].Content)
	assert.Equal(t, 3, doc.Chapters[0].WordCount)
	assert.Equal(t, 2, doc.Chapters[1].WordCount)
	assert.Equal(t, 5, doc.WordCount)
}

func TestDocumentIdempotent(t *testing.T) {
	n := New()

	first, err := n.Document(seriesDoc())
	require.NoError(t, err)
	second, err := n.Document(seriesDoc())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDocumentMissingRequiredFields(t *testing.T) {
	n := New()

	_, err := n.Document(&models.RawDocument{SourceURL: "https://example.com/x"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = n.Document(&models.RawDocument{Title: "x"})
	assert.ErrorAs(t, err, &verr)
}

func TestDocumentSeriesRequiresChapters(t *testing.T) {
	_, err := New().Document(&models.RawDocument{
		Title:     "Empty",
		SourceURL: "https://example.com/empty",
	})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDocumentOneShotSynthesizesChapter(t *testing.T) {
	doc, err := New().Document(&models.RawDocument{
		Title:     "Rainy Day",
		SourceURL: "https://example.com/oneshot/rainy-day",
		IsOneShot: true,
		Content:   "<p>it rained all day</p>",
		Genres:    []string{"Slice of Life"},
	})
	require.NoError(t, err)

	require.Len(t, doc.Chapters, 1)
	assert.Equal(t, 1, doc.Chapters[0].Number)
	assert.Equal(t, "Rainy Day", doc.Chapters[0].Title)
	assert.Equal(t, 5, doc.Chapters[0].WordCount)
	assert.True(t, doc.IsOneShot)
}

func TestDocumentOneShotRejectsMultipleChapters(t *testing.T) {
	_, err := New().Document(&models.RawDocument{
		Title:     "Two Shots",
		SourceURL: "https://example.com/oneshot/two",
		IsOneShot: true,
		Chapters: []models.RawChapter{
			{Number: 1, Content: "<p>a</p>"},
			{Number: 2, Content: "<p>b</p>"},
		},
	})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDocumentOneShotWithoutContentFails(t *testing.T) {
	_, err := New().Document(&models.RawDocument{
		Title:     "Nothing Here",
		SourceURL: "https://example.com/oneshot/none",
		IsOneShot: true,
	})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDocumentOmittedStatusStaysEmpty(t *testing.T) {
	raw := seriesDoc()
	raw.StatusText = ""

	doc, err := New().Document(raw)
	require.NoError(t, err)

	assert.Equal(t, models.NovelStatus(""), doc.Status)
}
