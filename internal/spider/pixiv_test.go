package spider

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedPixiv(transport *httpmock.MockTransport) *Pixiv {
	s := NewPixiv()
	s.BaseURL = "https://www.pixiv.net"
	s.Client = &http.Client{Transport: transport}
	return s
}

func TestPixivExtractOneShot(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://www.pixiv.net/ajax/novel/12345",
		httpmock.NewStringResponder(200, `{
			"error": false,
			"body": {
				"id": "12345",
				"title": "Rainy Day",
				"description": "A short story.",
				"content": "<p>it rained all day</p>",
				"tags": {"tags": [{"tag": "Slice of Life"}, {"tag": "Drama"}]}
			}
		}`))

	s := newMockedPixiv(transport)
	doc, err := s.Extract(context.Background(), "https://www.pixiv.net/novel/show.php?id=12345", "job-1")
	require.NoError(t, err)

	assert.True(t, doc.IsOneShot)
	assert.Equal(t, "Rainy Day", doc.Title)
	assert.Equal(t, "A short story.", doc.Synopsis)
	assert.Equal(t, "<p>it rained all day</p>", doc.Content)
	assert.Equal(t, []string{"Slice of Life", "Drama"}, doc.Genres)
	assert.Equal(t, "job-1", doc.JobID)
	assert.Empty(t, doc.Chapters)
}

func TestPixivExtractAPIError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://www.pixiv.net/ajax/novel/404",
		httpmock.NewStringResponder(200, `{"error": true, "message": "not found"}`))

	s := newMockedPixiv(transport)
	_, err := s.Extract(context.Background(), "https://www.pixiv.net/n/404", "job-2")

	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, xerr.Error(), "not found")
}

func TestPixivExtractHTTPError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://www.pixiv.net/ajax/novel/500",
		httpmock.NewStringResponder(500, "server error"))

	s := newMockedPixiv(transport)
	_, err := s.Extract(context.Background(), "https://www.pixiv.net/n/500", "job-3")

	var xerr *ExtractionError
	assert.ErrorAs(t, err, &xerr)
}

func TestPixivNovelID(t *testing.T) {
	id, err := pixivNovelID("https://www.pixiv.net/novel/show.php?id=777")
	require.NoError(t, err)
	assert.Equal(t, "777", id)

	id, err = pixivNovelID("https://www.pixiv.net/n/888")
	require.NoError(t, err)
	assert.Equal(t, "888", id)

	_, err = pixivNovelID("https://www.pixiv.net/novel/show.php")
	assert.Error(t, err)
}
