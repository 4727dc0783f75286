package spider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/models"
)

type stubSpider struct{ name string }

func (s *stubSpider) Name() string { return s.name }

func (s *stubSpider) Extract(ctx context.Context, url string, jobID string) (*models.RawDocument, error) {
	return &models.RawDocument{Title: "stub", SourceURL: url, JobID: jobID}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSpider{name: "royalroad"}, "royalroad.com", "www.royalroad.com")
	r.Register(&stubSpider{name: "pixiv"}, "pixiv.net", "www.pixiv.net")

	s, err := r.Resolve("https://www.royalroad.com/fiction/1234/some-story")
	require.NoError(t, err)
	assert.Equal(t, "royalroad", s.Name())

	s, err = r.Resolve("https://pixiv.net/novel/show.php?id=99")
	require.NoError(t, err)
	assert.Equal(t, "pixiv", s.Name())
}

func TestRegistryHostIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSpider{name: "royalroad"}, "royalroad.com")

	assert.True(t, r.IsSupported("https://RoyalRoad.COM/fiction/1"))
}

func TestRegistryUnknownDomain(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSpider{name: "royalroad"}, "royalroad.com")

	_, err := r.Resolve("https://unknown.example.org/story")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, r.IsSupported("https://unknown.example.org/story"))
}

func TestRegistryIgnoresSchemeAndPath(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSpider{name: "pixiv"}, "pixiv.net")

	assert.True(t, r.IsSupported("http://pixiv.net/anything/else?x=1"))
}
