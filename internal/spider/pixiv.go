package spider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"novelhub/pkg/models"
)

// Pixiv fetches a standalone novel through pixiv's ajax API and emits it as
// a one-shot document with direct content.
type Pixiv struct {
	BaseURL string
	Client  *http.Client
}

func NewPixiv() *Pixiv {
	return &Pixiv{
		BaseURL: "https://www.pixiv.net",
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Pixiv) Name() string { return "pixiv" }

type pixivResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Body    struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		Tags        struct {
			Tags []struct {
				Tag string `json:"tag"`
			} `json:"tags"`
		} `json:"tags"`
	} `json:"body"`
}

func (s *Pixiv) Extract(ctx context.Context, rawURL string, jobID string) (*models.RawDocument, error) {
	novelID, err := pixivNovelID(rawURL)
	if err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: err}
	}

	endpoint := fmt.Sprintf("%s/ajax/novel/%s", s.BaseURL, novelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ExtractionError{
			Spider: s.Name(), URL: rawURL,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var pr pixivResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: fmt.Errorf("decode: %w", err)}
	}
	if pr.Error {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: fmt.Errorf("api error: %s", pr.Message)}
	}

	genres := make([]string, 0, len(pr.Body.Tags.Tags))
	for _, t := range pr.Body.Tags.Tags {
		if t.Tag != "" {
			genres = append(genres, t.Tag)
		}
	}

	return &models.RawDocument{
		JobID:     jobID,
		Title:     strings.TrimSpace(pr.Body.Title),
		SourceURL: rawURL,
		Synopsis:  strings.TrimSpace(pr.Body.Description),
		Genres:    genres,
		IsOneShot: true,
		Content:   pr.Body.Content,
	}, nil
}

// pixivNovelID pulls the numeric novel id out of either URL shape pixiv
// serves: /novel/show.php?id=123 or /n/123.
func pixivNovelID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("bad url: %w", err)
	}

	if id := u.Query().Get("id"); id != "" {
		return id, nil
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "n" && parts[1] != "" {
		return parts[1], nil
	}

	return "", fmt.Errorf("no novel id in url %s", rawURL)
}
