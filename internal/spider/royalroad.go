package spider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"novelhub/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// RoyalRoad crawls a fiction's main page plus every chapter page and emits
// one RawDocument for the whole series.
type RoyalRoad struct {
	Timeout     time.Duration
	Parallelism int
	UserAgent   string
	// Transport overrides the collector's transport; tests hook a mock here.
	Transport http.RoundTripper
}

func NewRoyalRoad() *RoyalRoad {
	return &RoyalRoad{
		Timeout:     30 * time.Second,
		Parallelism: 4,
		UserAgent:   defaultUserAgent,
	}
}

func (s *RoyalRoad) Name() string { return "royalroad" }

type chapterMeta struct {
	number int
	title  string
}

func (s *RoyalRoad) Extract(ctx context.Context, rawURL string, jobID string) (*models.RawDocument, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: fmt.Errorf("bad url: %v", err)}
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(s.UserAgent),
	)
	c.SetRequestTimeout(s.Timeout)
	if s.Transport != nil {
		c.WithTransport(s.Transport)
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: s.Parallelism}); err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: err}
	}

	doc := &models.RawDocument{JobID: jobID, SourceURL: rawURL}

	var mu sync.Mutex
	var firstErr error
	chapterCount := 0

	// url->meta map doubling as a revisit guard; it holds at most one
	// entry per row of the fiction's chapter table, so no eviction —
	// evicting would silently drop already-fetched chapters
	pending := make(map[string]chapterMeta)

	c.OnHTML("div.fic-header h1", func(e *colly.HTMLElement) {
		mu.Lock()
		if doc.Title == "" {
			doc.Title = strings.TrimSpace(e.Text)
		}
		mu.Unlock()
	})

	c.OnHTML("div.description", func(e *colly.HTMLElement) {
		mu.Lock()
		if doc.Synopsis == "" {
			doc.Synopsis = strings.TrimSpace(e.Text)
		}
		mu.Unlock()
	})

	c.OnHTML("div.fiction-info span.label", func(e *colly.HTMLElement) {
		switch strings.ToUpper(strings.TrimSpace(e.Text)) {
		case "ONGOING":
			mu.Lock()
			doc.StatusText = "ongoing"
			mu.Unlock()
		case "COMPLETED":
			mu.Lock()
			doc.StatusText = "completed"
			mu.Unlock()
		}
	})

	c.OnHTML("span.tags a.fiction-tag", func(e *colly.HTMLElement) {
		if tag := strings.TrimSpace(e.Text); tag != "" {
			mu.Lock()
			doc.Genres = append(doc.Genres, tag)
			mu.Unlock()
		}
	})

	c.OnHTML("table#chapters tbody tr", func(e *colly.HTMLElement) {
		href := e.ChildAttr("a", "href")
		if href == "" {
			return
		}
		abs := e.Request.AbsoluteURL(href)

		mu.Lock()
		if _, dup := pending[abs]; dup {
			mu.Unlock()
			return
		}
		chapterCount++
		pending[abs] = chapterMeta{number: chapterCount, title: strings.TrimSpace(e.ChildText("a"))}
		mu.Unlock()

		if err := c.Visit(abs); err != nil && err != colly.ErrAlreadyVisited {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	})

	c.OnHTML("div.chapter-inner", func(e *colly.HTMLElement) {
		mu.Lock()
		meta, ok := pending[e.Request.URL.String()]
		mu.Unlock()
		if !ok {
			return
		}
		content, err := e.DOM.Html()
		if err != nil {
			return
		}

		mu.Lock()
		doc.Chapters = append(doc.Chapters, models.RawChapter{
			Number:  meta.number,
			Title:   meta.title,
			URL:     e.Request.URL.String(),
			Content: content,
		})
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
		}
		mu.Unlock()
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: err}
	}

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: ctx.Err()}
	}

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return nil, &ExtractionError{Spider: s.Name(), URL: rawURL, Err: firstErr}
	}

	// chapter pages finish in arbitrary order under the async collector
	sort.Slice(doc.Chapters, func(i, j int) bool {
		return doc.Chapters[i].Number < doc.Chapters[j].Number
	})

	return doc, nil
}
