package spider

import (
	"context"
	"fmt"

	"novelhub/pkg/models"
)

// Spider is implemented by each site-specific extractor. Given a URL and the
// job tracking it, a spider fetches whatever pages it needs and maps the
// site's markup into one RawDocument, returned when extraction is complete.
type Spider interface {
	Name() string
	Extract(ctx context.Context, url string, jobID string) (*models.RawDocument, error)
}

// ExtractionError reports a spider failure, crawl timeouts included.
type ExtractionError struct {
	Spider string
	URL    string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("spider %s: extract %s: %v", e.Spider, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
