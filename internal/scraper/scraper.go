// Package scraper fetches a single LinkedIn profile and normalizes it into
// models.ProfileFields.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// Every scrape failure wraps ErrScrape so callers can treat them uniformly.
var (
	ErrScrape      = errors.New("scrape failed")
	ErrBlocked     = fmt.Errorf("%w: blocked by upstream", ErrScrape)
	ErrTimeout     = fmt.Errorf("%w: timeout", ErrScrape)
	ErrUnreachable = fmt.Errorf("%w: upstream unreachable", ErrScrape)
	ErrParse       = fmt.Errorf("%w: unparseable profile", ErrScrape)
)

// Worker performs one unit of scrape work. name is an optional hint from the
// uploaded CSV and may be empty.
type Worker interface {
	Scrape(ctx context.Context, url, name string) (*models.ProfileFields, error)
}

// WorkerFunc adapts a plain function to Worker.
type WorkerFunc func(ctx context.Context, url, name string) (*models.ProfileFields, error)

func (f WorkerFunc) Scrape(ctx context.Context, url, name string) (*models.ProfileFields, error) {
	return f(ctx, url, name)
}
