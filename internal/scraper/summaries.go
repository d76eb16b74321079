package scraper

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// WithSummaries fills AISummary on every successful scrape. A failing or nil
// summarizer leaves the summary empty and never fails the scrape.
func WithSummaries(w Worker, s models.Summarizer) Worker {
	if s == nil {
		return w
	}
	return &summarizingWorker{next: w, summarizer: s}
}

type summarizingWorker struct {
	next       Worker
	summarizer models.Summarizer
}

func (w *summarizingWorker) Scrape(ctx context.Context, url, name string) (*models.ProfileFields, error) {
	p, err := w.next.Scrape(ctx, url, name)
	if err != nil {
		return nil, err
	}

	summary, err := w.summarizer.SummarizeProfile(ctx, *p)
	if err != nil {
		slog.Warn("profile summary failed",
			"url", url,
			"provider", w.summarizer.Name(),
			"error", err,
		)
		return p, nil
	}
	p.AISummary = summary
	return p, nil
}
