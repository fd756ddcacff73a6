// Package feed discovers candidate URLs from RSS and Atom feeds and
// registers them in the curation backlog.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// URLRegistrar is the slice of the catalog the watcher needs.
type URLRegistrar interface {
	AddURL(url string) (bool, error)
}

// Watcher polls feeds and funnels their entry links into the backlog.
type Watcher struct {
	parser  *gofeed.Parser
	store   URLRegistrar
	logger  *slog.Logger
	timeout time.Duration
}

// NewWatcher builds a feed watcher.
func NewWatcher(store URLRegistrar, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		parser:  gofeed.NewParser(),
		store:   store,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Ingest fetches one feed and registers every entry link not already known.
// Returns the number of newly registered URLs. A URL that fails to register
// is logged and skipped; it does not abort the rest of the feed.
func (w *Watcher) Ingest(ctx context.Context, feedURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	parsed, err := w.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	added := 0
	for _, item := range parsed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		isNew, err := w.store.AddURL(link)
		if err != nil {
			w.logger.Warn("failed to register feed url", "url", link, "error", err)
			continue
		}
		if isNew {
			added++
		}
	}

	w.logger.Info("feed ingested",
		"feed", feedURL,
		"entries", len(parsed.Items),
		"new_urls", added,
	)
	return added, nil
}

// IngestAll runs Ingest over several feeds, continuing past per-feed
// failures. Returns the total of newly registered URLs and the last error.
func (w *Watcher) IngestAll(ctx context.Context, feedURLs []string) (int, error) {
	total := 0
	var lastErr error
	for _, feedURL := range feedURLs {
		n, err := w.Ingest(ctx, feedURL)
		if err != nil {
			w.logger.Warn("feed ingest failed", "feed", feedURL, "error", err)
			lastErr = err
			continue
		}
		total += n
	}
	return total, lastErr
}
