// Package newsfeed aggregates headlines from a set of RSS sources.
package newsfeed

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"truthguard/pkg/domain"
)

const (
	fetchTimeout  = 10 * time.Second
	itemsPerFeed  = 5
	maxConcurrent = 4
)

// Aggregator fetches the configured feeds concurrently. A failing source is
// logged and skipped; the aggregate only fails when nothing could be fetched.
type Aggregator struct {
	feeds      []string
	httpClient *http.Client
}

// NewAggregator builds an aggregator over the given feed URLs.
func NewAggregator(feeds []string) *Aggregator {
	return &Aggregator{
		feeds:      feeds,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

type rssDoc struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Fetch pulls up to itemsPerFeed headlines from every source, newest first.
func (a *Aggregator) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	if len(a.feeds) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var items []domain.NewsItem

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, url := range a.feeds {
		g.Go(func() error {
			feedItems, err := a.fetchOne(ctx, url)
			if err != nil {
				slog.Warn("skipping unreachable feed", "url", url, "err", err)
				return nil
			}
			mu.Lock()
			items = append(items, feedItems...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no feed could be fetched")
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, url string) ([]domain.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var doc rssDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	items := make([]domain.NewsItem, 0, itemsPerFeed)
	for _, it := range doc.Channel.Items {
		if len(items) == itemsPerFeed {
			break
		}
		if it.Title == "" || it.Link == "" {
			continue
		}
		items = append(items, domain.NewsItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			Source:      doc.Channel.Title,
			PublishedAt: parsePubDate(it.PubDate),
		})
	}
	return items, nil
}

// parsePubDate accepts the date formats seen in the wild; an unparseable
// date yields the zero time, which sorts last.
func parsePubDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
