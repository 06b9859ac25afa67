// Package collector gathers articles from configured RSS/Atom feeds and
// scraped web pages.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsdigest/internal/infra"
	"newsdigest/internal/retry"
	"newsdigest/pkg/models"
)

const (
	// defaultConcurrency bounds how many sources are fetched at once.
	defaultConcurrency = 4
	// defaultMaxArticles caps how many articles a single source contributes.
	defaultMaxArticles = 10
)

// FeedSource configures one RSS/Atom feed.
type FeedSource struct {
	Name             string
	URL              string
	MaxArticles      int
	FetchFullContent bool
}

// PageSelectors maps article fields to CSS selectors on a scraped page.
type PageSelectors struct {
	ArticleList string
	Title       string
	Content     string
	Date        string
	Author      string
}

// PageSource configures one scraped listing page.
type PageSource struct {
	Name        string
	URL         string
	MaxArticles int
	Selectors   PageSelectors
}

// SourceError records a source that failed after retries. Collection
// continues past failed sources; the caller decides whether to report.
type SourceError struct {
	Source string
	URL    string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s (%s): %v", e.Source, e.URL, e.Err)
}

// Collector fetches articles from all configured sources concurrently.
type Collector struct {
	feeds       []FeedSource
	pages       []PageSource
	client      *http.Client
	limiter     *infra.RateLimiter
	retry       retry.Policy
	concurrency int
}

// Option configures a Collector.
type Option func(*Collector)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) { c.client = client }
}

// WithRetryPolicy overrides the per-source retry behavior.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Collector) { c.retry = p }
}

// WithRateLimit sets the request pacing applied to every fetch,
// including per-article fetches within one source.
func WithRateLimit(requests int, per time.Duration) Option {
	return func(c *Collector) { c.limiter = infra.NewRateLimiter(requests, per) }
}

// WithConcurrency sets how many sources are fetched in parallel.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a collector for the given sources.
func New(feeds []FeedSource, pages []PageSource, opts ...Option) *Collector {
	p := retry.DefaultPolicy()
	p.Retryable = RetryableFetchError
	c := &Collector{
		feeds:       feeds,
		pages:       pages,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
		retry:       p,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RetryableFetchError reports whether a fetch failure is worth another
// attempt. Client errors like 404s are permanent; server errors, rate
// limits, and network failures are transient.
func RetryableFetchError(err error) bool {
	var httpErr *infra.ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}

// Collect fetches every source, returning articles in source order
// (all feeds first, then pages) and a list of sources that failed after
// retries. A failed source never fails the collection.
func (c *Collector) Collect(ctx context.Context) ([]models.Article, []SourceError) {
	type result struct {
		idx      int
		articles []models.Article
		err      *SourceError
	}

	total := len(c.feeds) + len(c.pages)
	results := make([]result, total)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, src := range c.feeds {
		i, src := i, src
		g.Go(func() error {
			articles, err := c.collectSource(ctx, src.Name, src.URL, func(ctx context.Context) ([]models.Article, error) {
				return c.fetchFeed(ctx, src)
			})
			mu.Lock()
			results[i] = result{idx: i, articles: articles, err: err}
			mu.Unlock()
			return nil
		})
	}
	for i, src := range c.pages {
		i, src := len(c.feeds)+i, src
		g.Go(func() error {
			articles, err := c.collectSource(ctx, src.Name, src.URL, func(ctx context.Context) ([]models.Article, error) {
				return c.fetchPage(ctx, src)
			})
			mu.Lock()
			results[i] = result{idx: i, articles: articles, err: err}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures land in results.
	_ = g.Wait()

	var all []models.Article
	var failed []SourceError
	for _, r := range results {
		all = append(all, r.articles...)
		if r.err != nil {
			failed = append(failed, *r.err)
		}
	}
	return all, failed
}

// collectSource runs a single source fetch under the retry policy.
func (c *Collector) collectSource(ctx context.Context, name, url string, fetch func(context.Context) ([]models.Article, error)) ([]models.Article, *SourceError) {
	var articles []models.Article
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var fetchErr error
		articles, fetchErr = fetch(ctx)
		return fetchErr
	})
	if err != nil {
		log.Printf("[collector] source %s failed: %v", name, err)
		return nil, &SourceError{Source: name, URL: url, Err: err}
	}
	log.Printf("[collector] source %s: %d articles", name, len(articles))
	return articles, nil
}

// capArticles trims a slice to the source's configured maximum.
func capArticles(articles []models.Article, max int) []models.Article {
	if max <= 0 {
		max = defaultMaxArticles
	}
	if len(articles) > max {
		return articles[:max]
	}
	return articles
}
