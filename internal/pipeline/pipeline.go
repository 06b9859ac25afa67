// Package pipeline orchestrates a digest run: collect, deduplicate,
// summarize, assemble, publish.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"newsdigest/internal/collector"
	"newsdigest/internal/dedup"
	"newsdigest/internal/digest"
	"newsdigest/internal/publish"
	"newsdigest/internal/summarizer"
	"newsdigest/pkg/models"
)

// State is where a run currently is.
type State string

const (
	StateIdle          State = "idle"
	StateCollecting    State = "collecting"
	StateDeduplicating State = "deduplicating"
	StateSummarizing   State = "summarizing"
	StateAssembling    State = "assembling"
	StatePublishing    State = "publishing"
	StateCompleted     State = "completed"
	StateErrored       State = "errored"
)

// articlePublishLimit is how many individual article summaries are
// published per run, beyond the digest itself.
const articlePublishLimit = 5

// Collector gathers articles from configured sources.
type Collector interface {
	Collect(ctx context.Context) ([]models.Article, []collector.SourceError)
}

// Summarizer produces per-article summaries and digest-level text.
type Summarizer interface {
	SummarizeBatch(ctx context.Context, articles []models.Article, maxArticles int) []summarizer.BatchResult
	GenerateTitle(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error)
	GenerateInsights(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error)
}

// Registry fans the digest out to the configured channels.
type Registry interface {
	Channels() []string
	PublishDigest(ctx context.Context, content models.DigestContent, pairs []models.ArticlePair, meta publish.Metadata) []error
	PublishArticles(ctx context.Context, pairs []models.ArticlePair, meta publish.Metadata) []error
	ReportErrors(ctx context.Context, errs []string)
}

// Pipeline runs the digest stages in order. One run at a time.
type Pipeline struct {
	niche       string
	collector   Collector
	cache       *dedup.Cache
	cacheFile   string
	summarizer  Summarizer
	registry    Registry
	maxArticles int
	now         func() time.Time

	mu      sync.Mutex
	state   State
	metrics *RunMetrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxArticles caps how many unique articles get summarized per run.
func WithMaxArticles(n int) Option {
	return func(p *Pipeline) { p.maxArticles = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New assembles a pipeline from its stages. cacheFile may be empty to
// disable dedup persistence.
func New(niche string, c Collector, cache *dedup.Cache, cacheFile string, s Summarizer, r Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		niche:       niche,
		collector:   c,
		cache:       cache,
		cacheFile:   cacheFile,
		summarizer:  s,
		registry:    r,
		maxArticles: 20,
		now:         time.Now,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status returns the current state and the metrics of the current or
// most recent run.
func (p *Pipeline) Status() (State, *RunMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.metrics
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	log.Printf("[pipeline] state: %s", s)
}

// Run executes one full digest run. Soft failures (a dead source, one
// unsummarizable article, a broken publish channel) are recorded in the
// metrics and do not fail the run; failures that leave nothing to
// publish do. The dedup cache is persisted only when the run completes.
func (p *Pipeline) Run(ctx context.Context) (*RunMetrics, error) {
	metrics := &RunMetrics{StartTime: p.now()}
	p.mu.Lock()
	if p.state != StateIdle && p.state != StateCompleted && p.state != StateErrored {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: run already in progress (%s)", p.state)
	}
	p.metrics = metrics
	p.mu.Unlock()

	// Collect.
	p.setState(StateCollecting)
	articles, srcErrs := p.collector.Collect(ctx)
	metrics.ArticlesScraped = len(articles)
	for _, e := range srcErrs {
		metrics.addError(e.Error())
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, metrics, err)
	}
	if len(articles) == 0 {
		log.Printf("[pipeline] no articles found to process")
		return p.complete(metrics), nil
	}

	// Deduplicate. Fingerprints are held pending and recorded into the
	// cache only when the run succeeds, so a failed run does not mark
	// its articles as seen.
	p.setState(StateDeduplicating)
	var unique []models.Article
	var pending []pendingArticle
	inRun := make(map[string]bool)
	for _, a := range articles {
		fp := dedup.Fingerprint(a)
		if p.cache.Seen(fp) || inRun[fp] {
			log.Printf("[pipeline] skipping duplicate article: %s", a.Title)
			continue
		}
		inRun[fp] = true
		pending = append(pending, pendingArticle{fp: fp, title: a.Title})
		unique = append(unique, a)
	}
	metrics.ArticlesUnique = len(unique)
	if len(unique) == 0 {
		log.Printf("[pipeline] all articles were duplicates")
		p.persistCache()
		return p.complete(metrics), nil
	}

	// Summarize.
	p.setState(StateSummarizing)
	results := p.summarizer.SummarizeBatch(ctx, unique, p.maxArticles)
	for _, r := range results {
		if r.Err != nil {
			metrics.addError(fmt.Sprintf("summarize %q: %v", r.Article.Title, r.Err))
		}
	}
	pairs := summarizer.Pairs(results)
	metrics.ArticlesSummarized = len(pairs)
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, metrics, err)
	}
	if len(pairs) == 0 {
		return p.fail(ctx, metrics, fmt.Errorf("pipeline: no articles were summarized"))
	}

	// Assemble.
	p.setState(StateAssembling)
	title, err := p.summarizer.GenerateTitle(ctx, p.niche, pairs)
	if err != nil {
		return p.fail(ctx, metrics, fmt.Errorf("pipeline: generate title: %w", err))
	}
	insights, err := p.summarizer.GenerateInsights(ctx, p.niche, pairs)
	if err != nil {
		return p.fail(ctx, metrics, fmt.Errorf("pipeline: generate insights: %w", err))
	}
	trends := summarizer.Trends(pairs)
	content := digest.Assemble(title, p.niche, insights, pairs, trends)

	// Publish.
	p.setState(StatePublishing)
	meta := publish.Metadata{Niche: p.niche, GeneratedAt: p.now()}
	digestErrs := p.registry.PublishDigest(ctx, content, pairs, meta)
	for _, err := range digestErrs {
		metrics.addError(err.Error())
	}
	lead := pairs
	if len(lead) > articlePublishLimit {
		lead = lead[:articlePublishLimit]
	}
	for _, err := range p.registry.PublishArticles(ctx, lead, meta) {
		metrics.addError(err.Error())
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, metrics, err)
	}
	if channels := len(p.registry.Channels()); channels > 0 && len(digestErrs) < channels {
		metrics.ArticlesPublished = len(pairs)
	}

	for _, pa := range pending {
		p.cache.Record(pa.fp, pa.title)
	}
	p.persistCache()
	return p.complete(metrics), nil
}

// pendingArticle is a fingerprint waiting to be committed to the dedup
// cache at the end of a successful run.
type pendingArticle struct {
	fp    string
	title string
}

// complete stamps the metrics and moves to Completed.
func (p *Pipeline) complete(metrics *RunMetrics) *RunMetrics {
	metrics.EndTime = p.now()
	p.setState(StateCompleted)
	log.Printf("[pipeline] completed in %.1fs: scraped=%d unique=%d summarized=%d published=%d errors=%d",
		metrics.Duration().Seconds(), metrics.ArticlesScraped, metrics.ArticlesUnique,
		metrics.ArticlesSummarized, metrics.ArticlesPublished, len(metrics.Errors))
	return metrics
}

// fail stamps the metrics, files an error report best-effort, and moves
// to Errored. The dedup cache is not persisted.
func (p *Pipeline) fail(ctx context.Context, metrics *RunMetrics, err error) (*RunMetrics, error) {
	metrics.addError(err.Error())
	metrics.EndTime = p.now()
	p.setState(StateErrored)
	log.Printf("[pipeline] failed: %v", err)
	p.registry.ReportErrors(context.WithoutCancel(ctx), metrics.Errors)
	return metrics, err
}

// persistCache writes the dedup cache to disk. A persist failure is
// logged, not fatal: the next run just re-sees some articles.
func (p *Pipeline) persistCache() {
	if p.cacheFile == "" {
		return
	}
	if err := p.cache.Persist(p.cacheFile); err != nil {
		log.Printf("[pipeline] failed to save cache: %v", err)
	}
}
