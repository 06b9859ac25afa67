package publish

import (
	"context"
	"fmt"
	"log"

	"newsdigest/pkg/models"
)

// Registry fans a digest out to every registered channel. Channel
// failures are collected, not propagated: one broken channel never
// stops the others.
type Registry struct {
	publishers []Publisher
	preview    bool
}

// NewRegistry creates a registry. In preview mode every publish call is
// logged and skipped.
func NewRegistry(preview bool, publishers ...Publisher) *Registry {
	return &Registry{publishers: publishers, preview: preview}
}

// Add registers another publisher.
func (r *Registry) Add(p Publisher) { r.publishers = append(r.publishers, p) }

// Channels returns the names of registered publishers.
func (r *Registry) Channels() []string {
	names := make([]string, len(r.publishers))
	for i, p := range r.publishers {
		names[i] = p.Name()
	}
	return names
}

// Preview reports whether the registry is in preview mode.
func (r *Registry) Preview() bool { return r.preview }

// PublishDigest sends the digest to every channel, returning one error
// per failed channel.
func (r *Registry) PublishDigest(ctx context.Context, content models.DigestContent, pairs []models.ArticlePair, meta Metadata) []error {
	if r.preview {
		log.Printf("[publish] preview mode: skipping %d channels", len(r.publishers))
		return nil
	}
	var errs []error
	for _, p := range r.publishers {
		if err := p.PublishDigest(ctx, content, pairs, meta); err != nil {
			log.Printf("[publish] channel %s failed: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("channel %s: %w", p.Name(), err))
			continue
		}
		log.Printf("[publish] channel %s ok", p.Name())
	}
	return errs
}

// PublishArticles sends individual article summaries to every channel,
// returning one error per failed publish.
func (r *Registry) PublishArticles(ctx context.Context, pairs []models.ArticlePair, meta Metadata) []error {
	if r.preview {
		return nil
	}
	var errs []error
	for _, p := range r.publishers {
		for _, pair := range pairs {
			if err := p.PublishArticle(ctx, pair, meta); err != nil {
				log.Printf("[publish] article %q via %s failed: %v", pair.Article.Title, p.Name(), err)
				errs = append(errs, fmt.Errorf("channel %s: article %q: %w", p.Name(), pair.Article.Title, err))
			}
		}
	}
	return errs
}

// ReportErrors forwards pipeline errors to channels with an error
// surface. Best effort: reporting failures are only logged.
func (r *Registry) ReportErrors(ctx context.Context, errs []string) {
	if r.preview || len(errs) == 0 {
		return
	}
	for _, p := range r.publishers {
		if err := p.ReportErrors(ctx, errs); err != nil {
			log.Printf("[publish] error report via %s failed: %v", p.Name(), err)
		}
	}
}
