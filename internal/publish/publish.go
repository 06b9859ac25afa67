// Package publish delivers assembled digests to output channels:
// markdown files, a GitHub repository, and Twitter.
package publish

import (
	"context"
	"time"

	"newsdigest/pkg/models"
)

// Metadata travels with a digest through the publishers.
type Metadata struct {
	Niche       string
	GeneratedAt time.Time
}

// Publisher is one output channel. Publishers are independent: a
// failure in one never blocks another.
type Publisher interface {
	Name() string
	// PublishDigest delivers the assembled digest plus the full list of
	// summarized articles backing it.
	PublishDigest(ctx context.Context, content models.DigestContent, pairs []models.ArticlePair, meta Metadata) error
	// PublishArticle delivers a single article summary.
	PublishArticle(ctx context.Context, pair models.ArticlePair, meta Metadata) error
	// ReportErrors surfaces pipeline errors on channels that support it.
	// Channels without an error surface return nil.
	ReportErrors(ctx context.Context, errs []string) error
}
