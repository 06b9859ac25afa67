// Package models defines the core data types shared across the digest
// pipeline: collected articles, generated summaries, and the assembled
// digest. All types are plain data; behavior lives in the internal
// packages that produce them.
package models

import "time"

// Article is a single normalized news article produced by the collector.
// Articles are immutable once collected; downstream stages never mutate them.
type Article struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	SourceURL   string    `json:"source_url"`
	SourceName  string    `json:"source_name"`
}

// HasDate reports whether a publish date could be determined for the article.
func (a Article) HasDate() bool { return !a.PublishedAt.IsZero() }
