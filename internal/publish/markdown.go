package publish

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"newsdigest/pkg/models"
)

const maxFilenameLen = 200

// MarkdownPublisher writes digests and article summaries as markdown
// files under an output directory.
type MarkdownPublisher struct {
	outputDir string
}

// NewMarkdownPublisher creates a markdown publisher rooted at outputDir.
func NewMarkdownPublisher(outputDir string) *MarkdownPublisher {
	return &MarkdownPublisher{outputDir: outputDir}
}

func (p *MarkdownPublisher) Name() string { return "markdown" }

// PublishDigest writes the digest file, refreshes latest.md, and
// regenerates the index.
func (p *MarkdownPublisher) PublishDigest(_ context.Context, content models.DigestContent, pairs []models.ArticlePair, meta Metadata) error {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return fmt.Errorf("markdown: create output dir: %w", err)
	}

	niche := meta.Niche
	if niche == "" {
		niche = "news"
	}
	name := sanitizeFilename(fmt.Sprintf("%s-%s-digest", meta.GeneratedAt.Format("2006-01-02"), niche)) + ".md"
	body := FormatDigest(content, pairs, meta)

	path := filepath.Join(p.outputDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("markdown: write digest: %w", err)
	}
	log.Printf("[publish] digest written to %s", path)

	// latest.md is a copy, not a symlink, so it survives any filesystem.
	if err := os.WriteFile(filepath.Join(p.outputDir, "latest.md"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("markdown: write latest: %w", err)
	}

	return p.writeIndex(meta)
}

// PublishArticle writes a single article summary under articles/.
func (p *MarkdownPublisher) PublishArticle(_ context.Context, pair models.ArticlePair, meta Metadata) error {
	dir := filepath.Join(p.outputDir, "articles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("markdown: create articles dir: %w", err)
	}

	slug := truncateRunes(pair.Article.Title, 50)
	name := fmt.Sprintf("%s-%s.md", meta.GeneratedAt.Format("2006-01-02"), sanitizeFilename(slug))

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", pair.Article.Title)
	fmt.Fprintf(&b, "*Published on %s*\n\n", meta.GeneratedAt.Format("January 2, 2006"))
	b.WriteString(formatArticleSection(pair))
	if pair.Summary.DetailedSummary != "" {
		fmt.Fprintf(&b, "## Detailed Summary\n\n%s\n\n", pair.Summary.DetailedSummary)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("markdown: write article: %w", err)
	}
	log.Printf("[publish] article written to %s", path)
	return nil
}

// ReportErrors is a no-op: files have no error surface.
func (p *MarkdownPublisher) ReportErrors(context.Context, []string) error { return nil }

// writeIndex regenerates index.md from the files currently on disk.
func (p *MarkdownPublisher) writeIndex(meta Metadata) error {
	digests, _ := filepath.Glob(filepath.Join(p.outputDir, "*-digest.md"))
	articles, _ := filepath.Glob(filepath.Join(p.outputDir, "articles", "*.md"))
	sort.Sort(sort.Reverse(sort.StringSlice(digests)))
	sort.Sort(sort.Reverse(sort.StringSlice(articles)))
	if len(articles) > 20 {
		articles = articles[:20]
	}

	var b strings.Builder
	b.WriteString("# News Digest - Index\n\n")
	fmt.Fprintf(&b, "*Last updated: %s*\n\n", meta.GeneratedAt.Format("January 2, 2006 at 3:04 PM"))
	if len(digests) > 0 {
		b.WriteString("## Newsletters\n\n")
		for _, path := range digests {
			base := filepath.Base(path)
			fmt.Fprintf(&b, "- [%s](%s)\n", strings.TrimSuffix(base, ".md"), base)
		}
		b.WriteString("\n")
	}
	if len(articles) > 0 {
		b.WriteString("## Individual Articles\n\n")
		for _, path := range articles {
			base := filepath.Base(path)
			fmt.Fprintf(&b, "- [%s](articles/%s)\n", strings.TrimSuffix(base, ".md"), base)
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Join(p.outputDir, "index.md"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("markdown: write index: %w", err)
	}
	return nil
}

// FormatDigest renders the whole digest as markdown.
func FormatDigest(content models.DigestContent, pairs []models.ArticlePair, meta Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", content.Title)
	fmt.Fprintf(&b, "*Generated on %s*\n\n", meta.GeneratedAt.Format("January 2, 2006"))

	b.WriteString("## Table of Contents\n\n")
	b.WriteString("1. [Introduction](#introduction)\n")
	b.WriteString("2. [Top Stories](#top-stories)\n")
	b.WriteString("3. [Trends](#trends)\n")
	b.WriteString("4. [Insights & Analysis](#insights--analysis)\n")
	b.WriteString("5. [All Articles](#all-articles)\n\n")

	fmt.Fprintf(&b, "## Introduction\n\n%s\n\n", content.Introduction)

	b.WriteString("## Top Stories\n\n")
	for i, story := range content.TopStories {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, story.Title)
		fmt.Fprintf(&b, "**Source:** [%s](%s)\n\n", story.Source, story.URL)
		fmt.Fprintf(&b, "%s\n\n", story.Summary)
		if len(story.KeyInsights) > 0 {
			b.WriteString("**Key Points:**\n")
			for _, insight := range story.KeyInsights {
				fmt.Fprintf(&b, "- %s\n", insight)
			}
			b.WriteString("\n")
		}
	}

	if len(content.Trends) > 0 {
		b.WriteString("## Trends\n\n")
		for _, trend := range content.Trends {
			fmt.Fprintf(&b, "- %s\n", trend)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Insights & Analysis\n\n%s\n\n", content.Insights)

	if len(pairs) > 0 {
		b.WriteString("## All Articles\n\n")
		for _, pair := range pairs {
			b.WriteString(formatArticleSection(pair))
		}
	}

	b.WriteString("---\n\n")
	b.WriteString("*This newsletter was generated automatically.*\n")
	return b.String()
}

// formatArticleSection renders one article with its summary.
func formatArticleSection(pair models.ArticlePair) string {
	a, s := pair.Article, pair.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", a.Title)
	fmt.Fprintf(&b, "**Source:** [%s](%s)\n", a.SourceName, a.SourceURL)
	if a.Author != "" {
		fmt.Fprintf(&b, "**Author:** %s\n", a.Author)
	}
	if a.HasDate() {
		fmt.Fprintf(&b, "**Date:** %s\n", a.PublishedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\n**Summary:** %s\n\n", s.ShortSummary)
	if len(s.KeyInsights) > 0 {
		b.WriteString("**Key Insights:**\n")
		for _, insight := range s.KeyInsights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
		b.WriteString("\n")
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(s.Tags, ", "))
	}
	b.WriteString("\n---\n\n")
	return b.String()
}

// sanitizeFilename strips characters that are unsafe in filenames and
// caps the length.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	return truncateRunes(name, maxFilenameLen)
}

// truncateRunes trims s to at most n runes, never splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
