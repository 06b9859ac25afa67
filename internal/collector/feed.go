package collector

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"newsdigest/internal/infra"
	"newsdigest/pkg/models"
)

// enrichmentSelectors are tried in order when pulling full article
// bodies. The first selector with text wins.
var enrichmentSelectors = []string{
	"article",
	"main",
	".article-content",
	".post-content",
	".entry-content",
	"#content",
}

// enrichmentMaxLen caps body text pulled from a fallback <body> scrape.
const enrichmentMaxLen = 5000

// fetchFeed downloads and parses one RSS/Atom feed.
func (c *Collector) fetchFeed(ctx context.Context, src FeedSource) ([]models.Article, error) {
	body, _, err := infra.GetWith(ctx, c.client, src.URL, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.Article{
			Title:       strings.TrimSpace(item.Title),
			Content:     feedContent(item),
			Author:      feedAuthor(item),
			PublishedAt: feedDate(item),
			SourceURL:   item.Link,
			SourceName:  src.Name,
		}
		if a.Title == "" || a.SourceURL == "" {
			continue
		}
		articles = append(articles, a)
	}
	articles = capArticles(articles, src.MaxArticles)

	if src.FetchFullContent {
		for i := range articles {
			c.enrich(ctx, &articles[i])
		}
	}
	return articles, nil
}

// feedContent picks the richest text a feed item offers: full content
// first, then the description.
func feedContent(item *gofeed.Item) string {
	if s := strings.TrimSpace(stripHTML(item.Content)); s != "" {
		return s
	}
	return strings.TrimSpace(stripHTML(item.Description))
}

// feedAuthor picks an author name, falling back through the item's
// author list.
func feedAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// feedDate resolves the item's publication time: the parsed timestamp
// when the feed library recognized it, then a lenient parse of the raw
// string, then the updated time. Zero when nothing parses.
func feedDate(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.Published != "" {
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			return t
		}
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// enrich fetches the article page and replaces Content with the page
// body when that yields strictly more text. Failures leave the article
// unchanged.
func (c *Collector) enrich(ctx context.Context, a *models.Article) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	body, _, err := infra.GetWith(ctx, c.client, a.SourceURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return
	}

	text := extractArticleText(doc)
	if len(text) > len(a.Content) {
		a.Content = text
	}
}

// extractArticleText pulls the main article text from a page, trying
// known content selectors before falling back to a capped body scrape.
func extractArticleText(doc *goquery.Document) string {
	for _, sel := range enrichmentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := squashWhitespace(node.Text()); text != "" {
			return text
		}
	}
	text := squashWhitespace(doc.Find("body").Text())
	if len(text) > enrichmentMaxLen {
		text = text[:enrichmentMaxLen]
	}
	return text
}

// stripHTML removes markup from feed-provided HTML fragments.
func stripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return doc.Text()
}

// squashWhitespace collapses runs of whitespace into single spaces.
func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
