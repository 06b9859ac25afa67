package collector

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"newsdigest/internal/infra"
	"newsdigest/pkg/models"
)

// pageDateLayouts are tried before falling back to lenient parsing.
var pageDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// fetchPage scrapes a listing page: the list selector yields article
// links, each of which is fetched and scraped with the per-article
// selectors.
func (c *Collector) fetchPage(ctx context.Context, src PageSource) ([]models.Article, error) {
	body, _, err := infra.GetWith(ctx, c.client, src.URL, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	links := c.articleLinks(doc, src)
	max := src.MaxArticles
	if max <= 0 {
		max = defaultMaxArticles
	}
	if len(links) > max {
		links = links[:max]
	}

	var articles []models.Article
	for _, link := range links {
		a, err := c.scrapeArticle(ctx, link, src)
		if err != nil {
			// One bad article page does not fail the source.
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// articleLinks extracts article URLs from the listing page, resolved
// against the page URL and deduplicated, in document order.
func (c *Collector) articleLinks(doc *goquery.Document, src PageSource) []string {
	base, err := url.Parse(src.URL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(src.Selectors.ArticleList).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			// The selector may match a container; look for a link inside.
			href, ok = s.Find("a").First().Attr("href")
		}
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links
}

// scrapeArticle fetches one article page and pulls fields with the
// configured selectors. Fetches are paced by the shared limiter so a
// source's article pages are not hit back to back.
func (c *Collector) scrapeArticle(ctx context.Context, link string, src PageSource) (models.Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Article{}, err
	}
	body, _, err := infra.GetWith(ctx, c.client, link, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return models.Article{}, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return models.Article{}, err
	}

	sel := src.Selectors
	a := models.Article{
		Title:      selectText(doc, sel.Title),
		Author:     selectText(doc, sel.Author),
		SourceURL:  link,
		SourceName: src.Name,
	}
	if sel.Content != "" {
		a.Content = squashWhitespace(doc.Find(sel.Content).Text())
	}
	if a.Content == "" {
		a.Content = extractArticleText(doc)
	}
	if a.Title == "" {
		a.Title = selectText(doc, "h1")
	}
	a.PublishedAt = parsePageDate(selectText(doc, sel.Date))
	return a, nil
}

func selectText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return squashWhitespace(doc.Find(selector).First().Text())
}

// parsePageDate tries known layouts then a lenient parse. Returns the
// zero time when nothing matches.
func parsePageDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range pageDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t
	}
	return time.Time{}
}
