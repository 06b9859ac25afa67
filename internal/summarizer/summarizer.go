// Package summarizer turns collected articles into structured summaries
// and digest-level analysis using an LLM provider.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"newsdigest/internal/llm"
	"newsdigest/internal/retry"
	"newsdigest/pkg/models"
)

const (
	// batchSize is how many articles are summarized concurrently.
	batchSize = 5
	// maxInputTokens caps article content fed into a prompt.
	maxInputTokens = 3000

	// Caps on parsed summary fields.
	maxShortSummaryLen = 500
	maxInsights        = 5
	maxTags            = 5

	// Trend extraction: tags mentioned more than once, top N.
	maxTrends = 5
)

// Summarizer drives article summarization against an LLM provider.
type Summarizer struct {
	provider    llm.Provider
	retry       retry.Policy
	temperature float64
	maxTokens   int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithRetryPolicy overrides the per-call retry behavior.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Summarizer) { s.retry = p }
}

// WithTemperature sets the sampling temperature for all calls.
func WithTemperature(t float64) Option {
	return func(s *Summarizer) { s.temperature = t }
}

// WithMaxTokens sets the completion budget for summary calls.
func WithMaxTokens(n int) Option {
	return func(s *Summarizer) { s.maxTokens = n }
}

// New creates a summarizer backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Summarizer {
	p := retry.DefaultPolicy()
	p.Retryable = llm.IsTransient
	s := &Summarizer{
		provider:    provider,
		retry:       p,
		temperature: 0.7,
		maxTokens:   2000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chat calls the provider under the retry policy.
func (s *Summarizer) chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	var content string
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := s.provider.Chat(ctx, messages, &llm.ChatOptions{
			Temperature: s.temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return err
		}
		content = resp.Content
		return nil
	})
	return content, err
}

// ── Per-Article Summarization ──

// Summarize generates a structured summary for one article. When the
// model's response is not parseable JSON, a deterministic fallback
// summary is returned instead of an error.
func (s *Summarizer) Summarize(ctx context.Context, a models.Article) (models.Summary, error) {
	content := TruncateTokens(a.Content, maxInputTokens)
	author := a.Author
	if author == "" {
		author = "Unknown"
	}

	prompt := fmt.Sprintf(`You are an expert news summarizer. Analyze the following article and provide:

1. A short summary (2-3 sentences) capturing the main point
2. A detailed summary (1-2 paragraphs) with key information
3. 3-5 key insights or takeaways as bullet points
4. 3-5 relevant tags/categories

Article Title: %s
Source: %s
Author: %s

Content:
%s

Please format your response as JSON with the following structure:
{
    "short_summary": "...",
    "detailed_summary": "...",
    "key_insights": ["insight1", "insight2", ...],
    "tags": ["tag1", "tag2", ...]
}`, a.Title, a.SourceName, author, content)

	response, err := s.chat(ctx, []llm.Message{
		llm.SystemMessage("You are an expert news analyst and summarizer."),
		llm.UserMessage(prompt),
	}, s.maxTokens)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize %q: %w", a.Title, err)
	}

	if summary, ok := parseSummaryJSON(response); ok {
		return summary, nil
	}
	log.Printf("[summarizer] unparseable response for %q, using fallback", a.Title)
	return fallbackSummary(response), nil
}

// parseSummaryJSON extracts the JSON object between the first '{' and
// the last '}' of a model response and decodes it.
func parseSummaryJSON(response string) (models.Summary, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return models.Summary{}, false
	}

	var raw struct {
		ShortSummary    string   `json:"short_summary"`
		DetailedSummary string   `json:"detailed_summary"`
		KeyInsights     []string `json:"key_insights"`
		Tags            []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return models.Summary{}, false
	}

	short := capRunes(raw.ShortSummary, maxShortSummaryLen)
	insights := raw.KeyInsights
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	tags := raw.Tags
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return models.Summary{
		ShortSummary:    short,
		DetailedSummary: raw.DetailedSummary,
		KeyInsights:     insights,
		Tags:            tags,
	}, true
}

// capRunes trims s to at most n runes, never splitting a rune.
func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// fallbackSummary builds a usable summary from a response that did not
// contain valid JSON.
func fallbackSummary(response string) models.Summary {
	detailed := capRunes(response, maxShortSummaryLen)
	return models.Summary{
		ShortSummary:    "AI-generated summary of the article.",
		DetailedSummary: detailed,
		KeyInsights:     []string{"Key insight extracted from article"},
		Tags:            []string{"AI", "Technology"},
	}
}

// ── Batch Processing ──

// BatchResult pairs an article with either its summary or the error
// that prevented summarizing it.
type BatchResult struct {
	Article models.Article
	Summary models.Summary
	Err     error
}

// SummarizeBatch summarizes up to batchSize articles at a time,
// returning a result per input article in input order. A failed
// article does not abort the batch.
func (s *Summarizer) SummarizeBatch(ctx context.Context, articles []models.Article, maxArticles int) []BatchResult {
	if maxArticles > 0 && len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}

	results := make([]BatchResult, len(articles))
	g := &errgroup.Group{}
	g.SetLimit(batchSize)
	for i := range articles {
		g.Go(func() error {
			summary, err := s.Summarize(ctx, articles[i])
			results[i] = BatchResult{Article: articles[i], Summary: summary, Err: err}
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		if r.Err != nil {
			log.Printf("[summarizer] failed to summarize article: %s", r.Article.Title)
		}
	}
	return results
}

// Pairs filters batch results down to successful article/summary pairs,
// preserving order.
func Pairs(results []BatchResult) []models.ArticlePair {
	var pairs []models.ArticlePair
	for _, r := range results {
		if r.Err == nil {
			pairs = append(pairs, models.ArticlePair{Article: r.Article, Summary: r.Summary})
		}
	}
	return pairs
}

// ── Digest-Level Analysis ──

// Trends extracts trending topics: tags that appear in more than one
// summary, most frequent first, capped at five.
func Trends(pairs []models.ArticlePair) []string {
	counts := make(map[string]int)
	var order []string
	for _, p := range pairs {
		for _, tag := range p.Summary.Tags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	// Most frequent first; first appearance breaks ties.
	rank := make(map[string]int, len(order))
	for i, tag := range order {
		rank[tag] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return rank[order[i]] < rank[order[j]]
	})

	var trends []string
	for _, tag := range order {
		if counts[tag] > 1 {
			trends = append(trends, fmt.Sprintf("%s (mentioned in %d articles)", tag, counts[tag]))
		}
		if len(trends) == maxTrends {
			break
		}
	}
	return trends
}

// GenerateTitle asks the model for a digest title seeded with the lead
// tags of the first few summaries. Surrounding quotes are stripped.
func (s *Summarizer) GenerateTitle(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error) {
	var topTopics []string
	for _, p := range pairs {
		if len(topTopics) == 5 {
			break
		}
		if len(p.Summary.Tags) > 0 {
			topTopics = append(topTopics, p.Summary.Tags[0])
		}
	}
	if len(topTopics) > 3 {
		topTopics = topTopics[:3]
	}

	prompt := fmt.Sprintf(`Generate an engaging, professional newsletter title for a %s news digest.

Top topics covered: %s

Requirements:
- Catchy but professional
- Includes the niche (%s)
- Under 10 words
- Relevant to current news cycle

Provide only the title, no explanation.`, niche, strings.Join(topTopics, ", "), niche)

	title, err := s.chat(ctx, []llm.Message{
		llm.SystemMessage("You are a professional newsletter editor."),
		llm.UserMessage(prompt),
	}, 50)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"`)
	title = strings.Trim(title, `'`)
	return title, nil
}

// GenerateInsights asks the model for cross-article analysis based on
// the key insights of the leading summaries.
func (s *Summarizer) GenerateInsights(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error) {
	lead := pairs
	if len(lead) > 10 {
		lead = lead[:10]
	}
	var all []string
	for _, p := range lead {
		all = append(all, p.Summary.KeyInsights...)
	}
	if len(all) > 20 {
		all = all[:20]
	}

	var b strings.Builder
	for _, insight := range all {
		fmt.Fprintf(&b, "- %s\n", insight)
	}

	prompt := fmt.Sprintf(`Based on the following key insights from today's %s news, provide a brief analysis
of the overall trends, patterns, and what they mean for the industry.

Key insights:
%s
Write 2-3 paragraphs of thoughtful analysis. Focus on:
1. Major themes and patterns
2. What this means for the future
3. Action items for readers

Keep it concise and insightful.`, niche, b.String())

	return s.chat(ctx, []llm.Message{
		llm.SystemMessage(fmt.Sprintf("You are an expert %s industry analyst.", niche)),
		llm.UserMessage(prompt),
	}, s.maxTokens)
}
