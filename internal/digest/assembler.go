// Package digest assembles summarized articles into publishable digest
// content.
package digest

import (
	"fmt"

	"newsdigest/pkg/models"
)

const (
	// leadStories is how many pairs feed trends and insights.
	leadStories = 10
	// topStories is how many stories appear in the digest body.
	topStories = 5
	// insightsPerStory caps bullet points per top story.
	insightsPerStory = 3
)

// Assemble builds the digest from title, generated insights, and the
// summarized articles in collection order. The intro counts every
// summarized article, not just the ones that made the cut.
func Assemble(title, niche, insights string, pairs []models.ArticlePair, trends []string) models.DigestContent {
	lead := pairs
	if len(lead) > leadStories {
		lead = lead[:leadStories]
	}

	var stories []models.TopStory
	for _, p := range lead {
		if len(stories) == topStories {
			break
		}
		keyInsights := p.Summary.KeyInsights
		if len(keyInsights) > insightsPerStory {
			keyInsights = keyInsights[:insightsPerStory]
		}
		stories = append(stories, models.TopStory{
			Title:       p.Article.Title,
			Source:      p.Article.SourceName,
			URL:         p.Article.SourceURL,
			Summary:     p.Summary.ShortSummary,
			KeyInsights: keyInsights,
		})
	}

	intro := fmt.Sprintf(
		"Welcome to today's %s news digest! We've analyzed %d articles to bring you the most important developments and insights.",
		niche, len(pairs),
	)

	return models.DigestContent{
		Title:        title,
		Introduction: intro,
		TopStories:   stories,
		Trends:       trends,
		Insights:     insights,
	}
}
