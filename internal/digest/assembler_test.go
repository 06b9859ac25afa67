package digest

import (
	"fmt"
	"strings"
	"testing"

	"newsdigest/pkg/models"
)

func makePairs(n int) []models.ArticlePair {
	pairs := make([]models.ArticlePair, n)
	for i := range pairs {
		pairs[i] = models.ArticlePair{
			Article: models.Article{
				Title:      fmt.Sprintf("Story %d", i+1),
				SourceName: "AI Wire",
				SourceURL:  fmt.Sprintf("https://example.com/%d", i+1),
			},
			Summary: models.Summary{
				ShortSummary: fmt.Sprintf("Summary %d", i+1),
				KeyInsights:  []string{"a", "b", "c", "d", "e"},
			},
		}
	}
	return pairs
}

func TestAssemble(t *testing.T) {
	content := Assemble("Daily AI", "AI", "The analysis.", makePairs(12), []string{"LLM (mentioned in 3 articles)"})

	if content.Title != "Daily AI" {
		t.Errorf("title = %q", content.Title)
	}
	if len(content.TopStories) != 5 {
		t.Fatalf("got %d top stories, want 5", len(content.TopStories))
	}
	if content.TopStories[0].Title != "Story 1" {
		t.Errorf("stories should keep collection order, got %q first", content.TopStories[0].Title)
	}
	for _, story := range content.TopStories {
		if len(story.KeyInsights) != 3 {
			t.Errorf("story %q carries %d insights, want 3", story.Title, len(story.KeyInsights))
		}
	}
	if !strings.Contains(content.Introduction, "analyzed 12 articles") {
		t.Errorf("intro should count all pairs, got %q", content.Introduction)
	}
	if content.Insights != "The analysis." {
		t.Errorf("insights = %q", content.Insights)
	}
	if len(content.Trends) != 1 {
		t.Errorf("trends = %v", content.Trends)
	}
}

func TestAssembleFewerThanFiveStories(t *testing.T) {
	content := Assemble("T", "AI", "", makePairs(2), nil)
	if len(content.TopStories) != 2 {
		t.Fatalf("got %d top stories, want 2", len(content.TopStories))
	}
	if !strings.Contains(content.Introduction, "analyzed 2 articles") {
		t.Errorf("intro = %q", content.Introduction)
	}
}
