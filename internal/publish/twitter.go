package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"newsdigest/internal/infra"
	"newsdigest/pkg/models"
)

const maxTweetLen = 280

// TwitterPublisher posts the digest as a tweet thread through the v2
// API.
type TwitterPublisher struct {
	bearerToken string
	baseURL     string
	client      *http.Client
	limiter     *infra.RateLimiter
}

// TwitterOption configures a TwitterPublisher.
type TwitterOption func(*TwitterPublisher)

// WithTwitterBaseURL overrides the API base URL, for tests.
func WithTwitterBaseURL(url string) TwitterOption {
	return func(p *TwitterPublisher) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithTwitterHTTPClient overrides the HTTP client.
func WithTwitterHTTPClient(client *http.Client) TwitterOption {
	return func(p *TwitterPublisher) { p.client = client }
}

// WithTwitterRateLimit overrides the posting rate limit.
func WithTwitterRateLimit(tokens int, per time.Duration) TwitterOption {
	return func(p *TwitterPublisher) { p.limiter = infra.NewRateLimiter(tokens, per) }
}

// NewTwitterPublisher creates a Twitter publisher.
func NewTwitterPublisher(bearerToken string, opts ...TwitterOption) (*TwitterPublisher, error) {
	if bearerToken == "" {
		return nil, fmt.Errorf("twitter: bearer token not configured")
	}
	p := &TwitterPublisher{
		bearerToken: bearerToken,
		baseURL:     "https://api.twitter.com",
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     infra.NewRateLimiter(1, 2*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *TwitterPublisher) Name() string { return "twitter" }

// PublishDigest posts the digest as a thread: title and intro, then up
// to three top stories, then trends.
func (p *TwitterPublisher) PublishDigest(ctx context.Context, content models.DigestContent, _ []models.ArticlePair, _ Metadata) error {
	tweets := DigestThread(content)
	replyTo := ""
	for _, text := range tweets {
		id, err := p.postTweet(ctx, text, replyTo)
		if err != nil {
			return fmt.Errorf("twitter: post thread: %w", err)
		}
		replyTo = id
	}
	log.Printf("[publish] posted thread with %d tweets", len(tweets))
	return nil
}

// PublishArticle posts a single article summary tweet with hashtags.
func (p *TwitterPublisher) PublishArticle(ctx context.Context, pair models.ArticlePair, _ Metadata) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\n", pair.Article.Title, pair.Summary.ShortSummary)
	if tags := pair.Summary.Tags; len(tags) > 0 {
		if len(tags) > 3 {
			tags = tags[:3]
		}
		hashtags := make([]string, len(tags))
		for i, tag := range tags {
			hashtags[i] = "#" + strings.ReplaceAll(tag, " ", "")
		}
		fmt.Fprintf(&b, "%s\n\n", strings.Join(hashtags, " "))
	}
	fmt.Fprintf(&b, "Read more: %s", pair.Article.SourceURL)

	_, err := p.postTweet(ctx, TruncateTweet(b.String()), "")
	return err
}

// ReportErrors is a no-op: error reports do not belong on the timeline.
func (p *TwitterPublisher) ReportErrors(context.Context, []string) error { return nil }

// DigestThread splits digest content into tweet-sized thread posts.
func DigestThread(content models.DigestContent) []string {
	var tweets []string
	tweets = append(tweets, TruncateTweet(fmt.Sprintf("%s\n\n%s", content.Title, content.Introduction)))

	stories := content.TopStories
	if len(stories) > 3 {
		stories = stories[:3]
	}
	for i, story := range stories {
		tweets = append(tweets, TruncateTweet(fmt.Sprintf("%d. %s\n\n%s\n\nRead more: %s", i+1, story.Title, story.Summary, story.URL)))
	}

	if len(content.Trends) > 0 {
		trends := content.Trends
		if len(trends) > 3 {
			trends = trends[:3]
		}
		var b strings.Builder
		b.WriteString("Today's Trends:\n\n")
		for _, trend := range trends {
			fmt.Fprintf(&b, "- %s\n", trend)
		}
		tweets = append(tweets, TruncateTweet(b.String()))
	}
	return tweets
}

// TruncateTweet trims text to the tweet length limit, marking the cut
// with an ellipsis.
func TruncateTweet(text string) string {
	if len(text) <= maxTweetLen {
		return text
	}
	return text[:maxTweetLen-3] + "..."
}

// postTweet posts one tweet, optionally as a reply, and returns its ID.
func (p *TwitterPublisher) postTweet(ctx context.Context, text, replyTo string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{"text": text}
	if replyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": replyTo}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &infra.ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.ID, nil
}
