package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"newsdigest/pkg/models"
)

func sampleDigest() models.DigestContent {
	return models.DigestContent{
		Title:        "AI Weekly",
		Introduction: "Welcome to today's AI news digest!",
		TopStories: []models.TopStory{
			{
				Title:       "Model breaks records",
				Source:      "AI Wire",
				URL:         "https://example.com/record",
				Summary:     "A short account of the record.",
				KeyInsights: []string{"Benchmarks up", "Costs down"},
			},
		},
		Trends:   []string{"LLM (mentioned in 3 articles)"},
		Insights: "Three paragraphs of analysis.",
	}
}

func samplePairs() []models.ArticlePair {
	return []models.ArticlePair{{
		Article: models.Article{
			Title:       "Model breaks records",
			SourceName:  "AI Wire",
			SourceURL:   "https://example.com/record",
			Author:      "Jordan Reyes",
			PublishedAt: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		Summary: models.Summary{
			ShortSummary: "A short account of the record.",
			KeyInsights:  []string{"Benchmarks up"},
			Tags:         []string{"LLM", "Benchmarks"},
		},
	}}
}

func sampleMeta() Metadata {
	return Metadata{Niche: "AI", GeneratedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)}
}

// ════════════════════════════════════════════
// Markdown Publisher
// ════════════════════════════════════════════

func TestMarkdownPublishDigest(t *testing.T) {
	dir := t.TempDir()
	p := NewMarkdownPublisher(dir)

	if err := p.PublishDigest(context.Background(), sampleDigest(), samplePairs(), sampleMeta()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-08-24-AI-digest.md"))
	if err != nil {
		t.Fatalf("digest file not written: %v", err)
	}
	body := string(data)
	for _, want := range []string{
		"# AI Weekly",
		"## Top Stories",
		"### 1. Model breaks records",
		"[AI Wire](https://example.com/record)",
		"**Key Points:**",
		"## Trends",
		"LLM (mentioned in 3 articles)",
		"## All Articles",
		"**Author:** Jordan Reyes",
		"**Tags:** LLM, Benchmarks",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("digest missing %q", want)
		}
	}

	latest, err := os.ReadFile(filepath.Join(dir, "latest.md"))
	if err != nil {
		t.Fatalf("latest.md not written: %v", err)
	}
	if string(latest) != body {
		t.Error("latest.md should mirror the digest")
	}

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	if err != nil {
		t.Fatalf("index.md not written: %v", err)
	}
	if !strings.Contains(string(index), "2026-08-24-AI-digest") {
		t.Error("index should link the digest")
	}
}

func TestMarkdownPublishArticle(t *testing.T) {
	dir := t.TempDir()
	p := NewMarkdownPublisher(dir)
	pair := samplePairs()[0]
	pair.Summary.DetailedSummary = "The long version."

	if err := p.PublishArticle(context.Background(), pair, sampleMeta()); err != nil {
		t.Fatalf("PublishArticle: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "articles", "*.md"))
	if len(matches) != 1 {
		t.Fatalf("want one article file, got %v", matches)
	}
	data, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(data), "## Detailed Summary") {
		t.Error("article file should carry the detailed summary")
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := sanitizeFilename(`what: "a/b" <test>?`)
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Errorf("unsafe characters survived: %q", got)
	}
	long := strings.Repeat("x", 300)
	if len(sanitizeFilename(long)) != 200 {
		t.Error("long names should be capped at 200")
	}

	wide := strings.Repeat("ñ", 300)
	capped := sanitizeFilename(wide)
	if !utf8.ValidString(capped) {
		t.Error("capped name must remain valid UTF-8")
	}
	if got := utf8.RuneCountInString(capped); got != 200 {
		t.Errorf("capped at %d runes, want 200", got)
	}
}

// ════════════════════════════════════════════
// GitHub Publisher
// ════════════════════════════════════════════

func TestGitHubPublishDigest(t *testing.T) {
	var puts []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/digest/contents/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			var payload struct {
				Message string `json:"message"`
				Content string `json:"content"`
				Branch  string `json:"branch"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			if payload.Branch != "main" {
				t.Errorf("branch = %q", payload.Branch)
			}
			if payload.Content == "" {
				t.Error("content should be base64 encoded text")
			}
			puts = append(puts, strings.TrimPrefix(r.URL.Path, "/repos/acme/digest/contents/"))
			w.WriteHeader(http.StatusCreated)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewGitHubPublisher("tok", "acme/digest", "main", WithGitHubBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.PublishDigest(context.Background(), sampleDigest(), samplePairs(), sampleMeta()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	want := []string{
		"content/newsletters/2026-08-24-AI-digest.md",
		"content/newsletters/latest.md",
		"README.md",
	}
	if len(puts) != len(want) {
		t.Fatalf("puts = %v", puts)
	}
	for i := range want {
		if puts[i] != want[i] {
			t.Errorf("puts[%d] = %q, want %q", i, puts[i], want[i])
		}
	}
}

func TestGitHubReportErrors(t *testing.T) {
	var issue struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/digest/issues", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewGitHubPublisher("tok", "acme/digest", "", WithGitHubBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ReportErrors(context.Background(), []string{"source X failed", "source Y failed"}); err != nil {
		t.Fatalf("ReportErrors: %v", err)
	}
	if !strings.Contains(issue.Body, "source X failed") {
		t.Errorf("issue body = %q", issue.Body)
	}
	if len(issue.Labels) != 2 {
		t.Errorf("labels = %v", issue.Labels)
	}
}

func TestGitHubPublisherRequiresToken(t *testing.T) {
	if _, err := NewGitHubPublisher("", "acme/digest", "main"); err == nil {
		t.Fatal("empty token should be rejected")
	}
	if _, err := NewGitHubPublisher("tok", "no-slash", "main"); err == nil {
		t.Fatal("malformed repo should be rejected")
	}
}

// ════════════════════════════════════════════
// Twitter Publisher
// ════════════════════════════════════════════

func TestTwitterPublishDigestThreads(t *testing.T) {
	type tweet struct {
		Text  string `json:"text"`
		Reply *struct {
			InReplyTo string `json:"in_reply_to_tweet_id"`
		} `json:"reply"`
	}
	var tweets []tweet
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		var tw tweet
		if err := json.NewDecoder(r.Body).Decode(&tw); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		tweets = append(tweets, tw)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"%d"}}`, len(tweets))
	}))
	defer srv.Close()

	p, err := NewTwitterPublisher("tok", WithTwitterBaseURL(srv.URL), WithTwitterRateLimit(100, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.PublishDigest(context.Background(), sampleDigest(), nil, sampleMeta()); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	// Title, one story, trends.
	if len(tweets) != 3 {
		t.Fatalf("got %d tweets, want 3", len(tweets))
	}
	if tweets[0].Reply != nil {
		t.Error("first tweet should not be a reply")
	}
	if tweets[1].Reply == nil || tweets[1].Reply.InReplyTo != "1" {
		t.Errorf("second tweet should reply to the first, got %+v", tweets[1].Reply)
	}
	if !strings.Contains(tweets[0].Text, "AI Weekly") {
		t.Errorf("first tweet = %q", tweets[0].Text)
	}
	if !strings.Contains(tweets[2].Text, "Today's Trends") {
		t.Errorf("last tweet = %q", tweets[2].Text)
	}
}

func TestTruncateTweet(t *testing.T) {
	short := "fits"
	if TruncateTweet(short) != short {
		t.Error("short text should be unchanged")
	}
	long := strings.Repeat("a", 400)
	got := TruncateTweet(long)
	if len(got) != 280 {
		t.Errorf("len = %d, want 280", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated tweet should end with ellipsis")
	}
}

// ════════════════════════════════════════════
// Registry
// ════════════════════════════════════════════

type fakeChannel struct {
	name      string
	fail      bool
	published int
	reported  []string
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) PublishDigest(context.Context, models.DigestContent, []models.ArticlePair, Metadata) error {
	if f.fail {
		return errors.New("boom")
	}
	f.published++
	return nil
}
func (f *fakeChannel) PublishArticle(context.Context, models.ArticlePair, Metadata) error {
	return nil
}
func (f *fakeChannel) ReportErrors(_ context.Context, errs []string) error {
	f.reported = append(f.reported, errs...)
	return nil
}

func TestRegistryIsolatesChannelFailures(t *testing.T) {
	bad := &fakeChannel{name: "bad", fail: true}
	good := &fakeChannel{name: "good"}
	r := NewRegistry(false, bad, good)

	errs := r.PublishDigest(context.Background(), sampleDigest(), nil, sampleMeta())
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	if good.published != 1 {
		t.Error("healthy channel should still publish")
	}
}

func TestRegistryPreviewSkipsChannels(t *testing.T) {
	ch := &fakeChannel{name: "ch"}
	r := NewRegistry(true, ch)

	if errs := r.PublishDigest(context.Background(), sampleDigest(), nil, sampleMeta()); errs != nil {
		t.Fatalf("preview should not error: %v", errs)
	}
	if ch.published != 0 {
		t.Error("preview mode must not publish")
	}
	r.ReportErrors(context.Background(), []string{"e"})
	if len(ch.reported) != 0 {
		t.Error("preview mode must not report errors")
	}
}
