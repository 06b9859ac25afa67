package publish

import (
	"bytes"
	"context"
	"encoding/base64"
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

// GitHubPublisher commits digest content into a repository via the
// contents API and files error reports as issues.
type GitHubPublisher struct {
	token   string
	repo    string // "owner/name"
	branch  string
	baseURL string
	client  *http.Client
}

// GitHubOption configures a GitHubPublisher.
type GitHubOption func(*GitHubPublisher)

// WithGitHubBaseURL overrides the API base URL, for tests or GitHub
// Enterprise.
func WithGitHubBaseURL(url string) GitHubOption {
	return func(p *GitHubPublisher) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithGitHubHTTPClient overrides the HTTP client.
func WithGitHubHTTPClient(client *http.Client) GitHubOption {
	return func(p *GitHubPublisher) { p.client = client }
}

// NewGitHubPublisher creates a GitHub publisher for the given repo.
func NewGitHubPublisher(token, repo, branch string, opts ...GitHubOption) (*GitHubPublisher, error) {
	if token == "" {
		return nil, fmt.Errorf("github: token not configured")
	}
	if !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github: repo must be owner/name, got %q", repo)
	}
	if branch == "" {
		branch = "main"
	}
	p := &GitHubPublisher{
		token:   token,
		repo:    repo,
		branch:  branch,
		baseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GitHubPublisher) Name() string { return "github" }

// PublishDigest commits the digest under content/newsletters/, updates
// latest.md, and refreshes the repository README.
func (p *GitHubPublisher) PublishDigest(ctx context.Context, content models.DigestContent, pairs []models.ArticlePair, meta Metadata) error {
	niche := meta.Niche
	if niche == "" {
		niche = "news"
	}
	body := FormatDigest(content, pairs, meta)
	name := sanitizeFilename(fmt.Sprintf("%s-%s-digest", meta.GeneratedAt.Format("2006-01-02"), niche)) + ".md"
	message := fmt.Sprintf("Update news digest - %s", meta.GeneratedAt.Format("2006-01-02 15:04"))

	files := []struct {
		path, text string
	}{
		{"content/newsletters/" + name, body},
		{"content/newsletters/latest.md", body},
		{"README.md", p.indexPage(meta)},
	}
	for _, f := range files {
		if err := p.putFile(ctx, f.path, f.text, message); err != nil {
			return err
		}
	}
	log.Printf("[publish] digest committed to %s", p.repo)
	return nil
}

// PublishArticle commits one article summary under content/articles/.
func (p *GitHubPublisher) PublishArticle(ctx context.Context, pair models.ArticlePair, meta Metadata) error {
	slug := pair.Article.Title
	if len(slug) > 50 {
		slug = slug[:50]
	}
	name := fmt.Sprintf("%s-%s.md", meta.GeneratedAt.Format("2006-01-02"), sanitizeFilename(slug))
	message := fmt.Sprintf("Add article summary - %s", meta.GeneratedAt.Format("2006-01-02"))
	return p.putFile(ctx, "content/articles/"+name, formatArticleSection(pair), message)
}

// ReportErrors opens an issue listing pipeline errors.
func (p *GitHubPublisher) ReportErrors(ctx context.Context, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("The following errors were encountered during digest generation:\n\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\n*This issue was created automatically.*")

	payload := map[string]any{
		"title":  fmt.Sprintf("Digest Generation Errors - %s", time.Now().Format("2006-01-02")),
		"body":   b.String(),
		"labels": []string{"automated", "error-report"},
	}
	return p.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/repos/%s/issues", p.baseURL, p.repo), payload, http.StatusCreated)
}

// --- API helpers ---

// putFile creates or updates one file through the contents API. An
// existing file's SHA is looked up first; the API requires it on update.
func (p *GitHubPublisher) putFile(ctx context.Context, path, content, message string) error {
	url := fmt.Sprintf("%s/repos/%s/contents/%s", p.baseURL, p.repo, path)

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  p.branch,
	}
	if sha, ok := p.fileSHA(ctx, url); ok {
		payload["sha"] = sha
	}
	if err := p.doJSON(ctx, http.MethodPut, url, payload, http.StatusCreated, http.StatusOK); err != nil {
		return fmt.Errorf("github: put %s: %w", path, err)
	}
	return nil
}

// fileSHA returns the blob SHA of an existing file, or false when the
// file does not exist yet.
func (p *GitHubPublisher) fileSHA(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"?ref="+p.branch, nil)
	if err != nil {
		return "", false
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	var meta struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", false
	}
	return meta.SHA, meta.SHA != ""
}

func (p *GitHubPublisher) doJSON(ctx context.Context, method, url string, payload any, okStatuses ...int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	for _, status := range okStatuses {
		if resp.StatusCode == status {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &infra.ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
}

func (p *GitHubPublisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

// indexPage renders the repository README.
func (p *GitHubPublisher) indexPage(meta Metadata) string {
	return fmt.Sprintf(`# News Digest

Last updated: %s

## Latest Newsletter

[Read the latest newsletter](./content/newsletters/latest.md)

## Archives

Browse all newsletters in the [newsletters directory](./content/newsletters/).

Browse individual article summaries in the [articles directory](./content/articles/).

## About

This repository contains automatically generated summaries of news articles, updated on a schedule.
`, meta.GeneratedAt.Format("January 2, 2006 at 3:04 PM MST"))
}
