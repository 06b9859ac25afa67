package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
niche: AI
sources:
  feeds:
    - name: AI Wire
      url: https://aiwire.example.com/rss
      max_articles: 5
      fetch_full_content: true
  pages:
    - name: Lab Blog
      url: https://lab.example.com/news
      selectors:
        article_list: ".post a"
        title: h1
        content: .story-body
summarization:
  provider: anthropic
  model: claude-sonnet-4-20250514
publishing:
  markdown:
    output_dir: ./out
schedule:
  frequency: weekly
  time: "08:30"
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Niche != "AI" {
		t.Errorf("niche = %q", cfg.Niche)
	}
	if len(cfg.Sources.Feeds) != 1 || cfg.Sources.Feeds[0].MaxArticles != 5 {
		t.Errorf("feeds = %+v", cfg.Sources.Feeds)
	}
	if !cfg.Sources.Feeds[0].FetchFullContent {
		t.Error("fetch_full_content should be true")
	}
	if len(cfg.Sources.Pages) != 1 || cfg.Sources.Pages[0].Selectors.ArticleList != ".post a" {
		t.Errorf("pages = %+v", cfg.Sources.Pages)
	}
	if cfg.Summarization.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Summarization.Provider)
	}
	if cfg.Schedule.Frequency != "weekly" || cfg.Schedule.Time != "08:30" {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
}

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "niche: robotics\n"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Summarization.Provider != "openai" {
		t.Errorf("default provider = %q", cfg.Summarization.Provider)
	}
	if cfg.Summarization.MaxArticlesPerRun != 20 {
		t.Errorf("default max_articles_per_run = %d", cfg.Summarization.MaxArticlesPerRun)
	}
	if cfg.Dedup.TTLDays != 7 || cfg.Dedup.Capacity != 1000 {
		t.Errorf("dedup defaults = %+v", cfg.Dedup)
	}
	if !cfg.Publishing.Markdown.Enabled {
		t.Error("markdown publishing should default to enabled")
	}
	if cfg.Publishing.GitHub.Enabled || cfg.Publishing.Twitter.Enabled {
		t.Error("remote publishing should default to disabled")
	}
	if cfg.Schedule.Frequency != "daily" || cfg.Schedule.Time != "09:00" {
		t.Errorf("schedule defaults = %+v", cfg.Schedule)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api port = %d", cfg.API.Port)
	}
}

func TestEnvOverridesKeys(t *testing.T) {
	t.Setenv("NEWSDIGEST_SUMMARIZATION_OPENAI_KEY", "sk-env-override")
	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Summarization.OpenAIKey != "sk-env-override" {
		t.Errorf("openai key = %q", cfg.Summarization.OpenAIKey)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFromFile(writeConfig(t, validYAML))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.Sources.Feeds = nil
	cfg.Sources.Pages = nil
	if cfg.Validate() == nil {
		t.Error("no sources should be rejected")
	}

	cfg = base()
	cfg.Summarization.Provider = "cohere"
	if cfg.Validate() == nil {
		t.Error("unknown provider should be rejected")
	}

	cfg = base()
	cfg.Schedule.Time = "25:00"
	if cfg.Validate() == nil {
		t.Error("out-of-range time should be rejected")
	}

	cfg = base()
	cfg.Publishing.GitHub.Enabled = true
	cfg.Publishing.GitHub.Repo = "noslash"
	if cfg.Validate() == nil {
		t.Error("malformed github repo should be rejected")
	}

	cfg = base()
	cfg.Sources.Pages[0].Selectors.ArticleList = ""
	if cfg.Validate() == nil {
		t.Error("page without list selector should be rejected")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("09:30")
	if err != nil || h != 9 || m != 30 {
		t.Errorf("ParseClock(09:30) = %d, %d, %v", h, m, err)
	}
	for _, bad := range []string{"", "nine", "24:00", "12:60", "-1:00"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestCheckAPIKeysMasking(t *testing.T) {
	cfg := &Config{}
	cfg.Summarization.OpenAIKey = "sk-0123456789abcdef"
	statuses := CheckAPIKeys(cfg)

	var openai KeyStatus
	for _, s := range statuses {
		if s.Name == "OpenAI API Key" {
			openai = s
		}
	}
	if !openai.IsSet || openai.Source != KeySourceConfig {
		t.Errorf("openai status = %+v", openai)
	}
	if openai.Masked != "sk-...def" {
		t.Errorf("masked = %q", openai.Masked)
	}

	for _, s := range statuses {
		if s.Name == "GitHub Token" && (s.IsSet || s.Source != KeySourceNone) {
			t.Errorf("github status = %+v", s)
		}
	}
}
