// Package config handles configuration loading for newsdigest.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Niche         string              `mapstructure:"niche"         yaml:"niche"`
	Sources       SourcesConfig       `mapstructure:"sources"       yaml:"sources"`
	Collector     CollectorConfig     `mapstructure:"collector"     yaml:"collector"`
	Summarization SummarizationConfig `mapstructure:"summarization" yaml:"summarization"`
	Dedup         DedupConfig         `mapstructure:"dedup"         yaml:"dedup"`
	Publishing    PublishingConfig    `mapstructure:"publishing"    yaml:"publishing"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"      yaml:"schedule"`
	API           APIConfig           `mapstructure:"api"           yaml:"api"`
}

// SourcesConfig lists where articles come from.
type SourcesConfig struct {
	Feeds []FeedConfig `mapstructure:"feeds" yaml:"feeds"`
	Pages []PageConfig `mapstructure:"pages" yaml:"pages"`
}

// FeedConfig configures one RSS/Atom feed.
type FeedConfig struct {
	Name             string `mapstructure:"name"               yaml:"name"`
	URL              string `mapstructure:"url"                yaml:"url"`
	MaxArticles      int    `mapstructure:"max_articles"       yaml:"max_articles"`
	FetchFullContent bool   `mapstructure:"fetch_full_content" yaml:"fetch_full_content"`
}

// PageConfig configures one scraped listing page.
type PageConfig struct {
	Name        string          `mapstructure:"name"         yaml:"name"`
	URL         string          `mapstructure:"url"          yaml:"url"`
	MaxArticles int             `mapstructure:"max_articles" yaml:"max_articles"`
	Selectors   SelectorsConfig `mapstructure:"selectors"    yaml:"selectors"`
}

// SelectorsConfig maps article fields to CSS selectors.
type SelectorsConfig struct {
	ArticleList string `mapstructure:"article_list" yaml:"article_list"`
	Title       string `mapstructure:"title"        yaml:"title"`
	Content     string `mapstructure:"content"      yaml:"content"`
	Date        string `mapstructure:"date"         yaml:"date"`
	Author      string `mapstructure:"author"       yaml:"author"`
}

// CollectorConfig holds fetch behavior settings.
type CollectorConfig struct {
	Concurrency    int `mapstructure:"concurrency"     yaml:"concurrency"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SummarizationConfig holds LLM provider settings.
type SummarizationConfig struct {
	Provider          string  `mapstructure:"provider"             yaml:"provider"` // "openai" or "anthropic"
	Model             string  `mapstructure:"model"                yaml:"model"`
	OpenAIKey         string  `mapstructure:"openai_key"           yaml:"openai_key"`
	AnthropicKey      string  `mapstructure:"anthropic_key"        yaml:"anthropic_key"`
	MaxArticlesPerRun int     `mapstructure:"max_articles_per_run" yaml:"max_articles_per_run"`
	Temperature       float64 `mapstructure:"temperature"          yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"           yaml:"max_tokens"`
}

// DedupConfig holds deduplication cache settings.
type DedupConfig struct {
	CacheFile string `mapstructure:"cache_file" yaml:"cache_file"`
	TTLDays   int    `mapstructure:"ttl_days"   yaml:"ttl_days"`
	Capacity  int    `mapstructure:"capacity"   yaml:"capacity"`
}

// PublishingConfig holds output channel settings.
type PublishingConfig struct {
	Markdown MarkdownConfig `mapstructure:"markdown" yaml:"markdown"`
	GitHub   GitHubConfig   `mapstructure:"github"   yaml:"github"`
	Twitter  TwitterConfig  `mapstructure:"twitter"  yaml:"twitter"`
}

// MarkdownConfig configures file output.
type MarkdownConfig struct {
	Enabled   bool   `mapstructure:"enabled"    yaml:"enabled"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// GitHubConfig configures repository publishing.
type GitHubConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Token   string `mapstructure:"token"   yaml:"token"`
	Repo    string `mapstructure:"repo"    yaml:"repo"` // "owner/name"
	Branch  string `mapstructure:"branch"  yaml:"branch"`
}

// TwitterConfig configures tweet publishing.
type TwitterConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"`
	BearerToken string `mapstructure:"bearer_token" yaml:"bearer_token"`
}

// ScheduleConfig holds scheduled-run settings.
type ScheduleConfig struct {
	Frequency string `mapstructure:"frequency" yaml:"frequency"` // "daily" or "weekly"
	Time      string `mapstructure:"time"      yaml:"time"`      // "HH:MM"
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.newsdigest/config.yaml (home directory)
//  3. /etc/newsdigest/config.yaml (system)
//
// Environment variables override config file values.
// Format: NEWSDIGEST_<SECTION>_<KEY>, e.g., NEWSDIGEST_SUMMARIZATION_OPENAI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".newsdigest"))
	v.AddConfigPath("/etc/newsdigest")

	v.SetEnvPrefix("NEWSDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("NEWSDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Validate checks the configuration for problems that would make a run
// fail halfway through.
func (c *Config) Validate() error {
	if len(c.Sources.Feeds) == 0 && len(c.Sources.Pages) == 0 {
		return fmt.Errorf("config: no sources configured")
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" {
			return fmt.Errorf("config: feed %d (%s) has no URL", i, f.Name)
		}
	}
	for i, p := range c.Sources.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %d (%s) has no URL", i, p.Name)
		}
		if p.Selectors.ArticleList == "" {
			return fmt.Errorf("config: page %d (%s) has no article_list selector", i, p.Name)
		}
	}

	switch c.Summarization.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown summarization provider %q", c.Summarization.Provider)
	}

	if c.Publishing.GitHub.Enabled && !strings.Contains(c.Publishing.GitHub.Repo, "/") {
		return fmt.Errorf("config: github repo must be owner/name, got %q", c.Publishing.GitHub.Repo)
	}

	switch c.Schedule.Frequency {
	case "daily", "weekly":
	default:
		return fmt.Errorf("config: schedule frequency must be daily or weekly, got %q", c.Schedule.Frequency)
	}
	if _, _, err := ParseClock(c.Schedule.Time); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseClock parses a "HH:MM" string into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("niche", "AI")

	// Collector defaults
	v.SetDefault("collector.concurrency", 4)
	v.SetDefault("collector.timeout_seconds", 30)

	// Summarization defaults
	v.SetDefault("summarization.provider", "openai")
	v.SetDefault("summarization.max_articles_per_run", 20)
	v.SetDefault("summarization.temperature", 0.7)
	v.SetDefault("summarization.max_tokens", 2000)

	// Dedup defaults
	v.SetDefault("dedup.cache_file", "cache/article_cache.json")
	v.SetDefault("dedup.ttl_days", 7)
	v.SetDefault("dedup.capacity", 1000)

	// Publishing defaults
	v.SetDefault("publishing.markdown.enabled", true)
	v.SetDefault("publishing.markdown.output_dir", "./output")
	v.SetDefault("publishing.github.enabled", false)
	v.SetDefault("publishing.github.branch", "main")
	v.SetDefault("publishing.twitter.enabled", false)

	// Schedule defaults
	v.SetDefault("schedule.frequency", "daily")
	v.SetDefault("schedule.time", "09:00")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("NEWSDIGEST_SUMMARIZATION_OPENAI_KEY"); key != "" {
		cfg.Summarization.OpenAIKey = key
	}
	if key := os.Getenv("NEWSDIGEST_SUMMARIZATION_ANTHROPIC_KEY"); key != "" {
		cfg.Summarization.AnthropicKey = key
	}
	if key := os.Getenv("NEWSDIGEST_PUBLISHING_GITHUB_TOKEN"); key != "" {
		cfg.Publishing.GitHub.Token = key
	}
	if key := os.Getenv("NEWSDIGEST_PUBLISHING_TWITTER_BEARER_TOKEN"); key != "" {
		cfg.Publishing.Twitter.BearerToken = key
	}
	// Bare provider API keys work too, matching common tooling.
	if cfg.Summarization.OpenAIKey == "" {
		cfg.Summarization.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Summarization.AnthropicKey == "" {
		cfg.Summarization.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
