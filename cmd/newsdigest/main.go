// newsdigest — automated niche news digest generator.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsdigest/api"
	"newsdigest/internal/collector"
	"newsdigest/internal/config"
	"newsdigest/internal/dedup"
	"newsdigest/internal/llm"
	"newsdigest/internal/pipeline"
	"newsdigest/internal/publish"
	"newsdigest/internal/summarizer"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "newsdigest",
	Short: "newsdigest — automated niche news digest generator",
	Long: `newsdigest collects articles from configured RSS feeds and web pages,
filters out previously seen stories, summarizes the rest with an LLM,
and publishes the assembled digest to markdown files, a GitHub
repository, and Twitter.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsdigest %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the digest pipeline once",
	Long: `Collect, deduplicate, summarize, and publish a digest in one pass.

Examples:
  newsdigest run
  newsdigest run --preview
  newsdigest run --niche "Climate Tech" --max-articles 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		applyRunFlags(cmd)

		pipe, err := buildPipeline(cfg, preview)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		metrics, err := pipe.Run(ctx)
		if err != nil {
			return err
		}
		printMetrics(metrics)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("preview", false, "generate the digest without publishing")
	runCmd.Flags().String("niche", "", "override the configured niche")
	runCmd.Flags().Int("max-articles", 0, "override articles summarized per run")
	runCmd.Flags().Bool("feeds-only", false, "collect from RSS feeds only")
	runCmd.Flags().Bool("pages-only", false, "collect from scraped pages only")
	runCmd.MarkFlagsMutuallyExclusive("feeds-only", "pages-only")
}

// applyRunFlags folds run-level flag overrides into the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	if niche, _ := cmd.Flags().GetString("niche"); niche != "" {
		cfg.Niche = niche
	}
	if n, _ := cmd.Flags().GetInt("max-articles"); n > 0 {
		cfg.Summarization.MaxArticlesPerRun = n
	}
	if only, _ := cmd.Flags().GetBool("feeds-only"); only {
		cfg.Sources.Pages = nil
	}
	if only, _ := cmd.Flags().GetBool("pages-only"); only {
		cfg.Sources.Feeds = nil
	}
}

// --- Schedule Command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the digest pipeline on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")

		pipe, err := buildPipeline(cfg, preview)
		if err != nil {
			return err
		}

		hour, minute, err := config.ParseClock(cfg.Schedule.Time)
		if err != nil {
			return err
		}

		sched := pipeline.NewScheduler(
			pipeline.Frequency(cfg.Schedule.Frequency), hour, minute,
			func(ctx context.Context) error {
				_, err := pipe.Run(ctx)
				return err
			},
		)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("📅 Scheduling %s digest runs at %s (next: %s)\n",
			cfg.Schedule.Frequency, cfg.Schedule.Time,
			sched.NextRun(time.Now()).Format("2006-01-02 15:04"))
		return sched.Start(ctx)
	},
}

func init() {
	scheduleCmd.Flags().Bool("preview", false, "generate digests without publishing")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := buildPipeline(cfg, false)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting newsdigest API server on %s\n", addr)
		return api.NewServer(cfg, pipe).ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  newsdigest — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:  %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Niche:         %s\n", cfg.Niche)
		fmt.Printf("    Sources:       %d feeds, %d pages\n", len(cfg.Sources.Feeds), len(cfg.Sources.Pages))
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.Summarization.Provider, cfg.Summarization.Model)
		fmt.Printf("    Schedule:      %s at %s\n", cfg.Schedule.Frequency, cfg.Schedule.Time)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  Publishing Channels:")
		fmt.Printf("    Markdown:      %s\n", enabledLabel(cfg.Publishing.Markdown.Enabled))
		fmt.Printf("    GitHub:        %s\n", enabledLabel(cfg.Publishing.GitHub.Enabled))
		fmt.Printf("    Twitter:       %s\n", enabledLabel(cfg.Publishing.Twitter.Enabled))
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Wiring ---

// buildPipeline assembles the full pipeline from configuration.
func buildPipeline(cfg *config.Config, preview bool) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Dedup cache; a missing cache file means a fresh start.
	cache := dedup.NewCache(
		dedup.WithTTL(time.Duration(cfg.Dedup.TTLDays)*24*time.Hour),
		dedup.WithCapacity(cfg.Dedup.Capacity),
	)
	if err := cache.Load(cfg.Dedup.CacheFile); err != nil {
		return nil, fmt.Errorf("failed to load dedup cache: %w", err)
	}

	col := buildCollector(cfg)

	provider, err := llm.New(cfg.Summarization.Provider, providerKey(cfg), cfg.Summarization.Model)
	if err != nil {
		return nil, err
	}
	summ := summarizer.New(provider,
		summarizer.WithTemperature(cfg.Summarization.Temperature),
		summarizer.WithMaxTokens(cfg.Summarization.MaxTokens),
	)

	registry, err := buildRegistry(cfg, preview)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{}
	if cfg.Summarization.MaxArticlesPerRun > 0 {
		opts = append(opts, pipeline.WithMaxArticles(cfg.Summarization.MaxArticlesPerRun))
	}
	return pipeline.New(cfg.Niche, col, cache, cfg.Dedup.CacheFile, summ, registry, opts...), nil
}

func buildCollector(cfg *config.Config) *collector.Collector {
	feeds := make([]collector.FeedSource, 0, len(cfg.Sources.Feeds))
	for _, f := range cfg.Sources.Feeds {
		feeds = append(feeds, collector.FeedSource{
			Name:             f.Name,
			URL:              f.URL,
			MaxArticles:      f.MaxArticles,
			FetchFullContent: f.FetchFullContent,
		})
	}
	pages := make([]collector.PageSource, 0, len(cfg.Sources.Pages))
	for _, p := range cfg.Sources.Pages {
		pages = append(pages, collector.PageSource{
			Name:        p.Name,
			URL:         p.URL,
			MaxArticles: p.MaxArticles,
			Selectors: collector.PageSelectors{
				ArticleList: p.Selectors.ArticleList,
				Title:       p.Selectors.Title,
				Content:     p.Selectors.Content,
				Date:        p.Selectors.Date,
				Author:      p.Selectors.Author,
			},
		})
	}

	opts := []collector.Option{collector.WithConcurrency(cfg.Collector.Concurrency)}
	if cfg.Collector.TimeoutSeconds > 0 {
		opts = append(opts, collector.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Collector.TimeoutSeconds) * time.Second,
		}))
	}
	return collector.New(feeds, pages, opts...)
}

func buildRegistry(cfg *config.Config, preview bool) (*publish.Registry, error) {
	var publishers []publish.Publisher
	if cfg.Publishing.Markdown.Enabled {
		publishers = append(publishers, publish.NewMarkdownPublisher(cfg.Publishing.Markdown.OutputDir))
	}
	if cfg.Publishing.GitHub.Enabled {
		gh, err := publish.NewGitHubPublisher(
			cfg.Publishing.GitHub.Token, cfg.Publishing.GitHub.Repo, cfg.Publishing.GitHub.Branch)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, gh)
	}
	if cfg.Publishing.Twitter.Enabled {
		tw, err := publish.NewTwitterPublisher(cfg.Publishing.Twitter.BearerToken)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, tw)
	}
	return publish.NewRegistry(preview, publishers...), nil
}

// providerKey picks the API key matching the configured provider.
func providerKey(cfg *config.Config) string {
	switch cfg.Summarization.Provider {
	case llm.ProviderAnthropic:
		return cfg.Summarization.AnthropicKey
	default:
		return cfg.Summarization.OpenAIKey
	}
}

func printMetrics(m *pipeline.RunMetrics) {
	log.Printf("[main] run finished: scraped=%d unique=%d summarized=%d published=%d errors=%d duration=%.1fs",
		m.ArticlesScraped, m.ArticlesUnique, m.ArticlesSummarized, m.ArticlesPublished,
		len(m.Errors), m.Duration().Seconds())
}

func enabledLabel(on bool) string {
	if on {
		return "✅ enabled"
	}
	return "❌ disabled"
}
