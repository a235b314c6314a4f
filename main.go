package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/repolore/repolore/internal/config"
	"github.com/repolore/repolore/internal/extract"
	"github.com/repolore/repolore/internal/ghfetch"
	"github.com/repolore/repolore/internal/httpcache"
	"github.com/repolore/repolore/internal/llm"
	"github.com/repolore/repolore/internal/ratelimit"
	"github.com/repolore/repolore/internal/report"
)

// requestsPerSecond caps live GitHub calls ahead of the reactive governor.
const requestsPerSecond = 5

func main() {
	var cfg config.Config
	var provider string
	flag.StringVar(&provider, "provider", "anthropic", "LLM provider: openai, anthropic, ollama")
	flag.StringVar(&cfg.Model, "model", "", "LLM model (default: per-provider)")
	flag.StringVar(&cfg.Org, "org", "", "Fetch every repository of this organization instead of a single repo")
	flag.StringVar(&cfg.OutputDir, "output", "./output", "Output directory for corpus and extraction files")
	flag.StringVar(&cfg.CachePath, "cache", "repolore-cache.db", "Path to the HTTP response cache (empty disables caching)")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", 0, "Freshness window for cached responses without cache headers (default 24h)")
	flag.BoolVar(&cfg.NoExtract, "no-extract", false, "Fetch and write the corpus without LLM extraction")
	flag.BoolVar(&cfg.NoDiscussions, "no-discussions", false, "Skip GitHub Discussions")
	flag.IntVar(&cfg.ExtractWorkers, "extract-workers", 4, "Concurrent LLM extraction calls")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: repolore [flags] <owner>/<repo>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.Provider = llm.ProviderName(provider)

	if flag.NArg() > 1 || (flag.NArg() == 0 && cfg.Org == "") {
		flag.Usage()
		os.Exit(1)
	}
	if flag.NArg() == 1 {
		cfg.RepoArg = flag.Arg(0)
	}

	cfg.LoadFromEnv()
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel(cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, &cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	target := cfg.RepoArg
	if target == "" {
		target = "org:" + cfg.Org
	}
	slog.Info("starting repolore", "target", target, "provider", cfg.Provider, "model", cfg.Model)

	opts := ghfetch.Options{
		Governor: ratelimit.New(ratelimit.WithThrottle(requestsPerSecond)),
		CacheTTL: cfg.CacheTTL,
	}
	if cfg.CachePath != "" {
		store, err := httpcache.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("opening response cache: %w", err)
		}
		defer store.Close()
		opts.CacheStore = store
	}

	fetcher, err := ghfetch.New(cfg.GitHubToken, opts)
	if err != nil {
		return fmt.Errorf("creating github fetcher: %w", err)
	}

	login, err := fetcher.ValidateToken(ctx)
	if err != nil {
		return fmt.Errorf("validating github token: %w", err)
	}
	slog.Info("token validated", "login", login)
	fetcher.SeedRateLimit(ctx)

	var corpora []*ghfetch.Corpus
	if cfg.Org != "" {
		corpora, err = fetcher.AssembleOrg(ctx, cfg.Org)
		if err != nil {
			return fmt.Errorf("assembling organization corpus: %w", err)
		}
	} else {
		repo, err := ghfetch.ParseRepo(cfg.RepoArg)
		if err != nil {
			return err
		}
		corpus, err := fetcher.Assemble(ctx, repo)
		if err != nil {
			return fmt.Errorf("assembling corpus: %w", err)
		}
		corpora = []*ghfetch.Corpus{corpus}
	}

	if !cfg.NoDiscussions {
		for _, corpus := range corpora {
			ds, err := fetcher.FetchDiscussions(ctx, corpus.Repo)
			if err != nil {
				slog.Warn("fetching discussions failed, continuing without them", "repo", corpus.Repo, "error", err)
				continue
			}
			corpus.SetDiscussions(ds)
		}
	}

	var dispatcher *extract.Dispatcher
	if !cfg.NoExtract {
		provider, err := llm.NewProvider(llm.ProviderConfig{
			Name:       cfg.Provider,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			OllamaHost: cfg.OllamaHost,
		})
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		dispatcher = extract.New(provider, extract.Config{Workers: cfg.ExtractWorkers})
	}

	writer := report.NewWriter(cfg.OutputDir)
	var paths []string
	for _, corpus := range corpora {
		path, err := writer.WriteCorpus(corpus)
		if err != nil {
			return fmt.Errorf("writing corpus: %w", err)
		}
		paths = append(paths, path)

		if dispatcher == nil {
			continue
		}
		slog.Info("extracting conversations", "repo", corpus.Repo, "records", corpus.Len())
		results := dispatcher.Run(ctx, corpus)
		summary := extract.Summarize(results)
		if summary.Failed > 0 {
			slog.Warn("some extractions failed", "repo", corpus.Repo, "failed", summary.Failed, "total", summary.Total)
		}

		path, err = writer.WriteExtractions(corpus.Repo, results)
		if err != nil {
			return fmt.Errorf("writing extractions: %w", err)
		}
		paths = append(paths, path)

		path, err = writer.WriteDigest(corpus, results)
		if err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		paths = append(paths, path)
	}

	for _, p := range paths {
		fmt.Println(p)
	}
	slog.Info("done",
		"repos", len(corpora),
		"files", len(paths),
		"rate_remaining", fetcher.Governor().State().Remaining,
	)
	return nil
}
