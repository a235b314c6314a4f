package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/repolore/repolore/internal/llm"
)

var (
	validOwner    = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,37}[a-zA-Z0-9])?$`)
	validRepoName = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// Config holds all runtime configuration for repolore.
type Config struct {
	RepoArg        string
	Org            string
	GitHubToken    string
	Provider       llm.ProviderName
	Model          string
	OllamaHost     string
	APIKey         string
	OutputDir      string
	CachePath      string
	CacheTTL       time.Duration
	NoExtract      bool
	NoDiscussions  bool
	ExtractWorkers int
	Verbose        bool
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.RepoArg == "" && c.Org == "" {
		return fmt.Errorf("a repository (owner/name) or --org is required")
	}
	if c.RepoArg != "" && c.Org != "" {
		return fmt.Errorf("the repository argument and --org are mutually exclusive")
	}
	if c.RepoArg != "" {
		owner, name, ok := strings.Cut(c.RepoArg, "/")
		if !ok || !validOwner.MatchString(owner) || !validRepoName.MatchString(name) {
			return fmt.Errorf("invalid repository %q: want owner/name", c.RepoArg)
		}
	}
	if c.Org != "" && !validOwner.MatchString(c.Org) {
		return fmt.Errorf("invalid organization %q", c.Org)
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN environment variable is required")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("--cache-ttl must not be negative")
	}
	if c.NoExtract {
		return nil
	}
	switch c.Provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider %q: must be openai, anthropic, or ollama", c.Provider)
	}
	if c.APIKey == "" && c.Provider != llm.ProviderOllama {
		return fmt.Errorf("%s requires an API key (set %s)", c.Provider, envKeyForProvider(c.Provider))
	}
	if c.ExtractWorkers < 1 {
		return fmt.Errorf("--extract-workers must be at least 1")
	}
	return nil
}

// LoadFromEnv populates environment-dependent fields (tokens, keys, hosts).
func (c *Config) LoadFromEnv() {
	c.GitHubToken = os.Getenv("GITHUB_TOKEN")
	c.OllamaHost = os.Getenv("OLLAMA_HOST")
	if c.OllamaHost == "" {
		c.OllamaHost = "http://localhost:11434"
	}
	switch c.Provider {
	case llm.ProviderOpenAI:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// DefaultModel returns the default model name for the given provider.
func DefaultModel(provider llm.ProviderName) string {
	switch provider {
	case llm.ProviderOpenAI:
		return "gpt-4o"
	case llm.ProviderAnthropic:
		return "claude-sonnet-4-5"
	case llm.ProviderOllama:
		return "llama3"
	default:
		return ""
	}
}

func envKeyForProvider(provider llm.ProviderName) string {
	switch provider {
	case llm.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
