package config

import (
	"testing"

	"github.com/repolore/repolore/internal/llm"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid openai config",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 4,
			},
		},
		{
			name: "valid anthropic config",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderAnthropic,
				APIKey:         "sk-ant-fake",
				ExtractWorkers: 2,
			},
		},
		{
			name: "valid ollama config without api key",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOllama,
				ExtractWorkers: 1,
			},
		},
		{
			name: "valid org config",
			cfg: Config{
				Org:            "acme",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOllama,
				ExtractWorkers: 1,
			},
		},
		{
			name: "no extract skips provider checks",
			cfg: Config{
				RepoArg:     "acme/widgets",
				GitHubToken: "ghp_fake",
				NoExtract:   true,
			},
		},
		{
			name: "missing repository and org",
			cfg: Config{
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "repository and org together",
			cfg: Config{
				RepoArg:        "acme/widgets",
				Org:            "acme",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "malformed repository",
			cfg: Config{
				RepoArg:        "acmewidgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "invalid org name",
			cfg: Config{
				Org:            "-acme-",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOllama,
				ExtractWorkers: 1,
			},
			wantErr: true,
		},
		{
			name: "missing github token",
			cfg: Config{
				RepoArg:        "acme/widgets",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "invalid provider",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       "gemini",
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "openai missing api key",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				ExtractWorkers: 4,
			},
			wantErr: true,
		},
		{
			name: "extract workers zero",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOpenAI,
				APIKey:         "sk-fake",
				ExtractWorkers: 0,
			},
			wantErr: true,
		},
		{
			name: "negative cache ttl",
			cfg: Config{
				RepoArg:        "acme/widgets",
				GitHubToken:    "ghp_fake",
				Provider:       llm.ProviderOllama,
				ExtractWorkers: 1,
				CacheTTL:       -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		provider llm.ProviderName
		want     string
	}{
		{llm.ProviderOpenAI, "gpt-4o"},
		{llm.ProviderAnthropic, "claude-sonnet-4-5"},
		{llm.ProviderOllama, "llama3"},
		{"unknown", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			got := DefaultModel(tt.provider)
			if got != tt.want {
				t.Errorf("DefaultModel(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}
