package checker

import (
	"fmt"

	"thirdwatch.dev/watch/common/llm"
	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/internal/classify"
	"thirdwatch.dev/watch/internal/impact"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/notify"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
	"thirdwatch.dev/watch/internal/suppress"
)

// BuildRunner assembles the full check pipeline from configuration: registry
// adapters over the given validator cache, the tiered classifier, the impact
// scorer, suppression rules and the notification router. Optional pieces stay
// nil when unconfigured and the runner degrades per stage: no rules means
// nothing suppresses, no channels means detection-only runs.
func BuildRunner(cfg config.Config, stores store.Stores, cache registry.ValidatorCache, channels []model.ChannelConfig, m *metrics.Metrics) (*Runner, error) {
	httpOpts := registry.HTTPOptions{
		Timeout:           cfg.Registry.HTTPTimeout,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
		Metrics:           m,
	}
	adapters := AdapterSet{
		NPM:    registry.NewNPMAdapter(cfg.Registry.NPMBaseURL, cache, httpOpts),
		PyPI:   registry.NewPyPIAdapter(cfg.Registry.PyPIBaseURL, cache, httpOpts),
		GitHub: registry.NewGitHubAdapter(cfg.Registry.GitHubBaseURL, cfg.Registry.GitHubToken, cache, httpOpts),
	}
	if cfg.Registry.GitLabBaseURL != "" {
		gitlab, err := registry.NewGitLabAdapter(cfg.Registry.GitLabBaseURL, cfg.Registry.GitLabToken, cache, m)
		if err != nil {
			return nil, fmt.Errorf("gitlab adapter: %w", err)
		}
		adapters.GitLab = gitlab
	}

	var modelTier classify.ModelClassifier
	if cfg.ClassifierLLM.Enabled() {
		client, err := llm.New(llmConfig(cfg.ClassifierLLM))
		if err != nil {
			return nil, fmt.Errorf("classifier model client: %w", err)
		}
		modelTier = classify.NewLLMClassifier(client, cfg.ClassifierLLM.Timeout, cfg.ClassifierLLM.MaxTokens)
	}
	triggers, err := classifierTriggers(cfg.ClassifierLLM.Triggers)
	if err != nil {
		return nil, err
	}
	pipeline := classify.NewPipeline(modelTier, triggers)

	var remedies *impact.RemedyRegistry
	if cfg.Rules.RemediationsPath != "" {
		remedies, err = impact.LoadRemedies(cfg.Rules.RemediationsPath)
		if err != nil {
			return nil, err
		}
	}
	var suggester impact.Suggester
	if cfg.RemediationLLM.GenerateEnabled && cfg.RemediationLLM.Enabled() {
		client, err := llm.New(llmConfig(cfg.RemediationLLM))
		if err != nil {
			return nil, fmt.Errorf("remediation model client: %w", err)
		}
		suggester = impact.NewLLMSuggester(client, cfg.RemediationLLM.Timeout, cfg.RemediationLLM.MaxTokens)
	}
	scorer := impact.NewScorer(cfg.Impact, remedies, suggester)

	var rules *suppress.Engine
	if cfg.Rules.SuppressionsPath != "" {
		rules, err = suppress.Load(cfg.Rules.SuppressionsPath)
		if err != nil {
			return nil, err
		}
	}

	var router *notify.Router
	if len(channels) > 0 {
		bound, err := notify.Bind(channels)
		if err != nil {
			return nil, err
		}
		router = notify.NewRouter(bound, stores.Deliveries(), m)
	}

	c := NewChecker(adapters, pipeline, stores, m)
	return NewRunner(c, scorer, rules, router, stores, m, cfg.Watch.Repository), nil
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:        c.Provider,
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		ReasoningEffort: llm.ReasoningEffort(c.ReasoningEffort),
	}
}

func classifierTriggers(names []string) ([]model.ChangeCategory, error) {
	out := make([]model.ChangeCategory, 0, len(names))
	for _, name := range names {
		cat := model.ChangeCategory(name)
		if !cat.Valid() {
			return nil, fmt.Errorf("unknown classifier trigger category %q", name)
		}
		out = append(out, cat)
	}
	return out, nil
}
