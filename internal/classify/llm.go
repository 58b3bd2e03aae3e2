package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"thirdwatch.dev/watch/common/llm"
	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/model"
)

type modelVerdict struct {
	Category   string `json:"category" jsonschema:"required,enum=breaking,enum=security,enum=deprecation,enum=major-update,enum=minor-update,enum=patch,enum=informational" jsonschema_description:"Severity category for the change"`
	Confidence string `json:"confidence" jsonschema:"required,enum=low,enum=medium,enum=high" jsonschema_description:"How certain the classification is"`
	Reasoning  string `json:"reasoning" jsonschema:"required" jsonschema_description:"One or two sentences explaining the category"`
}

var verdictSchema = llm.GenerateSchema[modelVerdict]()

// LLMClassifier is the model tier. Every call carries its own timeout so a
// slow provider can never hold up the deterministic tiers.
type LLMClassifier struct {
	llm       llm.Client
	timeout   time.Duration
	maxTokens int
}

func NewLLMClassifier(client llm.Client, timeout time.Duration, maxTokens int) *LLMClassifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMClassifier{llm: client, timeout: timeout, maxTokens: maxTokens}
}

const classifierSystemPrompt = `You grade dependency release changes for a change-watch pipeline.

Pick exactly one category:

- breaking: removed or incompatible APIs, changes that need consumer migration
- security: fixes or disclosures of vulnerabilities
- deprecation: features marked for future removal
- major-update: major version bump without explicit breakage notes
- minor-update: backwards-compatible feature additions
- patch: bug fixes only
- informational: none of the above applies

Judge only from the supplied versions and release notes. When the notes are
ambiguous, prefer the less severe category and lower your confidence.`

func (c *LLMClassifier) Classify(ctx context.Context, in Input) (*model.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := c.buildPrompt(in)
	start := time.Now()

	// Retry with exponential backoff (1s, 2s) to ride out transient rate
	// limits; the per-call timeout still bounds the whole attempt series.
	var verdict modelVerdict
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = c.llm.Chat(ctx, llm.Request{
			SystemPrompt: classifierSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "change_verdict",
			Schema:       verdictSchema,
			MaxTokens:    c.maxTokens,
			Temperature:  llm.Temp(0.1),
		}, &verdict)
		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("model classification: %w", err)
		}
		slog.WarnContext(ctx, "model classification retry",
			"dependency_key", in.DependencyKey,
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("model classification after 3 attempts: %w", err)
	}

	category := model.ChangeCategory(verdict.Category)
	if !category.Valid() {
		return nil, fmt.Errorf("model returned unknown category %q", verdict.Category)
	}
	confidence := model.Confidence(verdict.Confidence)
	switch confidence {
	case model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh:
	default:
		confidence = model.ConfidenceMedium
	}

	slog.DebugContext(ctx, "model classification",
		"dependency_key", in.DependencyKey,
		"category", category,
		"latency_ms", time.Since(start).Milliseconds())

	return &model.ClassificationResult{
		Category:       category,
		Confidence:     confidence,
		Reasoning:      verdict.Reasoning,
		ClassifierUsed: model.ClassifierModel,
	}, nil
}

func (c *LLMClassifier) buildPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString("## Dependency\n")
	sb.WriteString(in.Identifier)
	sb.WriteString("\n\n## Versions\n")
	fmt.Fprintf(&sb, "previous: %s\nnew: %s\n", in.PreviousVersion, in.NewVersion)

	if in.Changelog != "" {
		sb.WriteString("\n## Release notes\n")
		sb.WriteString(logger.Truncate(in.Changelog, 4000))
		sb.WriteString("\n")
	}

	return sb.String()
}
