package impact

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

type modelRemedy struct {
	Suggestion string `json:"suggestion" jsonschema:"required" jsonschema_description:"One actionable migration step for the consuming team, at most three sentences"`
}

var remedySchema = llm.GenerateSchema[modelRemedy]()

// LLMSuggester generates remediation advice for breaking changes. Opt-in:
// the scorer only consults it when remediation generation is enabled, and
// its output is always labelled model-sourced.
type LLMSuggester struct {
	llm       llm.Client
	timeout   time.Duration
	maxTokens int
}

func NewLLMSuggester(client llm.Client, timeout time.Duration, maxTokens int) *LLMSuggester {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMSuggester{llm: client, timeout: timeout, maxTokens: maxTokens}
}

const suggesterSystemPrompt = `You write remediation advice for breaking dependency changes.

Given a dependency, its version movement, the release notes and the places
the consuming codebase touches it, produce one short actionable suggestion:
the concrete migration step, the replacement API, or the safest version pin.
At most three sentences. If the notes do not name a replacement for removed
behavior, say what the team should check instead of guessing.`

func (s *LLMSuggester) Suggest(ctx context.Context, event model.ChangeEvent, dep model.WatchedDependency) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildRemedyPrompt(event, dep)
	start := time.Now()

	var remedy modelRemedy
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.llm.Chat(ctx, llm.Request{
			SystemPrompt: suggesterSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "remediation",
			Schema:       remedySchema,
			MaxTokens:    s.maxTokens,
			Temperature:  llm.Temp(0.2),
		}, &remedy)
		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return "", fmt.Errorf("remediation generation: %w", err)
		}
		slog.WarnContext(ctx, "remediation generation retry",
			"dependency_key", event.DependencyKey,
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return "", fmt.Errorf("remediation generation after 3 attempts: %w", err)
	}

	slog.DebugContext(ctx, "remediation generated",
		"dependency_key", event.DependencyKey,
		"latency_ms", time.Since(start).Milliseconds())

	return strings.TrimSpace(remedy.Suggestion), nil
}

func buildRemedyPrompt(event model.ChangeEvent, dep model.WatchedDependency) string {
	var sb strings.Builder

	sb.WriteString("## Dependency\n")
	sb.WriteString(event.Identifier)
	if dep.Ecosystem != "" {
		fmt.Fprintf(&sb, " (%s)", dep.Ecosystem)
	}
	sb.WriteString("\n\n## Versions\n")
	fmt.Fprintf(&sb, "previous: %s\nnew: %s\n", event.PreviousVersion, event.NewVersion)

	if event.Body != nil && *event.Body != "" {
		sb.WriteString("\n## Release notes\n")
		sb.WriteString(logger.Truncate(*event.Body, 4000))
		sb.WriteString("\n")
	}

	if len(dep.Locations) > 0 {
		sb.WriteString("\n## Usage in the codebase\n")
		for i, loc := range dep.Locations {
			if i == 10 {
				fmt.Fprintf(&sb, "... and %d more locations\n", len(dep.Locations)-i)
				break
			}
			fmt.Fprintf(&sb, "%s:%d %s\n", loc.File, loc.Line, loc.Context)
		}
	}

	return sb.String()
}
