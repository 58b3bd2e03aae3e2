package classify

import (
	"context"
	"log/slog"

	"thirdwatch.dev/watch/internal/model"
)

// Input is everything a classifier tier may inspect for one change.
// Changelog is the release title and body joined; APIDiff is only present
// when a structured surface comparison exists for an api-kind dependency.
type Input struct {
	DependencyKey   string
	Identifier      string
	PreviousVersion string
	NewVersion      string
	Changelog       string
	APIDiff         *APIDiff
}

// ModelClassifier is the pluggable model tier. Implementations bound their
// own latency; an error degrades the pipeline to the deterministic tiers.
type ModelClassifier interface {
	Classify(ctx context.Context, in Input) (*model.ClassificationResult, error)
}

// Pipeline runs the fixed tier set over a change and reduces the verdicts
// to the single most severe one.
type Pipeline struct {
	modelTier ModelClassifier
	triggers  map[model.ChangeCategory]struct{}
}

// NewPipeline builds the pipeline. modelTier may be nil to disable the model
// tier. An empty trigger list means the model tier runs for every tier-one
// category; otherwise it runs only when tier one lands in the set.
func NewPipeline(modelTier ModelClassifier, triggers []model.ChangeCategory) *Pipeline {
	var set map[model.ChangeCategory]struct{}
	if len(triggers) > 0 {
		set = make(map[model.ChangeCategory]struct{}, len(triggers))
		for _, t := range triggers {
			set[t] = struct{}{}
		}
	}
	return &Pipeline{modelTier: modelTier, triggers: set}
}

// Classify runs every applicable tier. The semver tier always runs; the
// keyword tier needs changelog text; the schema tier needs a structured
// diff; the model tier needs to be configured and triggered. A model tier
// failure is logged and dropped, never propagated.
func (p *Pipeline) Classify(ctx context.Context, in Input) model.ClassificationResult {
	results := []model.ClassificationResult{classifyDelta(in)}

	if in.Changelog != "" {
		results = append(results, classifyKeywords(in.Changelog))
	}
	if in.APIDiff != nil {
		results = append(results, classifySchemaDiff(*in.APIDiff))
	}

	if p.modelTier != nil && p.triggered(results[0].Category) {
		res, err := p.modelTier.Classify(ctx, in)
		switch {
		case err != nil:
			cerr := &ClassificationError{Classifier: model.ClassifierModel, Err: err}
			slog.WarnContext(ctx, "classifier tier degraded",
				"dependency_key", in.DependencyKey,
				"error", cerr)
		case res != nil:
			results = append(results, *res)
		}
	}

	return SelectMostSevere(results)
}

func (p *Pipeline) triggered(tierOne model.ChangeCategory) bool {
	if p.triggers == nil {
		return true
	}
	_, ok := p.triggers[tierOne]
	return ok
}

// SelectMostSevere reduces tier results to one: a maximum over severity
// rank, confidence breaking ties, earlier result winning otherwise. When
// several results were in play the winner's ClassifierUsed becomes
// combined; a lone result passes through unchanged.
func SelectMostSevere(results []model.ClassificationResult) model.ClassificationResult {
	if len(results) == 0 {
		return model.ClassificationResult{
			Category:       model.CategoryInformational,
			Confidence:     model.ConfidenceLow,
			Reasoning:      "no classifier produced a result",
			ClassifierUsed: model.ClassifierCombined,
		}
	}

	winner := results[0]
	for _, r := range results[1:] {
		if r.Category.MoreSevereThan(winner.Category) ||
			(r.Category == winner.Category && r.Confidence.Rank() > winner.Confidence.Rank()) {
			winner = r
		}
	}
	if len(results) > 1 {
		winner.ClassifierUsed = model.ClassifierCombined
	}
	return winner
}
