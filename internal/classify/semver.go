package classify

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"thirdwatch.dev/watch/internal/model"
)

// Delta computes the advisory semantic-version delta between two versions.
// Nil when either side is not valid semver or the new version is not ahead.
func Delta(previous, next string) *model.SemverDelta {
	pv, perr := parseSemver(previous)
	nv, nerr := parseSemver(next)
	if perr != nil || nerr != nil || !nv.GreaterThan(pv) {
		return nil
	}

	delta := model.DeltaPatch
	switch {
	case nv.Major() > pv.Major():
		delta = model.DeltaMajor
	case nv.Minor() > pv.Minor():
		delta = model.DeltaMinor
	}
	return &delta
}

func parseSemver(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(s), "v"))
}

// classifyDelta is tier one. It always produces a result: a clean delta maps
// to the update categories with high confidence, anything else is a
// low-confidence informational.
func classifyDelta(in Input) model.ClassificationResult {
	delta := Delta(in.PreviousVersion, in.NewVersion)
	if delta == nil {
		return model.ClassificationResult{
			Category:       model.CategoryInformational,
			Confidence:     model.ConfidenceLow,
			Reasoning:      fmt.Sprintf("no semantic version delta between %q and %q", in.PreviousVersion, in.NewVersion),
			ClassifierUsed: model.ClassifierSemver,
		}
	}

	category := model.CategoryPatch
	switch *delta {
	case model.DeltaMajor:
		category = model.CategoryMajorUpdate
	case model.DeltaMinor:
		category = model.CategoryMinorUpdate
	}

	return model.ClassificationResult{
		Category:       category,
		Confidence:     model.ConfidenceHigh,
		Reasoning:      fmt.Sprintf("%s to %s is a %s version bump", in.PreviousVersion, in.NewVersion, *delta),
		ClassifierUsed: model.ClassifierSemver,
	}
}
