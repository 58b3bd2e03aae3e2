package classify

import (
	"fmt"
	"regexp"

	"thirdwatch.dev/watch/internal/model"
)

// keywordFamilies are checked in priority order; the first family with a
// matching pattern decides the category. Within a family pattern order only
// affects which match is quoted in the reasoning.
var keywordFamilies = []struct {
	category model.ChangeCategory
	patterns []*regexp.Regexp
}{
	{
		category: model.CategoryBreaking,
		patterns: compilePatterns(
			`breaking[ -]changes?`,
			`\bbreaking\b`,
			`\bincompatible\b`,
			`migration (is )?required`,
			`\bremoved?\b`,
			`\brenamed?\b`,
			`no longer (supports?|accepts?)`,
		),
	},
	{
		category: model.CategorySecurity,
		patterns: compilePatterns(
			`\bsecurity\b`,
			`\bvulnerabilit(y|ies)\b`,
			`\bcve-\d{4}-\d+`,
			`\bexploit\b`,
			`\badvisor(y|ies)\b`,
			`\bxss\b`,
			`\brce\b`,
			`\bcsrf\b`,
		),
	},
	{
		category: model.CategoryDeprecation,
		patterns: compilePatterns(
			`\bdeprecat(e|es|ed|ion|ing)\b`,
			`\bsunset\b`,
			`end[ -]of[ -]life`,
			`\beol\b`,
		),
	},
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// classifyKeywords is tier two, run only when changelog text exists. Text
// with no family hit is informational with high confidence.
func classifyKeywords(changelog string) model.ClassificationResult {
	for _, family := range keywordFamilies {
		for _, pattern := range family.patterns {
			if m := pattern.FindString(changelog); m != "" {
				return model.ClassificationResult{
					Category:       family.category,
					Confidence:     model.ConfidenceHigh,
					Reasoning:      fmt.Sprintf("changelog contains %s phrasing: %q", family.category, m),
					ClassifierUsed: model.ClassifierKeyword,
				}
			}
		}
	}

	return model.ClassificationResult{
		Category:       model.CategoryInformational,
		Confidence:     model.ConfidenceHigh,
		Reasoning:      "changelog contains no breaking, security or deprecation phrasing",
		ClassifierUsed: model.ClassifierKeyword,
	}
}
