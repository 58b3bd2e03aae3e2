package classify

import (
	"fmt"

	"thirdwatch.dev/watch/internal/model"
)

// APIDiff is a structured comparison of an API surface between two versions.
// Producing one is the scanner's concern; the classifier only grades it.
type APIDiff struct {
	RemovedEndpoints []string `json:"removed_endpoints,omitempty"`
	RemovedFields    []string `json:"removed_fields,omitempty"`
	ChangedTypes     []string `json:"changed_types,omitempty"`
	AddedEndpoints   []string `json:"added_endpoints,omitempty"`
	AddedFields      []string `json:"added_fields,omitempty"`
}

func (d APIDiff) removals() int {
	return len(d.RemovedEndpoints) + len(d.RemovedFields) + len(d.ChangedTypes)
}

func (d APIDiff) additions() int {
	return len(d.AddedEndpoints) + len(d.AddedFields)
}

func (d APIDiff) firstRemoval() string {
	if len(d.RemovedEndpoints) > 0 {
		return d.RemovedEndpoints[0]
	}
	if len(d.RemovedFields) > 0 {
		return d.RemovedFields[0]
	}
	return d.ChangedTypes[0]
}

// classifySchemaDiff is tier three, run only when a structured diff exists.
// Removed members and incompatible type changes are breaking; anything else
// the diff can show is compatible, so it grades informational.
func classifySchemaDiff(diff APIDiff) model.ClassificationResult {
	if n := diff.removals(); n > 0 {
		return model.ClassificationResult{
			Category:       model.CategoryBreaking,
			Confidence:     model.ConfidenceHigh,
			Reasoning:      fmt.Sprintf("API diff shows %d removed or incompatible members (first: %s)", n, diff.firstRemoval()),
			ClassifierUsed: model.ClassifierSchemaDiff,
		}
	}

	reasoning := "API diff shows no surface changes"
	if n := diff.additions(); n > 0 {
		reasoning = fmt.Sprintf("API diff shows %d added members and no removals", n)
	}
	return model.ClassificationResult{
		Category:       model.CategoryInformational,
		Confidence:     model.ConfidenceMedium,
		Reasoning:      reasoning,
		ClassifierUsed: model.ClassifierSchemaDiff,
	}
}
