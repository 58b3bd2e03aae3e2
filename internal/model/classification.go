package model

// Confidence expresses how certain a classifier is about its result.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidences for tie-breaking: higher is more confident.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Classifier names the tier that produced a ClassificationResult.
type Classifier string

const (
	ClassifierSemver     Classifier = "semver"
	ClassifierKeyword    Classifier = "keyword"
	ClassifierSchemaDiff Classifier = "schema-diff"
	ClassifierModel      Classifier = "model"

	// ClassifierCombined marks a result chosen among several tiers during
	// severity resolution.
	ClassifierCombined Classifier = "combined"
)

// ClassificationResult is one tier's verdict on a change. Transient: produced
// per tier, reduced to a single result before the event is built.
type ClassificationResult struct {
	Category       ChangeCategory `json:"category"`
	Confidence     Confidence     `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	ClassifierUsed Classifier     `json:"classifier_used"`
}
