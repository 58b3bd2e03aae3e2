package classify

import (
	"fmt"

	"thirdwatch.dev/watch/internal/model"
)

// ClassificationError wraps a failed classifier tier. It never aborts a
// check: the pipeline logs it and degrades to the remaining tiers.
type ClassificationError struct {
	Classifier model.Classifier
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%s classifier: %v", e.Classifier, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
