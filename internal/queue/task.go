package queue

type TaskType string

const (
	// TaskTypeDependencyCheck runs one detection cycle for a single watched
	// dependency, identified by its canonical key.
	TaskTypeDependencyCheck TaskType = "dependency_check"
)
