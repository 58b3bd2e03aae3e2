package model

// SuppressionRule filters impact assessments before notification. Absent
// fields are wildcards; every present field must match for the rule to
// suppress (AND across fields).
type SuppressionRule struct {
	Dependency     string         `json:"dependency,omitempty" yaml:"dependency,omitempty"`           // glob against the identifier
	ChangeCategory ChangeCategory `json:"change_category,omitempty" yaml:"change_category,omitempty"` // exact match
	MinPriority    Priority       `json:"min_priority,omitempty" yaml:"min_priority,omitempty"`       // suppress strictly less urgent
	FilePath       string         `json:"file_path,omitempty" yaml:"file_path,omitempty"`             // glob, must match every location
	Reason         string         `json:"reason,omitempty" yaml:"reason,omitempty"`
}
