package differ

// ChangeDetector decides whether a candidate configuration differs from the
// last persisted one. A nil baseline means no prior artifact exists.
type ChangeDetector interface {
	HasChanged(candidate string, baseline *string) bool
}

// ChangeSummary provides counts of changed lines
type ChangeSummary struct {
	Added   int `json:"added" yaml:"added"`
	Removed int `json:"removed" yaml:"removed"`
	Total   int `json:"total" yaml:"total"`
}

// ChangeReport is the outcome of comparing two text artifacts.
type ChangeReport struct {
	FromName string
	ToName   string
	Unified  string
	Summary  ChangeSummary
}

// Changed reports whether the unified diff is non-empty.
func (r *ChangeReport) Changed() bool {
	return r.Unified != ""
}
