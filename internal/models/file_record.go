// Package models contains domain types for crop-model dataset validation.
package models

// Category tags a dataset file with the role it plays in a submission.
type Category string

const (
	CategoryExperimentArchive Category = "experiment_archive"
	CategoryRuleArchive       Category = "rule_archive"
	CategoryOutputTable       Category = "output_table"
	CategoryLinkageTable      Category = "linkage_table"
	CategoryModelSpecific     Category = "model_specific"
	CategorySupplemental      Category = "supplemental"
)

// Categories lists every category in reporting order.
var Categories = []Category{
	CategoryExperimentArchive,
	CategoryRuleArchive,
	CategoryOutputTable,
	CategoryLinkageTable,
	CategoryModelSpecific,
	CategorySupplemental,
}

// Label returns the short name used in human-facing output.
func (c Category) Label() string {
	switch c {
	case CategoryExperimentArchive:
		return "ACEB"
	case CategoryRuleArchive:
		return "DOME"
	case CategoryOutputTable:
		return "ACMO"
	case CategoryLinkageTable:
		return "Linkage"
	case CategoryModelSpecific:
		return "Model specific"
	case CategorySupplemental:
		return "Supplemental"
	default:
		return string(c)
	}
}

// FileRecord is a classified dataset file.
type FileRecord struct {
	Path     string   `json:"path" yaml:"path" toml:"path" msgpack:"path"`
	Category Category `json:"category" yaml:"category" toml:"category" msgpack:"category"`
}

// Promote turns a supplemental record into a model-specific one.
// It reports whether the category changed.
func (r *FileRecord) Promote() bool {
	if r.Category != CategorySupplemental {
		return false
	}
	r.Category = CategoryModelSpecific
	return true
}
