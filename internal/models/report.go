package models

import "time"

// Series tags for output tables.
const (
	SeriesCM0  = "CM0"
	SeriesCM1  = "CM1"
	SeriesCM2  = "CM2"
	SeriesCM3  = "CM3"
	SeriesCM4  = "CM4"
	SeriesCM5  = "CM5"
	SeriesCM6  = "CM6"
	SeriesC3MP = "C3MP"
	SeriesCTWN = "CTWN"
)

// IsSensitivitySeries reports whether a series tag marks a sensitivity-analysis batch.
func IsSensitivitySeries(tag string) bool {
	return tag == SeriesC3MP || tag == SeriesCTWN
}

// FileResult is the per-file outcome of a validation run.
type FileResult struct {
	Path          string   `json:"path" yaml:"path" toml:"path" msgpack:"path"`
	Category      Category `json:"category" yaml:"category" toml:"category" msgpack:"category"`
	Series        string   `json:"series,omitempty" yaml:"series,omitempty" toml:"series,omitempty" msgpack:"series,omitempty"`
	CanonicalName string   `json:"canonicalName,omitempty" yaml:"canonical_name,omitempty" toml:"canonical_name,omitempty" msgpack:"canonicalName,omitempty"`
	Valid         bool     `json:"valid" yaml:"valid" toml:"valid" msgpack:"valid"`
	LinkageValid  *bool    `json:"linkageValid,omitempty" yaml:"linkage_valid,omitempty" toml:"linkage_valid,omitempty" msgpack:"linkageValid,omitempty"`
	Errors        []string `json:"errors,omitempty" yaml:"errors,omitempty" toml:"errors,omitempty" msgpack:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Collision lists source files that resolve to the same name.
type Collision struct {
	Name    string   `json:"name" yaml:"name" toml:"name" msgpack:"name"`
	Sources []string `json:"sources" yaml:"sources" toml:"sources" msgpack:"sources"`
}

// Verdicts holds the dataset-level checks that make up the overall result.
type Verdicts struct {
	Archives         bool `json:"archives" yaml:"archives" toml:"archives" msgpack:"archives"`
	RuleArchiveNames bool `json:"ruleArchiveNames" yaml:"rule_archive_names" toml:"rule_archive_names" msgpack:"ruleArchiveNames"`
	OutputTables     bool `json:"outputTables" yaml:"output_tables" toml:"output_tables" msgpack:"outputTables"`
	OutputTableNames bool `json:"outputTableNames" yaml:"output_table_names" toml:"output_table_names" msgpack:"outputTableNames"`
	Linkage          bool `json:"linkage" yaml:"linkage" toml:"linkage" msgpack:"linkage"`
}

// All reports whether every verdict holds.
func (v Verdicts) All() bool {
	return v.Archives && v.RuleArchiveNames && v.OutputTables && v.OutputTableNames && v.Linkage
}

// DatasetReport is the full result of a validation run.
type DatasetReport struct {
	RunID             string           `json:"runId" yaml:"run_id" toml:"run_id" msgpack:"runId"`
	Root              string           `json:"root,omitempty" yaml:"root,omitempty" toml:"root,omitempty" msgpack:"root,omitempty"`
	StartedAt         time.Time        `json:"startedAt" yaml:"started_at" toml:"started_at" msgpack:"startedAt"`
	FinishedAt        time.Time        `json:"finishedAt" yaml:"finished_at" toml:"finished_at" msgpack:"finishedAt"`
	NothingToValidate bool             `json:"nothingToValidate,omitempty" yaml:"nothing_to_validate,omitempty" toml:"nothing_to_validate,omitempty" msgpack:"nothingToValidate,omitempty"`
	Counts            map[Category]int `json:"counts" yaml:"counts" toml:"counts" msgpack:"counts"`
	Registry          RegistryCounts   `json:"registry" yaml:"registry" toml:"registry" msgpack:"registry"`
	RuleArchiveIDs    int              `json:"ruleArchiveIds" yaml:"rule_archive_ids" toml:"rule_archive_ids" msgpack:"ruleArchiveIds"`
	RuleArchiveNames  int              `json:"ruleArchiveNames" yaml:"rule_archive_names" toml:"rule_archive_names" msgpack:"ruleArchiveNames"`
	Files             []FileResult     `json:"files" yaml:"files" toml:"files" msgpack:"files"`
	NameCollisions    []Collision      `json:"nameCollisions,omitempty" yaml:"name_collisions,omitempty" toml:"name_collisions,omitempty" msgpack:"nameCollisions,omitempty"`
	RuleCollisions    []Collision      `json:"ruleCollisions,omitempty" yaml:"rule_collisions,omitempty" toml:"rule_collisions,omitempty" msgpack:"ruleCollisions,omitempty"`
	Verdicts          Verdicts         `json:"verdicts" yaml:"verdicts" toml:"verdicts" msgpack:"verdicts"`
	Valid             bool             `json:"valid" yaml:"valid" toml:"valid" msgpack:"valid"`
}

// File returns the result for a path, or nil.
func (r *DatasetReport) File(path string) *FileResult {
	for i := range r.Files {
		if r.Files[i].Path == path {
			return &r.Files[i]
		}
	}
	return nil
}

// MergeResult describes an archive produced by merging several sources.
type MergeResult struct {
	Path  string `json:"path" yaml:"path" toml:"path" msgpack:"path"`
	Count int    `json:"count" yaml:"count" toml:"count" msgpack:"count"`
}
