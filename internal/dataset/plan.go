package dataset

import (
	"github.com/cropmodel/dataset/internal/models"
	"github.com/cropmodel/dataset/internal/packager"
)

// Plan lists what a package built from rep would contain: readable archives,
// valid output tables under their canonical names, model-specific files and
// any additional files supplied by the caller.
func (d *Dataset) Plan(rep *models.DatasetReport, additional ...string) packager.Plan {
	plan := packager.Plan{RunID: rep.RunID, Additional: additional}
	for _, f := range rep.Files {
		switch f.Category {
		case models.CategoryExperimentArchive:
			if f.Valid {
				plan.ExperimentArchives = append(plan.ExperimentArchives, f.Path)
			}
		case models.CategoryRuleArchive:
			if f.Valid {
				plan.RuleArchives = append(plan.RuleArchives, f.Path)
			}
		case models.CategoryOutputTable:
			if f.Valid {
				plan.Tables = append(plan.Tables, packager.Table{Source: f.Path, Series: f.Series, Name: f.CanonicalName})
			}
		}
	}
	plan.ModelSpecific = d.Files(models.CategoryModelSpecific)
	return plan
}
