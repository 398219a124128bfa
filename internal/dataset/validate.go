package dataset

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/ace"
	"github.com/cropmodel/dataset/internal/acmo"
	"github.com/cropmodel/dataset/internal/dome"
	"github.com/cropmodel/dataset/internal/linkage"
	"github.com/cropmodel/dataset/internal/models"
	"github.com/cropmodel/dataset/internal/report"
)

const corruptArchive = "This file is either corrupted or has an invalid structure."

// validation carries the state of one pass. Registries and name trackers
// are built by one phase and handed to the next.
type validation struct {
	logger *zap.Logger
	out    io.Writer
	errw   io.Writer
	rep    *models.DatasetReport
	files  map[string]*models.FileResult
}

// Validate runs the full pipeline over the current records: registry
// harvest, rule-archive naming, output-table checks, canonical-name
// collisions and linkage. Progress goes to out, failures to errw, and the
// returned report carries the same findings.
func (d *Dataset) Validate(out, errw io.Writer) *models.DatasetReport {
	if out == nil {
		out = io.Discard
	}
	if errw == nil {
		errw = io.Discard
	}

	d.mu.RLock()
	root := d.root
	records := make([]models.FileRecord, len(d.records))
	copy(records, d.records)
	d.mu.RUnlock()

	rep := &models.DatasetReport{
		RunID:     uuid.NewString(),
		Root:      root,
		StartedAt: time.Now().UTC(),
		Counts:    countRecords(records),
		Files:     make([]models.FileResult, len(records)),
		Verdicts: models.Verdicts{
			Archives:         true,
			RuleArchiveNames: true,
			OutputTables:     true,
			OutputTableNames: true,
			Linkage:          true,
		},
	}
	v := &validation{
		logger: d.logger,
		out:    out,
		errw:   errw,
		rep:    rep,
		files:  make(map[string]*models.FileResult, len(records)),
	}

	byCategory := make(map[models.Category][]string)
	for i, r := range records {
		rep.Files[i] = models.FileResult{Path: r.Path, Category: r.Category, Valid: true}
		v.files[r.Path] = &rep.Files[i]
		byCategory[r.Category] = append(byCategory[r.Category], r.Path)
	}

	archives := byCategory[models.CategoryExperimentArchive]
	rules := byCategory[models.CategoryRuleArchive]
	tables := byCategory[models.CategoryOutputTable]
	links := byCategory[models.CategoryLinkageTable]

	if len(archives)+len(rules)+len(tables)+len(links) == 0 {
		rep.NothingToValidate = true
		rep.Verdicts = models.Verdicts{}
		report.WriteSummary(errw, rep)
		rep.FinishedAt = time.Now().UTC()
		d.logger.Info("nothing to validate", zap.String("root", root))
		return rep
	}

	registry := v.harvestArchives(archives)
	v.checkRuleArchives(rules)
	opened := v.checkOutputTables(tables)
	if len(tables) > 0 && len(archives) > 0 {
		v.checkLinkage(opened, registry)
	}

	rep.Valid = rep.Verdicts.All()
	rep.FinishedAt = time.Now().UTC()
	report.WriteSummary(out, rep)

	d.logger.Info("validation finished",
		zap.String("run", rep.RunID),
		zap.Bool("valid", rep.Valid),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep
}

func (v *validation) fail(path string, msgs ...string) {
	f := v.files[path]
	f.Valid = false
	f.Errors = append(f.Errors, msgs...)
	fmt.Fprintf(v.errw, "[FAILED] %s\n", path)
	for _, m := range msgs {
		fmt.Fprintf(v.errw, "         %s\n", m)
	}
}

// harvestArchives builds the identifier registry from every experiment archive.
func (v *validation) harvestArchives(paths []string) *models.IDRegistry {
	builder := models.NewRegistryBuilder()
	if len(paths) == 0 {
		return builder.Build()
	}

	report.Section(v.out, "Validating ACEB files")
	fmt.Fprintf(v.out, "Checking %d ACEB files...\n\n", len(paths))
	for _, p := range paths {
		ds, err := ace.ReadFile(p)
		if err != nil {
			v.logger.Warn("unreadable experiment archive", zap.String("path", p), zap.Error(err))
			v.rep.Verdicts.Archives = false
			v.fail(p, corruptArchive)
			continue
		}
		ace.Harvest(builder, ds)
	}

	registry := builder.Build()
	c := registry.Counts()
	v.rep.Registry = c
	fmt.Fprintf(v.out, "Found %d unique experiment IDs\n", c.ExperimentIDs)
	fmt.Fprintf(v.out, "Found %d unique soil IDs\n", c.SoilIDs)
	fmt.Fprintf(v.out, "Found %d unique weather IDs\n", c.WeatherIDs)
	fmt.Fprintf(v.out, "Found %d unique EXNAMEs\n", c.ExperimentNames)
	fmt.Fprintf(v.out, "Found %d unique SOIL_IDs\n", c.SoilNames)
	fmt.Fprintf(v.out, "Found %d unique WST_ID and CLIM_ID combinations\n", c.WeatherClimates)
	return registry
}

// checkRuleArchives fails the naming verdict when two rule-set ids share a
// display name across all rule archives.
func (v *validation) checkRuleArchives(paths []string) {
	if len(paths) == 0 {
		return
	}

	report.Section(v.out, "Validating DOME files")
	fmt.Fprintf(v.out, "Checking %d DOME files...\n\n", len(paths))

	var all []dome.Summary
	for _, p := range paths {
		summaries, err := dome.Describe(p)
		if err != nil {
			v.logger.Warn("unreadable rule archive", zap.String("path", p), zap.Error(err))
			v.rep.Verdicts.Archives = false
			v.fail(p, corruptArchive)
		}
		all = append(all, summaries...)
	}

	ids := make(map[string]struct{}, len(all))
	names := make(map[string]struct{}, len(all))
	for _, s := range all {
		ids[s.ID] = struct{}{}
		names[s.Name] = struct{}{}
	}
	v.rep.RuleArchiveIDs = len(ids)
	v.rep.RuleArchiveNames = len(names)
	fmt.Fprintf(v.out, "Found %d unique DOME IDs\n", len(ids))
	fmt.Fprintf(v.out, "Found %d unique DOME Names\n", len(names))

	collisions := dome.Collisions(all)
	if len(collisions) == 0 {
		return
	}
	v.rep.RuleCollisions = collisions
	v.rep.Verdicts.RuleArchiveNames = false
	fmt.Fprintln(v.errw, "[FAILED] More than one DOME share the same name with different values.")
	fmt.Fprintln(v.errw, "         Please check the DOME metadata. Make each unique by using the DESCRIPTION field.")
	for _, c := range collisions {
		fmt.Fprintf(v.errw, "             %s is used by %v\n", c.Name, c.Sources)
	}
}

// checkOutputTables validates every table and detects canonical-name
// collisions between distinct source files.
func (v *validation) checkOutputTables(paths []string) []*acmo.Table {
	if len(paths) == 0 {
		return nil
	}

	report.Section(v.out, "Verifying ACMO files")
	fmt.Fprintf(v.out, "Checking %d ACMO files...\n", len(paths))

	tables := make([]*acmo.Table, 0, len(paths))
	var order []string
	sources := make(map[string][]string)
	for _, p := range paths {
		t := acmo.Open(p, acmo.WithLogger(v.logger))
		tables = append(tables, t)

		name := t.CanonicalName(false)
		if _, seen := sources[name]; !seen {
			order = append(order, name)
		}
		sources[name] = append(sources[name], p)

		f := v.files[p]
		f.Series, _ = t.Series()
		f.CanonicalName = name
		f.Warnings = t.Warnings()
		if !t.Valid() {
			v.rep.Verdicts.OutputTables = false
			v.fail(p, t.Errors()...)
		}
		if len(f.Warnings) > 0 {
			fmt.Fprintf(v.out, "[WARNING] %s\n", p)
			fmt.Fprintln(v.out, "          Suspected multiple crop failures because of blank output lines in ACMO.")
			fmt.Fprintln(v.out)
		}
	}

	report.Section(v.out, "Checking ACMO renaming conflict")
	fmt.Fprintln(v.out, "NOTE: This product renames ACMO files to match the AgMIP protocols.")
	for _, name := range order {
		if len(sources[name]) > 1 {
			v.rep.NameCollisions = append(v.rep.NameCollisions, models.Collision{Name: name, Sources: sources[name]})
		}
	}
	if len(v.rep.NameCollisions) > 0 {
		v.rep.Verdicts.OutputTableNames = false
		fmt.Fprintln(v.errw, "[FAILED] More than one ACMO file will share the same name.")
		fmt.Fprintln(v.errw, "         Please check the MAN_ID and RAP_ID columns in the ACMO files.")
		fmt.Fprintln(v.errw, "         MAN_ID should be blank unless using an adaptation.")
		fmt.Fprintln(v.errw, "         RAP_ID should be blank unless working with RAPs.")
		for _, c := range v.rep.NameCollisions {
			fmt.Fprintf(v.errw, "             The following files will be written as %s\n", c.Name)
			for _, s := range c.Sources {
				fmt.Fprintf(v.errw, "               %s\n", s)
			}
		}
	}
	return tables
}

// checkLinkage runs the linkage checker on valid, non-sensitivity tables. A
// table that fails linkage is invalid and is left out of packages.
func (v *validation) checkLinkage(tables []*acmo.Table, registry *models.IDRegistry) {
	report.Section(v.out, "Verifying linkages between ACEB, DOME and ACMO files")
	fmt.Fprintf(v.out, "Checking linkages in %d ACMO files...\n\n", len(tables))

	checker := linkage.NewChecker(registry, v.logger)
	for _, t := range tables {
		series, _ := t.Series()
		switch {
		case models.IsSensitivitySeries(series):
			fmt.Fprintf(v.out, "- Skipping sensitivity analysis linkage checking on %s\n\n", t.Path())
		case !t.Valid():
			fmt.Fprintf(v.errw, "- Skipping invalid ACMO file %s\n\n", t.Path())
		default:
			res := checker.Check(t.Path(), v.errw)
			passed := res.Passed
			f := v.files[t.Path()]
			f.LinkageValid = &passed
			f.Errors = append(f.Errors, res.Errors...)
			if !passed {
				// The checker already reported to errw.
				f.Valid = false
				v.rep.Verdicts.Linkage = false
			}
		}
	}
}

// ErrDatasetInvalid is returned by Verdict when at least one check failed.
var ErrDatasetInvalid = errors.New("dataset failed validation")

// Verdict converts a report into an error: ErrNothingToValidate for an empty
// dataset, ErrDatasetInvalid for a failed run and nil for a pass.
func Verdict(rep *models.DatasetReport) error {
	switch {
	case rep.NothingToValidate:
		return ErrNothingToValidate
	case !rep.Valid:
		return ErrDatasetInvalid
	default:
		return nil
	}
}
