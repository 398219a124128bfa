package dataset

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropmodel/dataset/internal/models"
)

func validate(t *testing.T, dir string) (*models.DatasetReport, string, string) {
	t.Helper()
	d := New()
	require.NoError(t, d.Scan(dir))
	var out, errw bytes.Buffer
	rep := d.Validate(&out, &errw)
	return rep, out.String(), errw.String()
}

func TestValidate_Pass(t *testing.T) {
	rep, out, errOut := validate(t, fixtureDir(t))

	assert.True(t, rep.Valid, errOut)
	assert.NoError(t, Verdict(rep))
	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
	assert.Equal(t, 1, rep.Registry.ExperimentIDs)
	assert.Equal(t, 1, rep.RuleArchiveIDs)
	assert.Empty(t, errOut)

	f := rep.File(filepath.Join(rep.Root, "acmo", "cm1.csv"))
	require.NotNil(t, f)
	assert.Equal(t, models.SeriesCM1, f.Series)
	assert.Equal(t, "ACMO-US-MAIZE-0XXX-DSSAT.csv", f.CanonicalName)
	require.NotNil(t, f.LinkageValid)
	assert.True(t, *f.LinkageValid)

	assert.Contains(t, out, "Found 1 unique EXNAMEs")
	assert.Contains(t, out, "Linkage Validation...................... SUCCESS")
}

func TestValidate_NothingToValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "hello")

	rep, out, errOut := validate(t, dir)

	assert.True(t, rep.NothingToValidate)
	assert.False(t, rep.Valid)
	assert.True(t, errors.Is(Verdict(rep), ErrNothingToValidate))
	assert.Equal(t, "Nothing to verify\n", errOut)
	assert.Empty(t, out)
}

func TestValidate_CanonicalNameCollision(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, "acmo/copy.csv", table(tableRow("e1", "SITE_1__2", "0XXX", "", "", "2021-03-02")))

	rep, _, errOut := validate(t, dir)

	assert.False(t, rep.Valid)
	assert.True(t, errors.Is(Verdict(rep), ErrDatasetInvalid))
	assert.False(t, rep.Verdicts.OutputTableNames)
	assert.True(t, rep.Verdicts.OutputTables, "files are individually valid")
	require.Len(t, rep.NameCollisions, 1)
	assert.Equal(t, "ACMO-US-MAIZE-0XXX-DSSAT.csv", rep.NameCollisions[0].Name)
	assert.ElementsMatch(t, []string{
		filepath.Join(rep.Root, "acmo", "cm1.csv"),
		filepath.Join(rep.Root, "acmo", "copy.csv"),
	}, rep.NameCollisions[0].Sources)
	assert.Contains(t, errOut, "More than one ACMO file will share the same name.")
}

func TestValidate_InvalidTableSkipsLinkage(t *testing.T) {
	dir := fixtureDir(t)
	bad := writeFile(t, dir, "acmo/bad.csv", table(
		tableRow("e9", "GONE_1__1", "ABC", "", "", "2021-02-30"),
		tableRow("e9", "GONE_1__1", "ABC", "", "", "2021-03-01"),
	))

	rep, _, errOut := validate(t, dir)

	assert.False(t, rep.Valid)
	assert.False(t, rep.Verdicts.OutputTables)
	assert.True(t, rep.Verdicts.Linkage)

	f := rep.File(bad)
	require.NotNil(t, f)
	assert.False(t, f.Valid)
	assert.Nil(t, f.LinkageValid)
	assert.Equal(t, []string{"Invalid date for PDAT (2021-02-30) on line 2"}, f.Errors)
	assert.Contains(t, errOut, "- Skipping invalid ACMO file "+bad)
}

func TestValidate_LinkageFailure(t *testing.T) {
	dir := fixtureDir(t)
	var rows []string
	for i := 1; i <= 50; i++ {
		rows = append(rows, tableRow("e1", "GONE_1__1", "ABC", "", "", ""))
	}
	orphan := writeFile(t, dir, "acmo/orphan.csv", table(rows...))

	rep, _, errOut := validate(t, dir)

	assert.False(t, rep.Valid)
	assert.False(t, rep.Verdicts.Linkage)

	f := rep.File(orphan)
	require.NotNil(t, f)
	assert.False(t, f.Valid)
	require.NotNil(t, f.LinkageValid)
	assert.False(t, *f.LinkageValid)
	assert.Equal(t, []string{"EXNAME not found: GONE_1", "WST_ID W1 not found with CLIM_ID: ABC"}, f.Errors)
	assert.Equal(t, 1, strings.Count(errOut, "EXNAME not found: GONE_1"))
}

func TestValidate_SensitivityTablesSkipLinkage(t *testing.T) {
	dir := fixtureDir(t)
	path := writeFile(t, dir, "acmo/c3mp.csv", table(
		tableRow("e9", "GONE_1_b1__1", "ABC", "", "", ""),
		tableRow("e9", "GONE_1_b1__2", "ABC", "", "", ""),
	))

	rep, out, _ := validate(t, dir)

	assert.True(t, rep.Valid)
	f := rep.File(path)
	require.NotNil(t, f)
	assert.Equal(t, models.SeriesC3MP, f.Series)
	assert.Nil(t, f.LinkageValid)
	assert.Contains(t, out, "- Skipping sensitivity analysis linkage checking on "+path)
}

func TestValidate_CorruptArchive(t *testing.T) {
	dir := fixtureDir(t)
	broken := writeGzipJSON(t, dir, "ace/broken.aceb", `{"experiments":{"e2":`)

	rep, _, errOut := validate(t, dir)

	assert.False(t, rep.Valid)
	assert.False(t, rep.Verdicts.Archives)
	f := rep.File(broken)
	require.NotNil(t, f)
	assert.False(t, f.Valid)
	assert.Contains(t, errOut, "[FAILED] "+broken)
	assert.True(t, rep.Verdicts.Linkage, "registry still holds the readable archive")
}

func TestValidate_RuleArchiveNameCollision(t *testing.T) {
	dir := fixtureDir(t)
	writeGzipJSON(t, dir, "dome/other.dome", `{"D2":{"info":{"reg_id":"US","description":"BASE"}}}`)

	rep, _, errOut := validate(t, dir)

	assert.False(t, rep.Valid)
	assert.False(t, rep.Verdicts.RuleArchiveNames)
	require.Len(t, rep.RuleCollisions, 1)
	assert.Equal(t, []string{"D1", "D2"}, rep.RuleCollisions[0].Sources)
	assert.Equal(t, 2, rep.RuleArchiveIDs)
	assert.Equal(t, 1, rep.RuleArchiveNames)
	assert.Contains(t, errOut, "More than one DOME share the same name")
}

func TestValidate_Idempotent(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, "acmo/bad.csv", table(
		tableRow("e1", "SITE_1__1", "0XXX", "R1", "", "2021-02-30"),
		tableRow("e1", "SITE_1__1", "0XXX", "R1", "", "2021-03-01"),
	))

	d := New()
	require.NoError(t, d.Scan(dir))
	a := d.Validate(nil, nil)
	b := d.Validate(nil, nil)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Files, b.Files)
	assert.Equal(t, a.Verdicts, b.Verdicts)
}

func TestPlan(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, "acmo/bad.csv", table(
		tableRow("e1", "SITE_1__1", "0XXX", "R1", "", "2021-02-30"),
		tableRow("e1", "SITE_1__1", "0XXX", "R1", "", "2021-03-01"),
	))
	d := New()
	require.NoError(t, d.Scan(dir))
	d.Promote(filepath.Join(dir, "notes.pdf"))

	rep := d.Validate(nil, nil)
	plan := d.Plan(rep, "/tmp/extra.txt")

	assert.Equal(t, rep.RunID, plan.RunID)
	assert.Equal(t, []string{filepath.Join(dir, "ace", "data.aceb")}, plan.ExperimentArchives)
	assert.Equal(t, []string{filepath.Join(dir, "dome", "field.dome")}, plan.RuleArchives)
	require.Len(t, plan.Tables, 1)
	assert.Equal(t, "ACMO-US-MAIZE-0XXX-DSSAT.csv", plan.Tables[0].Name)
	assert.Equal(t, models.SeriesCM1, plan.Tables[0].Series)
	assert.Equal(t, []string{filepath.Join(dir, "notes.pdf")}, plan.ModelSpecific)
	assert.Equal(t, []string{"/tmp/extra.txt"}, plan.Additional)
}

func TestPlan_ExcludesLinkageFailures(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, "acmo/orphan.csv", table(tableRow("e1", "GONE_1__1", "ABC", "", "", "")))
	d := New()
	require.NoError(t, d.Scan(dir))

	rep := d.Validate(nil, nil)
	plan := d.Plan(rep)

	require.Len(t, plan.Tables, 1)
	assert.Equal(t, filepath.Join(dir, "acmo", "cm1.csv"), plan.Tables[0].Source)
	assert.Equal(t, "ACMO-US-MAIZE-0XXX-DSSAT.csv", plan.Tables[0].Name)
}
