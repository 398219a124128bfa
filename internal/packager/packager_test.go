package packager

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cropmodel/dataset/internal/models"
)

func writeFile(t *testing.T, dir, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func gzipJSON(t *testing.T, doc string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// readZip returns the name -> content of every entry.
func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = data
	}
	return out
}

func names(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestBuild(t *testing.T) {
	src := t.TempDir()
	aceA := writeFile(t, src, "a.aceb", gzipJSON(t, `{"experiments":{"e1":{"exname":"A_1"}}}`))
	aceB := writeFile(t, src, "b.aceb", gzipJSON(t, `{"experiments":{"e2":{"exname":"B_1"}}}`))
	domeA := writeFile(t, src, "a.dome", gzipJSON(t, `{"R1":{"rules":[]}}`))
	cm1 := writeFile(t, src, "t1.csv", []byte("#,SUITE_ID\n"))
	c3mp := writeFile(t, src, "t2.csv", []byte("#,SUITE_ID,C3MP\n"))
	ctwn := writeFile(t, src, "t3.csv", []byte("#,SUITE_ID,CTWN\n"))
	none := writeFile(t, src, "t4.csv", []byte("#,SUITE_ID,NONE\n"))
	cul1 := writeFile(t, src, "m1/cultivar.tar.gz", []byte("one"))
	cul2 := writeFile(t, src, "m2/cultivar.tar.gz", []byte("two"))
	extra := writeFile(t, src, "README", []byte("readme"))

	plan := Plan{
		RunID:              "run-1",
		ExperimentArchives: []string{aceA, aceB},
		RuleArchives:       []string{domeA},
		Tables: []Table{
			{Source: cm1, Series: models.SeriesCM1, Name: "ACMO-US-MAIZE-0XXX-DSSAT.csv"},
			{Source: c3mp, Series: models.SeriesC3MP, Name: "ACMO-US-MAIZE-C3MP-DSSAT.csv"},
			{Source: ctwn, Series: models.SeriesCTWN, Name: "ACMO-US-MAIZE-CTWN-DSSAT.csv"},
			{Source: none, Series: "", Name: "ACMO-REGION-CROP-CLIMATE-MODEL.csv"},
		},
		ModelSpecific: []string{cul1, cul2},
		Additional:    []string{extra},
	}

	zipPath := filepath.Join(t.TempDir(), "package.zip")
	manifest, err := New().Build(zipPath, plan)
	require.NoError(t, err)

	entries := readZip(t, zipPath)
	assert.Equal(t, []string{
		"ACMOS/CM1/ACMO-US-MAIZE-0XXX-DSSAT.csv",
		"ACMOS/sensitivity/ACMO-US-MAIZE-C3MP-DSSAT.csv",
		"ACMOS/sensitivity/ACMO-US-MAIZE-CTWN-DSSAT.csv",
		"ACMOS/unknown/ACMO-REGION-CROP-CLIMATE-MODEL.csv",
		"README",
		"alldomes.dome",
		"cultivar.tar.gz",
		"cultivar_1.tar.gz",
		"dataset.aceb",
		"manifest.yaml",
	}, names(entries))
	assert.Equal(t, "one", string(entries["cultivar.tar.gz"]))
	assert.Equal(t, "two", string(entries["cultivar_1.tar.gz"]))
	assert.Equal(t, "#,SUITE_ID,C3MP\n", string(entries["ACMOS/sensitivity/ACMO-US-MAIZE-C3MP-DSSAT.csv"]))

	var decoded Manifest
	require.NoError(t, yaml.Unmarshal(entries["manifest.yaml"], &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Entries, len(manifest.Entries))
	assert.Equal(t, KindExperimentArchive, decoded.Entries[0].Kind)
	assert.Equal(t, 2, decoded.Entries[0].Count)
	assert.Equal(t, KindRuleArchive, decoded.Entries[1].Kind)
	assert.Equal(t, 1, decoded.Entries[1].Count)
}

func TestBuild_RootAndAcmoDir(t *testing.T) {
	src := t.TempDir()
	tbl := writeFile(t, src, "t.csv", []byte("x"))

	zipPath := filepath.Join(t.TempDir(), "package.zip")
	_, err := New(WithRootDir("submission/"), WithAcmoDir("outputs")).Build(zipPath, Plan{
		Tables: []Table{{Source: tbl, Series: models.SeriesCM0, Name: "ACMO-A.csv"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"submission/manifest.yaml",
		"submission/outputs/CM0/ACMO-A.csv",
	}, names(readZip(t, zipPath)))
}

func TestBuild_FailedMergeKeepsExistingZip(t *testing.T) {
	src := t.TempDir()
	bad := writeFile(t, src, "bad.aceb", []byte("not gzip"))
	zipPath := writeFile(t, t.TempDir(), "package.zip", []byte("old"))

	_, err := New().Build(zipPath, Plan{ExperimentArchives: []string{bad}})
	require.Error(t, err)

	data, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestUniqueName(t *testing.T) {
	used := map[string]struct{}{}
	take := func(dir, name string) string {
		n := uniqueName(used, dir, name)
		used[n] = struct{}{}
		return n
	}

	assert.Equal(t, "a.tar.gz", take("", "a.tar.gz"))
	assert.Equal(t, "a_1.tar.gz", take("", "a.tar.gz"))
	assert.Equal(t, "a_2.tar.gz", take("", "a.tar.gz"))
	assert.Equal(t, "x/README", take("x", "README"))
	assert.Equal(t, "x/README_1", take("x", "README"))
}

func TestTableFolder(t *testing.T) {
	assert.Equal(t, "sensitivity", TableFolder(models.SeriesC3MP))
	assert.Equal(t, "sensitivity", TableFolder(models.SeriesCTWN))
	assert.Equal(t, "unknown", TableFolder(""))
	assert.Equal(t, "CM4", TableFolder(models.SeriesCM4))
}
