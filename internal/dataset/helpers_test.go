package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const tableHeader = "#,SUITE_ID,EID,EXNAME,SOIL_ID,WST_ID,CLIM_ID,RAP_ID,MAN_ID,REG_ID,CRID_TEXT,CROP_MODEL,FEN_TOT,PDAT"

// writeFile creates dir/rel with content, making parent directories.
func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeGzipJSON writes a gzip-compressed JSON document to dir/rel.
func writeGzipJSON(t *testing.T, dir, rel, doc string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return writeFile(t, dir, rel, buf.String())
}

// tableRow builds a data row for tableHeader.
func tableRow(eid, exname, clim, rap, man, pdat string) string {
	return strings.Join([]string{"*", "S", eid, exname, "S1", "W1", clim, rap, man, "US", "maize", "DSSAT", "120", pdat}, ",")
}

func table(rows ...string) string {
	return tableHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

const experimentArchive = `{
	"experiments": {"e1": {"exname": "SITE_1"}},
	"soils": {"s1": {"soil_id": "S1"}},
	"weathers": {"w1": {"wst_id": "W1", "clim_id": "0XXX"}}
}`

// fixtureDir lays out a small dataset that passes every check.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeGzipJSON(t, dir, "ace/data.aceb", experimentArchive)
	writeGzipJSON(t, dir, "dome/field.dome", `{"D1":{"info":{"reg_id":"us","description":"base"},"rules":[]}}`)
	writeFile(t, dir, "acmo/cm1.csv", table(tableRow("e1", "SITE_1__1", "0XXX", "", "", "2021-03-01")))
	writeFile(t, dir, "notes.pdf", "%PDF-1.4")
	return dir
}
