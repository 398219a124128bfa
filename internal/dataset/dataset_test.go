package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropmodel/dataset/internal/filetype"
	"github.com/cropmodel/dataset/internal/models"
)

// recordingDetector notes the order of Detect calls and how many overlap.
type recordingDetector struct {
	mu       sync.Mutex
	order    []string
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (r *recordingDetector) Name() string             { return "recording" }
func (r *recordingDetector) Accepts(head []byte) bool { return true }

func (r *recordingDetector) Detect(filePath string) (models.Category, error) {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)
	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.order = append(r.order, filePath)
	r.mu.Unlock()
	return models.CategorySupplemental, nil
}

func TestScan(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, ".hidden.csv", table(tableRow("e1", "SITE_1", "0XXX", "", "", "")))
	writeFile(t, dir, ".git/config.csv", table(tableRow("e1", "SITE_1", "0XXX", "", "", "")))

	d := New()
	require.NoError(t, d.Scan(dir))

	assert.Equal(t, filepath.Clean(dir), d.Root())
	assert.Len(t, d.Records(), 4)
	assert.Equal(t, map[models.Category]int{
		models.CategoryExperimentArchive: 1,
		models.CategoryRuleArchive:       1,
		models.CategoryOutputTable:       1,
		models.CategoryLinkageTable:      0,
		models.CategoryModelSpecific:     0,
		models.CategorySupplemental:      1,
	}, d.Statistics())

	cat, ok := d.Lookup(filepath.Join(dir, "acmo", "cm1.csv"))
	require.True(t, ok)
	assert.Equal(t, models.CategoryOutputTable, cat)

	_, ok = d.Lookup(filepath.Join(dir, ".hidden.csv"))
	assert.False(t, ok)
}

func TestScan_ClassifiesSequentiallyInWalkOrder(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for i := 0; i < 8; i++ {
		want = append(want, writeFile(t, dir, fmt.Sprintf("f%d.csv", i), "x"))
	}
	rec := &recordingDetector{}
	reg := &filetype.Registry{}
	reg.Register(rec)

	d := New(WithClassifier(filetype.New(filetype.WithRegistry(reg), filetype.WithCacheSize(0))))
	require.NoError(t, d.Scan(dir))

	assert.Equal(t, want, rec.order)
	assert.False(t, rec.overlap.Load(), "files were classified concurrently")
	var got []string
	for _, r := range d.Records() {
		got = append(got, r.Path)
	}
	assert.Equal(t, want, got)
}

func TestScan_IncludeDotFiles(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, dir, ".hidden/extra.txt", "plain")

	d := New(WithSkipDotFiles(false))
	require.NoError(t, d.Scan(dir))

	_, ok := d.Lookup(filepath.Join(dir, ".hidden", "extra.txt"))
	assert.True(t, ok)
}

func TestScan_MissingRoot(t *testing.T) {
	d := New()
	err := d.Scan(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	d := New()
	assert.True(t, errors.Is(d.Refresh(), ErrNoRoot))

	dir := fixtureDir(t)
	require.NoError(t, d.Scan(dir))
	d.Add(filepath.Join(t.TempDir(), "outside.txt"))
	require.Len(t, d.Records(), 5)

	writeFile(t, dir, "acmo/second.csv", table(tableRow("e1", "SITE_1__1", "0XXX", "R1", "", "")))
	require.NoError(t, d.Refresh())

	assert.Len(t, d.Records(), 5, "records are rebuilt from the directory only")
	assert.Len(t, d.Files(models.CategoryOutputTable), 2)
}

func TestAdd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.csv", table(tableRow("e1", "SITE_1", "0XXX", "", "", "")))

	d := New()
	assert.Equal(t, models.CategoryOutputTable, d.Add(path))
	assert.Equal(t, models.CategoryOutputTable, d.Add(path))
	assert.Len(t, d.Records(), 1)
}

func TestPromote(t *testing.T) {
	dir := fixtureDir(t)
	d := New()
	require.NoError(t, d.Scan(dir))

	pdf := filepath.Join(dir, "notes.pdf")
	assert.Equal(t, "notes.pdf has been marked as a cultivar file.", d.Promote(pdf))
	assert.Equal(t, "notes.pdf has already been marked as a cultivar file.", d.Promote(pdf))

	cat, _ := d.Lookup(pdf)
	assert.Equal(t, models.CategoryModelSpecific, cat)

	assert.Equal(t, "Cannot mark a non-supplemental file as cultivar", d.Promote(filepath.Join(dir, "acmo", "cm1.csv")))
	assert.Equal(t, "Cannot mark a non-supplemental file as cultivar", d.Promote(filepath.Join(dir, "unknown.txt")))
	assert.Equal(t, []string{pdf}, d.Files(models.CategoryModelSpecific))
}
