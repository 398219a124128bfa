package ace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropmodel/dataset/internal/models"
)

// writeGzipJSON writes a gzip-compressed JSON document to dir/name.
func writeGzipJSON(t *testing.T, dir, name, doc string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

const sampleArchive = `{
	"experiments": {
		"e1": {"exname": "SITE_1__1", "soil_id": "S1", "wst_id": "W1", "plta": 7.5},
		"e2": {"exname": "SITE_2", "events": [{"event": "planting", "date": "20210301"}]}
	},
	"soils": {"s1": {"soil_id": "S1"}},
	"weathers": {"w1": {"wst_id": "W1", "clim_id": "0XXX"}, "w2": {"wst_id": "", "clim_id": "0XXX"}},
	"extra": [1, 2, 3]
}`

func TestReadFile(t *testing.T) {
	path := writeGzipJSON(t, t.TempDir(), "a.aceb", sampleArchive)

	ds, err := ReadFile(path)
	require.NoError(t, err)

	require.Len(t, ds.Experiments, 2)
	assert.Equal(t, "e1", ds.Experiments[0].ID)
	assert.Equal(t, "e2", ds.Experiments[1].ID)
	assert.Equal(t, "SITE_1__1", ds.Experiments[0].Component.String("exname"))
	assert.Equal(t, "7.5", ds.Experiments[0].Component.String("plta"))
	assert.Equal(t, "", ds.Experiments[1].Component.String("events"))
	assert.Len(t, ds.Soils, 1)
	assert.Len(t, ds.Weathers, 2)
	assert.Equal(t, 5, ds.Len())
}

func TestReadFile_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("not gzip", func(t *testing.T) {
		path := filepath.Join(dir, "plain.aceb")
		require.NoError(t, os.WriteFile(path, []byte(`{"experiments":{}}`), 0644))
		_, err := ReadFile(path)
		assert.True(t, errors.Is(err, ErrNotArchive))
	})

	t.Run("top level array", func(t *testing.T) {
		path := writeGzipJSON(t, dir, "array.aceb", `[1,2]`)
		_, err := ReadFile(path)
		assert.True(t, errors.Is(err, ErrNotArchive))
	})

	t.Run("section not an object", func(t *testing.T) {
		path := writeGzipJSON(t, dir, "section.aceb", `{"experiments":[1]}`)
		_, err := ReadFile(path)
		assert.True(t, errors.Is(err, ErrNotArchive))
	})

	t.Run("truncated", func(t *testing.T) {
		path := writeGzipJSON(t, dir, "trunc.aceb", `{"experiments":{"e1":{"exname":`)
		_, err := ReadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "absent.aceb"))
		assert.Error(t, err)
	})
}

// shortWriter accepts limit bytes and then fails every write.
type shortWriter struct {
	limit int
}

var errShortWrite = errors.New("disk full")

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		n := w.limit
		w.limit = 0
		return n, errShortWrite
	}
	w.limit -= len(p)
	return len(p), nil
}

func TestEncode_WriteErrors(t *testing.T) {
	ds := NewDataset()
	ds.Add(SectionExperiments, "e1", Component{"exname": "SITE_1"})
	ds.Add(SectionExperiments, "e2", Component{"exname": "SITE_2"})
	ds.Add(SectionSoils, "s1", Component{"soil_id": "S1"})

	var full bytes.Buffer
	require.NoError(t, ds.encode(&full))

	for limit := 0; limit < full.Len(); limit++ {
		err := ds.encode(&shortWriter{limit: limit})
		assert.ErrorIs(t, err, errShortWrite, "limit %d", limit)
	}
}

func TestHarvest(t *testing.T) {
	path := writeGzipJSON(t, t.TempDir(), "a.aceb", sampleArchive)
	ds, err := ReadFile(path)
	require.NoError(t, err)

	b := models.NewRegistryBuilder()
	Harvest(b, ds)
	reg := b.Build()

	assert.True(t, reg.HasExperimentID("e1"))
	assert.True(t, reg.HasExperimentName("SITE_1"), "seasonal suffix is stripped")
	assert.True(t, reg.HasExperimentName("SITE_2"))
	assert.True(t, reg.HasSoilID("s1"))
	assert.True(t, reg.HasSoilName("S1"))
	assert.True(t, reg.HasWeatherID("w2"))
	assert.True(t, reg.HasWeatherClimate(models.WeatherClimateKey("W1", "0XXX")))
	assert.Equal(t, models.RegistryCounts{
		ExperimentIDs:   2,
		SoilIDs:         1,
		WeatherIDs:      2,
		ExperimentNames: 2,
		SoilNames:       1,
		WeatherClimates: 1,
	}, reg.Counts())
}

func TestComponentClone(t *testing.T) {
	orig := Component{
		"exname": "X",
		"events": []any{map[string]any{"date": "1"}},
	}
	cp := orig.Clone()
	cp["events"].([]any)[0].(map[string]any)["date"] = "2"
	cp["exname"] = "Y"

	assert.Equal(t, "1", orig["events"].([]any)[0].(map[string]any)["date"])
	assert.Equal(t, "X", orig["exname"])
}
