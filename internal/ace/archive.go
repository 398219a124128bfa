// Package ace reads and merges experiment archives: gzip-compressed JSON
// documents holding experiment, soil and weather components keyed by id.
package ace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// ErrNotArchive is returned when a document is not shaped like an experiment archive.
var ErrNotArchive = errors.New("not an experiment archive")

// Section names inside an archive.
const (
	SectionExperiments = "experiments"
	SectionSoils       = "soils"
	SectionWeathers    = "weathers"
)

// Component is a single experiment, soil or weather record.
type Component map[string]any

// String returns the field as text. Numbers are formatted without exponent
// and missing or structured values yield "".
func (c Component) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Clone returns a deep copy sharing no maps or slices with c.
func (c Component) Clone() Component {
	if c == nil {
		return nil
	}
	return cloneValue(map[string]any(c)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Component:
		return Component(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Entry is a component with its archive id.
type Entry struct {
	ID        string
	Component Component
}

// Dataset is an in-memory archive. Entries keep their document order.
type Dataset struct {
	Experiments []Entry
	Soils       []Entry
	Weathers    []Entry

	seen map[string]map[string]struct{}
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{seen: map[string]map[string]struct{}{
		SectionExperiments: {},
		SectionSoils:       {},
		SectionWeathers:    {},
	}}
}

// Len returns the total number of components.
func (d *Dataset) Len() int {
	return len(d.Experiments) + len(d.Soils) + len(d.Weathers)
}

// Add appends a component to a section. An id already present in the
// section is skipped and Add reports false.
func (d *Dataset) Add(section, id string, c Component) bool {
	ids, ok := d.seen[section]
	if !ok {
		return false
	}
	if _, dup := ids[id]; dup {
		return false
	}
	ids[id] = struct{}{}

	entry := Entry{ID: id, Component: c}
	switch section {
	case SectionExperiments:
		d.Experiments = append(d.Experiments, entry)
	case SectionSoils:
		d.Soils = append(d.Soils, entry)
	case SectionWeathers:
		d.Weathers = append(d.Weathers, entry)
	}
	return true
}

// ReadFile decodes the archive at path.
func ReadFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}

// Read decodes a gzip-compressed archive from r.
func Read(r io.Reader) (*Dataset, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	ds := NewDataset()
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if _, known := ds.seen[key]; !known {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		if err := readSection(dec, ds, key); err != nil {
			return nil, fmt.Errorf("section %s: %w", key, err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return ds, nil
}

func readSection(dec *json.Decoder, ds *Dataset, section string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrNotArchive, tok)
	}
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return err
		}
		var c Component
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("component %s: %w", id, err)
		}
		ds.Add(section, id, c)
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrNotArchive, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected key, got %v", ErrNotArchive, tok)
	}
	return key, nil
}

// Write encodes the dataset as a gzip-compressed archive.
func (d *Dataset) Write(w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := d.encode(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func (d *Dataset) encode(w io.Writer) error {
	sections := []struct {
		name    string
		entries []Entry
	}{
		{SectionExperiments, d.Experiments},
		{SectionSoils, d.Soils},
		{SectionWeathers, d.Weathers},
	}

	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, s := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeKey(w, s.name); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "{"); err != nil {
			return err
		}
		for j, e := range s.entries {
			if j > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if err := writeKey(w, e.ID); err != nil {
				return err
			}
			body, err := json.Marshal(e.Component)
			if err != nil {
				return fmt.Errorf("encoding %s %s: %w", s.name, e.ID, err)
			}
			if _, err := w.Write(body); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "}"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeKey(w io.Writer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = io.WriteString(w, ":")
	return err
}
