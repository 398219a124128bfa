// Package dome streams rule archives: gzip-compressed JSON objects whose
// top-level entries are named rule sets with an "info" block.
package dome

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrNotRuleArchive is returned when a document is not a JSON object of rule sets.
var ErrNotRuleArchive = errors.New("not a rule archive")

// EntryFunc receives each top-level entry with its undecoded body.
type EntryFunc func(id string, body json.RawMessage) error

// EachEntry streams the top-level entries of the rule archive at path.
// Entries are delivered in document order; an error from fn stops the walk
// and is returned.
func EachEntry(path string, fn EntryFunc) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := Walk(file, fn); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// Walk streams the entries of a gzip-compressed rule archive read from r.
func Walk(r io.Reader, fn EntryFunc) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRuleArchive, err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrNotRuleArchive, tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected entry name, got %v", ErrNotRuleArchive, tok)
		}
		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Summary identifies one rule set.
type Summary struct {
	ID   string
	Name string
}

// nameFields are the info keys joined into a rule set's display name.
var nameFields = []string{"reg_id", "stratum", "rap_id", "man_id", "rap_ver", "clim_id", "description"}

// Describe lists the id and display name of every rule set in the archive.
func Describe(path string) ([]Summary, error) {
	var out []Summary
	err := EachEntry(path, func(id string, body json.RawMessage) error {
		out = append(out, Summary{ID: id, Name: DisplayName(body)})
		return nil
	})
	return out, err
}

// DisplayName builds REG_ID-STRATUM-RAP_ID-MAN_ID-RAP_VER-CLIM_ID-DESCRIPTION
// from an entry's info block, upper-cased. Keys match without regard to case
// and non-string values count as empty. An entry that is not an object, or
// whose info is not an object, names as all-empty fields.
func DisplayName(body json.RawMessage) string {
	var entry struct {
		Info map[string]json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(body, &entry); err != nil {
		entry.Info = nil
	}

	values := make(map[string]string, len(nameFields))
	for key, raw := range entry.Info {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			values[strings.ToLower(key)] = strings.ToUpper(s)
		}
	}

	parts := make([]string, len(nameFields))
	for i, f := range nameFields {
		parts[i] = values[f]
	}
	return strings.Join(parts, "-")
}
