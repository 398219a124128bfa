package filetype

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/cropmodel/dataset/internal/models"
)

var (
	experimentKeys = map[string]struct{}{"experiments": {}, "weathers": {}, "soils": {}}
	ruleKeys       = map[string]struct{}{"generators": {}, "rules": {}, "info": {}}
)

// ArchiveDetector classifies gzip-compressed JSON documents by their leading keys.
type ArchiveDetector struct{}

func NewArchiveDetector() *ArchiveDetector {
	return &ArchiveDetector{}
}

func (d *ArchiveDetector) Name() string {
	return "compressed_archive"
}

func (d *ArchiveDetector) Accepts(head []byte) bool {
	return isGzip(head)
}

// Detect walks the first tokens of the document. A top-level key naming a
// component collection marks an experiment archive; otherwise the first key
// one level deeper is checked for rule-archive markers.
func (d *ArchiveDetector) Detect(filePath string) (models.Category, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return models.CategorySupplemental, err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return models.CategorySupplemental, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	if ok, err := expectDelim(dec, '{'); !ok || err != nil {
		return models.CategorySupplemental, err
	}

	key, err := nextKey(dec)
	if err != nil || key == "" {
		return models.CategorySupplemental, err
	}
	if _, ok := experimentKeys[key]; ok {
		return models.CategoryExperimentArchive, nil
	}

	if ok, err := expectDelim(dec, '{'); !ok || err != nil {
		return models.CategorySupplemental, err
	}
	inner, err := nextKey(dec)
	if err != nil {
		return models.CategorySupplemental, err
	}
	if _, ok := ruleKeys[inner]; ok {
		return models.CategoryRuleArchive, nil
	}
	return models.CategorySupplemental, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	delim, ok := tok.(json.Delim)
	return ok && delim == want, nil
}

// nextKey returns the next object key, or "" when the object ends.
func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, _ := tok.(string)
	return key, nil
}
