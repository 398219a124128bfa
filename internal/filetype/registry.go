package filetype

import (
	"bytes"
	"fmt"

	"github.com/cropmodel/dataset/internal/models"
)

// Detector inspects file content and decides a category.
type Detector interface {
	// Name returns the unique name of the detector.
	Name() string
	// Accepts reports whether the detector handles content starting with head.
	Accepts(head []byte) bool
	// Detect reads the file and returns its category.
	Detect(filePath string) (models.Category, error)
}

// Registry holds the content detectors in priority order.
type Registry struct {
	detectors []Detector
}

// NewRegistry returns a registry with the compressed-archive and delimited-text detectors.
func NewRegistry() *Registry {
	return &Registry{
		detectors: []Detector{
			NewArchiveDetector(),
			NewTextDetector(),
		},
	}
}

// Register adds a detector after the built-in ones.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// FindDetector returns the first detector that accepts head.
func (r *Registry) FindDetector(head []byte) (Detector, error) {
	for _, d := range r.detectors {
		if d.Accepts(head) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no detector accepts content starting with %q", head)
}

var gzipMagic = []byte{0x1f, 0x8b}

func isGzip(head []byte) bool {
	return bytes.HasPrefix(head, gzipMagic)
}
