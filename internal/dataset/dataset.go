// Package dataset tracks the files of a crop-model submission and runs the
// validation pipeline over them.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/filetype"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// ErrNothingToValidate is returned when no dataset files were recognized.
var ErrNothingToValidate = errors.New("nothing to validate")

// ErrNoRoot is returned by Refresh before any directory was scanned.
var ErrNoRoot = errors.New("no dataset directory scanned")

// Dataset owns the classified file records of one submission.
type Dataset struct {
	mu           sync.RWMutex
	classifier   *filetype.Classifier
	logger       *zap.Logger
	skipDotFiles bool

	root    string
	records []models.FileRecord
	index   map[string]int
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithClassifier sets the classifier used for new files.
func WithClassifier(c *filetype.Classifier) Option {
	return func(d *Dataset) {
		if c != nil {
			d.classifier = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dataset) {
		d.logger = logging.OrNop(l).Named("dataset")
	}
}

// WithSkipDotFiles controls whether Scan ignores dotfiles and dot-directories.
func WithSkipDotFiles(skip bool) Option {
	return func(d *Dataset) {
		d.skipDotFiles = skip
	}
}

// New creates an empty dataset.
func New(opts ...Option) *Dataset {
	d := &Dataset{
		logger:       zap.NewNop(),
		skipDotFiles: true,
		index:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.classifier == nil {
		d.classifier = filetype.New(filetype.WithLogger(d.logger))
	}
	return d
}

// Root returns the last scanned directory.
func (d *Dataset) Root() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Scan replaces every record with the classified contents of root.
func (d *Dataset) Scan(root string) error {
	root = filepath.Clean(root)
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			d.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		hidden := d.skipDotFiles && path != root && strings.HasPrefix(entry.Name(), ".")
		if entry.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !entry.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	// One file is classified to completion before the next is opened.
	records := make([]models.FileRecord, len(paths))
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		index[p] = i
		records[i] = models.FileRecord{Path: p, Category: d.classifier.Classify(p)}
	}

	d.mu.Lock()
	d.root = root
	d.records = records
	d.index = index
	d.mu.Unlock()

	d.logger.Info("dataset scanned", zap.String("root", root), zap.Int("files", len(records)))
	return nil
}

// Refresh clears every record and rescans the last directory.
func (d *Dataset) Refresh() error {
	root := d.Root()
	if root == "" {
		return ErrNoRoot
	}
	return d.Scan(root)
}

// Add classifies a single file and records it. A path already recorded keeps
// its category.
func (d *Dataset) Add(path string) models.Category {
	path = filepath.Clean(path)

	d.mu.RLock()
	if i, ok := d.index[path]; ok {
		cat := d.records[i].Category
		d.mu.RUnlock()
		return cat
	}
	d.mu.RUnlock()

	cat := d.classifier.Classify(path)

	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.index[path]; ok {
		return d.records[i].Category
	}
	d.index[path] = len(d.records)
	d.records = append(d.records, models.FileRecord{Path: path, Category: cat})
	d.logger.Info("file added", zap.String("path", path), zap.String("category", string(cat)))
	return cat
}

// Lookup returns the recorded category of path.
func (d *Dataset) Lookup(path string) (models.Category, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[filepath.Clean(path)]
	if !ok {
		return "", false
	}
	return d.records[i].Category, true
}

// Promote marks a supplemental file as model specific and returns a message
// describing the outcome.
func (d *Dataset) Promote(path string) string {
	path = filepath.Clean(path)
	name := filepath.Base(path)

	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[path]
	if !ok {
		return "Cannot mark a non-supplemental file as cultivar"
	}
	rec := &d.records[i]
	switch {
	case rec.Promote():
		d.logger.Info("file promoted", zap.String("path", path))
		return name + " has been marked as a cultivar file."
	case rec.Category == models.CategoryModelSpecific:
		return name + " has already been marked as a cultivar file."
	default:
		return "Cannot mark a non-supplemental file as cultivar"
	}
}

// Records returns a copy of every record in scan order.
func (d *Dataset) Records() []models.FileRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.FileRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Files returns the paths recorded under category, in scan order.
func (d *Dataset) Files(category models.Category) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for _, r := range d.records {
		if r.Category == category {
			out = append(out, r.Path)
		}
	}
	return out
}

// Statistics returns the number of files in every category.
func (d *Dataset) Statistics() map[models.Category]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return countRecords(d.records)
}

func countRecords(records []models.FileRecord) map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		counts[c] = 0
	}
	for _, r := range records {
		counts[r.Category]++
	}
	return counts
}
