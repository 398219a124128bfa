// Package filetype maps dataset files to a category by inspecting content.
package filetype

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// DefaultExtensions are sniffed when no allow-list is configured.
var DefaultExtensions = []string{".aceb", ".dome", ".gz", ".json", ".csv", ".txt"}

const sniffSize = 512

type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// Classifier assigns exactly one category to every path.
type Classifier struct {
	registry   *Registry
	extensions map[string]struct{}
	cache      *lru.Cache[cacheKey, models.Category]
	logger     *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithExtensions replaces the extension allow-list.
func WithExtensions(exts []string) Option {
	return func(c *Classifier) {
		c.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			c.extensions[ext] = struct{}{}
		}
	}
}

// WithCacheSize memoizes results keyed by path, size and modification time.
// A size of zero disables the cache.
func WithCacheSize(size int) Option {
	return func(c *Classifier) {
		if size <= 0 {
			c.cache = nil
			return
		}
		cache, err := lru.New[cacheKey, models.Category](size)
		if err == nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = logging.OrNop(l).Named("classifier")
	}
}

// WithRegistry replaces the detector registry.
func WithRegistry(r *Registry) Option {
	return func(c *Classifier) {
		c.registry = r
	}
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	WithExtensions(DefaultExtensions)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the category of filePath. Any read or parse failure
// yields CategorySupplemental.
func (c *Classifier) Classify(filePath string) (category models.Category) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classification panicked", zap.String("path", filePath), zap.Any("panic", r))
			category = models.CategorySupplemental
		}
	}()

	if _, ok := c.extensions[strings.ToLower(filepath.Ext(filePath))]; !ok {
		return models.CategorySupplemental
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		c.logger.Debug("cannot stat file", zap.String("path", filePath), zap.Error(err))
		return models.CategorySupplemental
	}

	key := cacheKey{path: filePath, size: info.Size(), modTime: info.ModTime()}
	if c.cache != nil {
		if cat, ok := c.cache.Get(key); ok {
			return cat
		}
	}

	category, err = c.detect(filePath)
	if err != nil {
		c.logger.Warn("classification failed", zap.String("path", filePath), zap.Error(err))
		category = models.CategorySupplemental
	}
	c.logger.Debug("classified file", zap.String("path", filePath), zap.String("category", string(category)))

	if c.cache != nil {
		c.cache.Add(key, category)
	}
	return category
}

func (c *Classifier) detect(filePath string) (models.Category, error) {
	head, err := readHead(filePath)
	if err != nil {
		return models.CategorySupplemental, err
	}
	if len(head) == 0 {
		return models.CategorySupplemental, nil
	}
	d, err := c.registry.FindDetector(head)
	if err != nil {
		return models.CategorySupplemental, err
	}
	return d.Detect(filePath)
}

func readHead(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading file head: %w", err)
	}
	return buf[:n], nil
}
