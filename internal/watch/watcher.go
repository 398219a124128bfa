// Package watch re-runs validation when files under a dataset directory change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/logging"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// minTick bounds how often Run checks for a quiet tree.
const minTick = time.Millisecond

// Watcher monitors a directory tree with fsnotify. Bursts of events are
// coalesced: the callback fires once the tree has been quiet for the
// debounce period.
type Watcher struct {
	root     string
	debounce time.Duration
	skipDot  bool
	logger   *zap.Logger
	fw       *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithSkipDotFiles controls whether dotfiles and dot-directories are ignored.
func WithSkipDotFiles(skip bool) Option {
	return func(w *Watcher) { w.skipDot = skip }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNop(l).Named("watch") }
}

// New creates a watcher and registers every directory under root.
func New(root string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		debounce: DefaultDebounce,
		skipDot:  true,
		logger:   zap.NewNop(),
		fw:       fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) hidden(path string) bool {
	return w.skipDot && path != w.root && strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.hidden(path) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Run delivers debounced changes to onChange until ctx is cancelled. The
// callback receives the sorted set of paths touched since the last call.
// Run closes the underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	defer w.fw.Close()

	pending := make(map[string]struct{})
	var last time.Time
	ticker := time.NewTicker(tickInterval(w.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if w.hidden(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = struct{}{}
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) == 0 || time.Since(last) < w.debounce {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			w.logger.Info("changes detected", zap.Int("paths", len(paths)))
			onChange(paths)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// tickInterval is a quarter of the debounce period, never below minTick.
func tickInterval(debounce time.Duration) time.Duration {
	return max(debounce/4, minTick)
}
