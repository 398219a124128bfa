package dome

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/fsutil"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// Merge combines the rule archives in sources into dest. Entries are copied
// verbatim; the first entry seen under a name is kept and later ones are
// skipped. A source that fails part way is logged and abandoned, keeping the
// entries it had already contributed, and the merge carries on with the
// remaining sources.
func Merge(dest string, sources []string, logger *zap.Logger) (models.MergeResult, error) {
	log := logging.OrNop(logger).Named("seam")

	written := make(map[string]struct{})
	err := fsutil.WriteAtomic(dest, func(w io.Writer) error {
		zw := gzip.NewWriter(w)
		if _, err := io.WriteString(zw, "{"); err != nil {
			return err
		}

		for _, src := range sources {
			log.Info("merging rule archive", zap.String("path", src))
			err := EachEntry(src, func(id string, body json.RawMessage) error {
				if _, dup := written[id]; dup {
					log.Debug("skipping duplicate rule set", zap.String("id", id), zap.String("path", src))
					return nil
				}
				if err := writeEntry(zw, len(written) > 0, id, body); err != nil {
					return &writeError{err}
				}
				written[id] = struct{}{}
				return nil
			})
			if err != nil {
				var we *writeError
				if errors.As(err, &we) {
					return we.err
				}
				log.Warn("skipping unreadable rule archive", zap.String("path", src), zap.Error(err))
			}
		}

		if _, err := io.WriteString(zw, "}"); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return models.MergeResult{}, fmt.Errorf("writing merged rule archive: %w", err)
	}

	log.Info("rule archives merged", zap.String("dest", dest), zap.Int("entries", len(written)))
	return models.MergeResult{Path: dest, Count: len(written)}, nil
}

// writeError marks a failure of the output stream rather than of a source.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }

func writeEntry(w io.Writer, comma bool, id string, body json.RawMessage) error {
	key, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if comma {
		if _, err := io.WriteString(w, ","); err != nil {
			return err
		}
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if _, err := io.WriteString(w, ":"); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Collisions returns the display names that more than one distinct rule-set
// id maps to, sorted by name.
func Collisions(summaries []Summary) []models.Collision {
	byName := make(map[string]map[string]struct{})
	for _, s := range summaries {
		ids, ok := byName[s.Name]
		if !ok {
			ids = make(map[string]struct{})
			byName[s.Name] = ids
		}
		ids[s.ID] = struct{}{}
	}

	var out []models.Collision
	for name, ids := range byName {
		if len(ids) < 2 {
			continue
		}
		sources := make([]string, 0, len(ids))
		for id := range ids {
			sources = append(sources, id)
		}
		sort.Strings(sources)
		out = append(out, models.Collision{Name: name, Sources: sources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
