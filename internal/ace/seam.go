package ace

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/fsutil"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// Seam merges the experiment archives in sources into a single archive at
// dest. Every component is decoded and cloned before it joins the merged
// dataset; an id seen earlier in the same section wins over later ones.
//
// The merged archive is written to a temporary file next to dest and renamed
// into place. A source that cannot be read aborts the merge and leaves dest
// untouched.
func Seam(dest string, sources []string, logger *zap.Logger) (models.MergeResult, error) {
	log := logging.OrNop(logger).Named("seam")

	merged := NewDataset()
	for _, src := range sources {
		log.Info("seaming archive", zap.String("path", src))
		ds, err := ReadFile(src)
		if err != nil {
			return models.MergeResult{}, err
		}
		for _, e := range ds.Experiments {
			merged.Add(SectionExperiments, e.ID, e.Component.Clone())
		}
		for _, e := range ds.Soils {
			merged.Add(SectionSoils, e.ID, e.Component.Clone())
		}
		for _, e := range ds.Weathers {
			merged.Add(SectionWeathers, e.ID, e.Component.Clone())
		}
	}

	if err := fsutil.WriteAtomic(dest, merged.Write); err != nil {
		return models.MergeResult{}, fmt.Errorf("writing merged archive: %w", err)
	}
	log.Info("seaming completed",
		zap.String("dest", dest),
		zap.Int("sources", len(sources)),
		zap.Int("components", merged.Len()))
	return models.MergeResult{Path: dest, Count: merged.Len()}, nil
}
