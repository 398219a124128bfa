package acmo

import (
	"strings"

	"github.com/cropmodel/dataset/internal/models"
)

// CanonicalName returns the protocol file name derived from the table's
// metadata:
//
//	ACMO-{region}-{CROP1_CROP2}-{suffix}-{model}.csv
//
// The suffix is the series tag for sensitivity batches and otherwise the
// climate id followed by optional "R"+scenario and "A"+management segments.
// The result is cached; force recomputes it.
func (t *Table) CanonicalName(force bool) string {
	if t.nameComputed && !force {
		return t.name
	}
	t.name = canonicalName(t.meta, t.series)
	t.nameComputed = true
	return t.name
}

func canonicalName(m Metadata, series string) string {
	segments := []string{"ACMO", orDefault(m.RegionID, "REGION"), cropSegment(m.Crops)}

	if models.IsSensitivitySeries(series) {
		segments = append(segments, series)
	} else {
		segments = append(segments, orDefault(m.ClimateID, "CLIMATE"))
		if m.ScenarioID != "" {
			segments = append(segments, "R"+m.ScenarioID)
		}
		if m.ManagementID != "" {
			segments = append(segments, "A"+m.ManagementID)
		}
	}

	segments = append(segments, orDefault(m.CropModel, "MODEL"))
	return strings.Join(segments, "-") + ".csv"
}

func cropSegment(crops []string) string {
	if len(crops) == 0 {
		return "CROP"
	}
	codes := make([]string, 0, len(crops))
	for _, c := range crops {
		codes = append(codes, normalizeCrop(c))
	}
	return strings.Join(codes, "_")
}

func normalizeCrop(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, " ", ""))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
