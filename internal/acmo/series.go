package acmo

import (
	"strconv"
	"strings"

	"github.com/cropmodel/dataset/internal/models"
)

// seriesScan classifies a table by walking its data rows in order.
type seriesScan struct {
	t *Table

	exname, clim, rap, man, fenTot int
	region, model, crop            int

	rows          int
	batchBase     string
	fenBaseline   string
	fenBaselineOK bool
	heterogeneous bool
}

// newSeriesScan returns nil when the EXNAME column is missing, leaving the
// series undetermined.
func (t *Table) newSeriesScan() *seriesScan {
	exname := t.column("EXNAME")
	if exname < 0 {
		return nil
	}
	crop := t.column("CRID_TEXT")
	if crop < 0 {
		crop = t.column("CRID")
	}
	return &seriesScan{
		t:      t,
		exname: exname,
		clim:   t.column("CLIM_ID"),
		rap:    t.column("RAP_ID"),
		man:    t.column("MAN_ID"),
		fenTot: t.column("FEN_TOT"),
		region: t.column("REG_ID"),
		model:  t.column("CROP_MODEL"),
		crop:   crop,
	}
}

// observe processes one data row and reports whether the tag is decided.
func (s *seriesScan) observe(row []string) bool {
	s.rows++
	if s.rows == 1 {
		s.captureMetadata(row)
	}
	s.t.addCrop(Cell(row, s.crop))

	exname := strings.TrimSpace(Cell(row, s.exname))
	switch {
	case BatchRegex.MatchString(exname):
		if s.batchBase == "" {
			s.batchBase = BatchRegex.FindStringSubmatch(exname)[1]
		}
		s.trackDuration(Cell(row, s.fenTot))
		return false
	case SeasonalRegex.MatchString(exname):
		s.decide(seasonalSeries(Cell(row, s.clim), Cell(row, s.rap), Cell(row, s.man)))
		return true
	default:
		s.decide(models.SeriesCM0)
		return true
	}
}

// finish resolves batches that ran to the end without a decision.
func (s *seriesScan) finish() {
	if s.t.seriesSet {
		return
	}
	if s.heterogeneous {
		s.decide(models.SeriesCTWN)
	} else {
		s.decide(models.SeriesC3MP)
	}
}

func (s *seriesScan) decide(tag string) {
	s.t.series = tag
	s.t.seriesSet = true
}

func (s *seriesScan) captureMetadata(row []string) {
	m := &s.t.meta
	m.RegionID = strings.TrimSpace(Cell(row, s.region))
	m.ClimateID = strings.TrimSpace(Cell(row, s.clim))
	m.ManagementID = strings.TrimSpace(Cell(row, s.man))
	m.ScenarioID = strings.TrimSpace(Cell(row, s.rap))
	m.CropModel = strings.TrimSpace(Cell(row, s.model))
}

func (s *seriesScan) trackDuration(value string) {
	value = strings.TrimSpace(value)
	if !s.fenBaselineOK {
		s.fenBaseline = value
		s.fenBaselineOK = true
		return
	}
	if !sameDuration(s.fenBaseline, value) {
		s.heterogeneous = true
	}
}

func sameDuration(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return a == b
}

// seasonalSeries picks CM1-CM6 for a seasonal row. Baseline climate ids carry
// the "0X" prefix or a trailing "X".
func seasonalSeries(climID, rapID, manID string) string {
	clim := strings.ToUpper(strings.TrimSpace(climID))
	baseline := strings.HasPrefix(clim, "0X") || strings.HasSuffix(clim, "X")
	rapBlank := models.IsBlank(rapID)
	manBlank := models.IsBlank(manID)

	switch {
	case baseline && rapBlank:
		return models.SeriesCM1
	case baseline:
		return models.SeriesCM4
	case rapBlank && manBlank:
		return models.SeriesCM2
	case rapBlank:
		return models.SeriesCM3
	case manBlank:
		return models.SeriesCM5
	default:
		return models.SeriesCM6
	}
}
