package ace

import (
	"github.com/cropmodel/dataset/internal/acmo"
	"github.com/cropmodel/dataset/internal/models"
)

// Harvest adds every identifier of ds to the registry builder: component ids,
// experiment names (with any batch or seasonal suffix stripped), soil ids and
// station/climate pairs.
func Harvest(b *models.RegistryBuilder, ds *Dataset) {
	for _, e := range ds.Experiments {
		b.AddExperimentID(e.ID)
		if name := e.Component.String("exname"); name != "" {
			b.AddExperimentName(acmo.CanonicalExname(name))
		}
	}
	for _, e := range ds.Soils {
		b.AddSoilID(e.ID)
		b.AddSoilName(e.Component.String("soil_id"))
	}
	for _, e := range ds.Weathers {
		b.AddWeatherID(e.ID)
		b.AddWeatherClimate(e.Component.String("wst_id"), e.Component.String("clim_id"))
	}
}
