// Package linkage verifies that output-table rows reference experiments,
// soils and weather stations present in the experiment archives.
package linkage

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/acmo"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// Marker columns located in the header, in evaluation order. WST_ID precedes
// CLIM_ID so the station is known when the climate pair is checked.
var markerColumns = []string{
	"EXNAME", "EID", "SOIL_ID", "SID", "WST_ID", "CLIM_ID", "WID",
	"FIELD_OVERLAY", "DOID", "SEASONAL_STRATEGY", "DSID", "ROTATIONAL_ANALYSIS", "DRID",
}

// Result is the outcome of a linkage check for one table.
type Result struct {
	Path   string
	Passed bool
	Errors []string
}

// Checker checks output tables against a built registry.
type Checker struct {
	registry *models.IDRegistry
	logger   *zap.Logger
}

// NewChecker creates a checker bound to registry.
func NewChecker(registry *models.IDRegistry, logger *zap.Logger) *Checker {
	if registry == nil {
		registry = models.NewRegistryBuilder().Build()
	}
	return &Checker{
		registry: registry,
		logger:   logging.OrNop(logger).Named("linkage"),
	}
}

// Check walks every data row of the table at path. Each distinct error is
// recorded once. When the table fails, a "[FAILED] path" block listing the
// errors is written to sink.
func (c *Checker) Check(path string, sink io.Writer) Result {
	res := Result{Path: path, Passed: true}
	seen := make(map[string]struct{})
	record := func(msg string) {
		res.Passed = false
		if _, dup := seen[msg]; dup {
			return
		}
		seen[msg] = struct{}{}
		res.Errors = append(res.Errors, msg)
	}

	var cols []int
	err := acmo.ScanRows(path, func(line int, row []string) error {
		if strings.TrimSpace(row[0]) == "" {
			record(fmt.Sprintf("Invalid ACMO entry on line %d", line))
			return nil
		}
		switch models.RowMarker(row[0]) {
		case models.MarkerHeader:
			cols = locateColumns(row)
		case models.MarkerData:
			if cols != nil {
				c.checkRow(row, cols, record)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("linkage check aborted", zap.String("path", path), zap.Error(err))
		record(fmt.Sprintf("Unable to read file: %v", err))
	}

	if !res.Passed && sink != nil {
		writeFailure(sink, path, res.Errors)
	}
	return res
}

// locateColumns binds every marker to the first header cell containing it,
// ignoring case. Unmatched markers get -1.
func locateColumns(header []string) []int {
	cols := make([]int, len(markerColumns))
	for i, marker := range markerColumns {
		cols[i] = -1
		for k, name := range header {
			if strings.Contains(strings.ToUpper(name), marker) {
				cols[i] = k
				break
			}
		}
	}
	return cols
}

func (c *Checker) checkRow(row []string, cols []int, record func(string)) {
	var exname, soilID, station string
	stationSeen := false

	for i, marker := range markerColumns {
		if cols[i] < 0 {
			continue
		}
		value := strings.TrimSpace(acmo.Cell(row, cols[i]))

		switch marker {
		case "EXNAME":
			exname = acmo.CanonicalExname(value)
			if !c.registry.HasExperimentName(exname) {
				record("EXNAME not found: " + exname)
			}
		case "EID":
			if !c.registry.HasExperimentID(value) {
				record(fmt.Sprintf("EID not found for [%s]: %s", exname, value))
			}
		case "SOIL_ID":
			soilID = value
			if !c.registry.HasSoilName(value) {
				record("SOIL_ID not found: " + value)
			}
		case "SID":
			if !c.registry.HasSoilID(value) {
				record(fmt.Sprintf("SID not found for [%s]: %s", soilID, value))
			}
		case "WST_ID":
			station = value
			stationSeen = true
		case "CLIM_ID":
			if !stationSeen {
				continue
			}
			if !c.registry.HasWeatherClimate(models.WeatherClimateKey(station, value)) {
				record(fmt.Sprintf("WST_ID %s not found with CLIM_ID: %s", station, value))
			}
			station = station + " + " + value
		case "WID":
			if !c.registry.HasWeatherID(value) {
				record(fmt.Sprintf("WID not found for [%s]: %s", station, value))
			}
		}
	}
}

func writeFailure(w io.Writer, path string, errs []string) {
	fmt.Fprintf(w, "[FAILED] %s\n", path)
	for _, e := range errs {
		fmt.Fprintf(w, "         %s\n", e)
	}
	fmt.Fprintln(w)
}
