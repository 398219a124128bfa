// Package acmo validates crop-model output tables: header discovery,
// protocol-series classification, row-format checks and canonical naming.
package acmo

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

const (
	errNoHeader  = "No header found"
	errNoSeries  = "Unable to determine the crop model exercise series for this output table"
	errEveryDate = "Date format incorrect on every data line in this file"
)

// Metadata is captured from the first data row of a table.
// Empty strings mean the value was absent.
type Metadata struct {
	RegionID     string   `json:"regionId,omitempty"`
	ClimateID    string   `json:"climateId,omitempty"`
	ManagementID string   `json:"managementId,omitempty"`
	ScenarioID   string   `json:"scenarioId,omitempty"`
	CropModel    string   `json:"cropModel,omitempty"`
	Crops        []string `json:"crops,omitempty"`
}

// Table describes a single output table. Header, series and metadata are read
// once when the table is opened; the format check and canonical name are
// computed on first use and cached until Recheck.
type Table struct {
	path   string
	logger *zap.Logger

	header     []string
	headerLine int
	columns    map[string]int
	readErr    error

	series    string
	seriesSet bool
	meta      Metadata
	cropSeen  map[string]struct{}

	formatChecked bool
	formatOK      bool
	formatErrors  []string
	warnings      []string

	name         string
	nameComputed bool
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Table) {
		t.logger = logging.OrNop(l).Named("acmo")
	}
}

// Open reads the header, series tag and metadata of the table at filePath.
// Read failures leave the table invalid; Open never fails.
func Open(filePath string, opts ...Option) *Table {
	t := &Table{path: filePath, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.load()
	return t
}

// Path returns the source path.
func (t *Table) Path() string { return t.path }

// Header returns the header row, or nil when none was found.
func (t *Table) Header() []string { return t.header }

// HeaderLine returns the 1-based line number of the header row, or 0.
func (t *Table) HeaderLine() int { return t.headerLine }

// Series returns the protocol-series tag and whether it was determined.
func (t *Table) Series() (string, bool) { return t.series, t.seriesSet }

// Metadata returns the captured metadata.
func (t *Table) Metadata() Metadata { return t.meta }

// Recheck discards every cached result and reads the file again.
func (t *Table) Recheck() {
	path, logger := t.path, t.logger
	*t = Table{path: path, logger: logger}
	t.load()
}

// Valid reports whether the table has a header, a series tag and passes the
// row-format check.
func (t *Table) Valid() bool {
	if t.header == nil || !t.seriesSet {
		return false
	}
	t.checkFormatOnce()
	return t.formatOK
}

// Errors returns the structured error lines for the table.
func (t *Table) Errors() []string {
	var errs []string
	if t.header == nil {
		errs = append(errs, errNoHeader)
	}
	if t.readErr != nil {
		errs = append(errs, fmt.Sprintf("Unable to read file: %v", t.readErr))
	}
	if t.header != nil && !t.seriesSet {
		errs = append(errs, errNoSeries)
	}
	if t.header != nil {
		t.checkFormatOnce()
		errs = append(errs, t.formatErrors...)
	}
	return errs
}

// Warnings returns informational findings that never invalidate the table.
func (t *Table) Warnings() []string {
	if t.header != nil {
		t.checkFormatOnce()
	}
	return t.warnings
}

// ErrorReport joins Errors with newlines.
func (t *Table) ErrorReport() string {
	return strings.Join(t.Errors(), "\n")
}

// column returns the index of a header column by case-insensitive exact name.
func (t *Table) column(name string) int {
	if idx, ok := t.columns[strings.ToUpper(name)]; ok {
		return idx
	}
	return -1
}

func (t *Table) load() {
	var sc *seriesScan
	err := ScanRows(t.path, func(line int, row []string) error {
		marker := models.RowMarker(row[0])
		if t.header == nil {
			if marker == models.MarkerHeader {
				t.setHeader(line, row)
				sc = t.newSeriesScan()
				if sc == nil {
					return ErrStopScan
				}
			}
			return nil
		}
		if marker != models.MarkerData {
			return nil
		}
		if sc.observe(row) {
			return ErrStopScan
		}
		return nil
	})
	if err != nil {
		t.logger.Warn("reading output table failed", zap.String("path", t.path), zap.Error(err))
		t.readErr = err
		t.header = nil
		t.seriesSet = false
		return
	}
	if sc != nil {
		sc.finish()
	}
	if t.header == nil {
		t.logger.Debug("no header row", zap.String("path", t.path))
	}
}

func (t *Table) setHeader(line int, row []string) {
	t.header = row
	t.headerLine = line
	t.columns = make(map[string]int, len(row))
	for i, name := range row {
		key := strings.ToUpper(strings.TrimSpace(name))
		if _, dup := t.columns[key]; !dup {
			t.columns[key] = i
		}
	}
	t.logger.Debug("header found", zap.String("path", t.path), zap.Int("line", line))
}

func (t *Table) addCrop(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	if t.cropSeen == nil {
		t.cropSeen = make(map[string]struct{})
	}
	key := normalizeCrop(code)
	if _, ok := t.cropSeen[key]; ok {
		return
	}
	t.cropSeen[key] = struct{}{}
	t.meta.Crops = append(t.meta.Crops, code)
}

// CanonicalPath returns the canonical name resolved next to the source file.
func (t *Table) CanonicalPath() string {
	return filepath.Join(filepath.Dir(t.path), t.CanonicalName(false))
}
