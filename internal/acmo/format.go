package acmo

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/models"
)

const isoDate = "2006-01-02"

type badDate struct {
	column string
	value  string
}

func (t *Table) checkFormatOnce() {
	if t.formatChecked {
		return
	}
	t.formatOK, t.formatErrors, t.warnings = t.checkFormat()
	t.formatChecked = true
}

// dateColumns returns the indexes of header columns holding calendar dates.
func (t *Table) dateColumns() []int {
	var cols []int
	for i, name := range t.header {
		n := strings.ToUpper(strings.TrimSpace(name))
		if strings.HasSuffix(n, "DAT") || strings.HasSuffix(n, "DATE") || strings.HasSuffix(n, "DAT_S") {
			cols = append(cols, i)
		}
	}
	return cols
}

// checkFormat makes a full pass over the data rows validating date cells.
// A row too short to hold a date column is a suspected crop failure and only
// produces a warning.
func (t *Table) checkFormat() (bool, []string, []string) {
	if t.header == nil {
		return false, nil, nil
	}
	dateCols := t.dateColumns()

	var errs, warns []string
	dataRows, dateFails := 0, 0
	err := ScanRows(t.path, func(line int, row []string) error {
		if models.RowMarker(row[0]) != models.MarkerData {
			return nil
		}
		dataRows++

		var bad []badDate
		for _, idx := range dateCols {
			if idx >= len(row) {
				warns = append(warns, fmt.Sprintf("Suspected crop failure on line %d", line))
				break
			}
			value := strings.TrimSpace(row[idx])
			if value == "" {
				continue
			}
			if _, err := time.Parse(isoDate, value); err != nil {
				bad = append(bad, badDate{column: t.header[idx], value: row[idx]})
			}
		}
		if len(bad) > 0 {
			dateFails++
			errs = append(errs, dateError(bad, line))
		}
		return nil
	})
	if err != nil {
		t.logger.Warn("format check aborted", zap.String("path", t.path), zap.Error(err))
		return false, append(errs, fmt.Sprintf("Unable to read file: %v", err)), warns
	}

	if dataRows > 0 && dateFails == dataRows {
		errs = []string{errEveryDate}
	}
	return len(errs) == 0, errs, warns
}

// dateError renders "Invalid date(s) for A (x), B (y) and C (z) on line N".
func dateError(bad []badDate, line int) string {
	parts := make([]string, len(bad))
	for i, b := range bad {
		parts[i] = fmt.Sprintf("%s (%s)", b.column, b.value)
	}

	var sb strings.Builder
	if len(bad) == 1 {
		sb.WriteString("Invalid date for ")
		sb.WriteString(parts[0])
	} else {
		sb.WriteString("Invalid dates for ")
		sb.WriteString(strings.Join(parts[:len(parts)-1], ", "))
		sb.WriteString(" and ")
		sb.WriteString(parts[len(parts)-1])
	}
	fmt.Fprintf(&sb, " on line %d", line)
	return sb.String()
}
