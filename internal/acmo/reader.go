package acmo

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrStopScan ends a row scan early without reporting a failure.
var ErrStopScan = errors.New("stop scan")

// RowFunc receives each record with its 1-based line number in the file.
type RowFunc func(line int, row []string) error

// ScanRows reads a delimited file record by record. Blank lines between
// records are passed to fn as a single empty cell. Returning ErrStopScan from
// fn ends the scan cleanly.
func ScanRows(filePath string, fn RowFunc) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return scanReader(file, fn)
}

func scanReader(r io.Reader, fn RowFunc) error {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// prevEnd is the last physical line of the previous record.
	prevEnd := 0
	emit := func(line int, row []string) (bool, error) {
		if err := fn(line, row); err != nil {
			if errors.Is(err, ErrStopScan) {
				return true, nil
			}
			return true, err
		}
		return false, nil
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := reader.FieldPos(0)
		for blank := prevEnd + 1; blank < line; blank++ {
			if stop, err := emit(blank, []string{""}); stop {
				return err
			}
		}
		last := len(row) - 1
		lastLine, _ := reader.FieldPos(last)
		prevEnd = lastLine + strings.Count(row[last], "\n")

		if stop, err := emit(line, row); stop {
			return err
		}
	}
}

// Cell returns row[idx], or "" when the index is missing or out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
