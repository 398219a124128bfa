package models

import "strings"

// Row markers found at the start of a delimited-table row.
const (
	MarkerHeader  byte = '#'
	MarkerData    byte = '*'
	MarkerComment byte = '!'
)

// RowMarker returns the marker character of a row's first cell: the byte at
// offset 0, or offset 1 when offset 0 is a quote. Zero means no marker.
func RowMarker(cell string) byte {
	if cell == "" {
		return 0
	}
	if cell[0] == '"' {
		if len(cell) < 2 {
			return 0
		}
		return cell[1]
	}
	return cell[0]
}

// IsBlank reports whether a cell holds nothing but whitespace.
func IsBlank(cell string) bool {
	return strings.TrimSpace(cell) == ""
}
