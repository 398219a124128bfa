package acmo

import (
	"regexp"
	"strings"
)

var (
	// BatchRegex matches sensitivity-batch experiment names, e.g. "SITE_1_b2__1".
	BatchRegex = regexp.MustCompile(`^(\w+_\d+)_b\w+__\d+$`)
	// SeasonalRegex matches seasonal experiment names, e.g. "SITE_1__1".
	SeasonalRegex = regexp.MustCompile(`^(\w+_\d+)__\d+$`)
)

// CanonicalExname strips a batch or seasonal suffix from an experiment name,
// returning the base name that experiment archives carry.
func CanonicalExname(exname string) string {
	exname = strings.TrimSpace(exname)
	if m := BatchRegex.FindStringSubmatch(exname); m != nil {
		return m[1]
	}
	if m := SeasonalRegex.FindStringSubmatch(exname); m != nil {
		return m[1]
	}
	return exname
}
