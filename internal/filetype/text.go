package filetype

import (
	"bufio"
	"os"
	"strings"

	"github.com/cropmodel/dataset/internal/models"
)

const (
	// markerWindow is how far into a header line the required markers must appear.
	markerWindow = 15
	maxLineSize  = 4 * 1024 * 1024
)

var (
	requiredMarkers = []string{"SUITE_ID"}
	cropModelMarker = "CROP_MODEL"
	utf8BOM         = "\xEF\xBB\xBF"
)

// TextDetector classifies delimited text tables by their header row.
type TextDetector struct{}

func NewTextDetector() *TextDetector {
	return &TextDetector{}
}

func (d *TextDetector) Name() string {
	return "delimited_text"
}

// Accepts takes everything that is not compressed.
func (d *TextDetector) Accepts(head []byte) bool {
	return !isGzip(head)
}

// Detect scans to the first meaningful line. Comment and data rows are
// skipped; the first header row decides, any other content is supplemental.
func (d *TextDetector) Detect(filePath string) (models.Category, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return models.CategorySupplemental, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, utf8BOM)
			first = false
		}
		if models.IsBlank(line) {
			continue
		}

		switch models.RowMarker(line) {
		case models.MarkerComment, models.MarkerData:
			continue
		case models.MarkerHeader:
			return classifyHeader(line), nil
		default:
			return models.CategorySupplemental, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return models.CategorySupplemental, err
	}
	return models.CategorySupplemental, nil
}

func classifyHeader(line string) models.Category {
	if len(line) <= markerWindow {
		return models.CategorySupplemental
	}
	window := line[:markerWindow]
	for _, marker := range requiredMarkers {
		if !strings.Contains(window, marker) {
			return models.CategorySupplemental
		}
	}
	if strings.Contains(line, cropModelMarker) {
		return models.CategoryOutputTable
	}
	return models.CategoryLinkageTable
}
