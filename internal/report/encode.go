package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/cropmodel/dataset/internal/models"
)

// Format selects a report encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatTOML    Format = "toml"
	FormatMsgpack Format = "msgpack"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML, FormatMsgpack}

// ParseFormat resolves a format name, accepting "yml" for YAML.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatText:
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	case FormatJSON, FormatYAML, FormatTOML, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", name)
	}
}

// Encode writes r to w in the given format.
func Encode(w io.Writer, r *models.DatasetReport, format Format) error {
	switch format {
	case FormatText:
		WriteText(w, r)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(r)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// DecodeMsgpack reads a report written with FormatMsgpack.
func DecodeMsgpack(r io.Reader) (*models.DatasetReport, error) {
	var rep models.DatasetReport
	if err := msgpack.NewDecoder(r).Decode(&rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
