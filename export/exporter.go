package export

import (
	"fmt"
	"io"

	"github.com/hupe1980/kaizen/session"
)

// Exporter writes a session snapshot in one format.
type Exporter interface {
	Export(snap session.Snapshot, w io.Writer) error
	Extension() string
}

// Formats lists the names NewExporter accepts.
func Formats() []string { return []string{"json", "jsonl", "yaml", "cbor"} }

// NewExporter creates an exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{Indent: "  "}, nil
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "cbor":
		return &CBORExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, jsonl, yaml, cbor)", format)
	}
}
