package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/kaizen/session"
)

// YAMLExporter writes the snapshot as a YAML document.
type YAMLExporter struct{}

// Export implements Exporter.
func (e *YAMLExporter) Export(snap session.Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(snap)
}

// Extension implements Exporter.
func (e *YAMLExporter) Extension() string { return "yaml" }
