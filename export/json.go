package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/kaizen/session"
)

// JSONExporter writes the snapshot as one JSON document.
type JSONExporter struct {
	Indent string
}

// Export implements Exporter.
func (e *JSONExporter) Export(snap session.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Extension implements Exporter.
func (e *JSONExporter) Extension() string { return "json" }

// JSONLExporter writes one trajectory entry per line, oldest first.
type JSONLExporter struct{}

// Export implements Exporter.
func (e *JSONLExporter) Export(snap session.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range snap.Trajectory {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", rec.Seq, err)
		}
	}
	return nil
}

// Extension implements Exporter.
func (e *JSONLExporter) Extension() string { return "jsonl" }
