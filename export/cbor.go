package export

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/hupe1980/kaizen/session"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Core deterministic encoding: sorted map keys and smallest integer
	// forms, so equal snapshots produce identical bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("export: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORExporter writes the snapshot as deterministic CBOR.
type CBORExporter struct{}

// Export implements Exporter.
func (e *CBORExporter) Export(snap session.Snapshot, w io.Writer) error {
	if err := encMode.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Extension implements Exporter.
func (e *CBORExporter) Extension() string { return "cbor" }

// DecodeCBOR reads a snapshot written by CBORExporter.
func DecodeCBOR(r io.Reader) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := decMode.NewDecoder(r).Decode(&snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
