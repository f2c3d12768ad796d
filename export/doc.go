// Package export writes session snapshots for external consumers as JSON,
// JSON Lines (one trajectory entry per line), YAML or deterministic CBOR.
package export
