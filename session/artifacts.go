package session

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/hupe1980/kaizen/core"
)

// ArtifactStore holds named binary blobs. Each write is bounded by maxSize;
// the limit is per artifact, not cumulative.
type ArtifactStore struct {
	blobs   map[string][]byte
	maxSize int64
	log     *Trajectory
}

func newArtifactStore(maxSize int64, log *Trajectory) *ArtifactStore {
	return &ArtifactStore{blobs: make(map[string][]byte), maxSize: maxSize, log: log}
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Write stores a copy of data under name and records an artifact_written
// entry. A rejected write leaves the store unchanged.
func (a *ArtifactStore) Write(name string, data []byte) error {
	if name == "" {
		return core.NewError(core.CodeArtifactInvalidName, "artifact name must be a non-empty string")
	}
	size := int64(len(data))
	if size > a.maxSize {
		return core.NewError(core.CodeArtifactTooLarge,
			"artifact %q is %d bytes, exceeds maximum of %d bytes", name, size, a.maxSize).
			WithDetails(map[string]any{"name": name, "size": size, "max_size": a.maxSize})
	}
	prev, isUpdate := a.blobs[name]
	var oldSize any
	if isUpdate {
		oldSize = int64(len(prev))
	}
	if _, err := a.log.Append(core.OriginSystem, core.KindArtifactWritten, core.Payload{
		"name":      name,
		"size":      size,
		"is_update": isUpdate,
		"old_size":  oldSize,
		"digest":    Digest(data),
	}); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	a.blobs[name] = cp
	return nil
}

// Read returns a copy of the named artifact.
func (a *ArtifactStore) Read(name string) ([]byte, error) {
	data, ok := a.blobs[name]
	if !ok {
		return nil, notFound(name)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Size returns the byte length of the named artifact.
func (a *ArtifactStore) Size(name string) (int64, error) {
	data, ok := a.blobs[name]
	if !ok {
		return 0, notFound(name)
	}
	return int64(len(data)), nil
}

// Has reports whether the named artifact exists.
func (a *ArtifactStore) Has(name string) bool {
	_, ok := a.blobs[name]
	return ok
}

// List returns artifact names sorted lexicographically.
func (a *ArtifactStore) List() []string {
	names := make([]string, 0, len(a.blobs))
	for n := range a.blobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of artifacts.
func (a *ArtifactStore) Len() int { return len(a.blobs) }

// MaxSize returns the per-artifact limit in bytes.
func (a *ArtifactStore) MaxSize() int64 { return a.maxSize }

func (a *ArtifactStore) restore(blobs map[string][]byte) {
	a.blobs = blobs
}

func notFound(name string) error {
	return core.NewError(core.CodeArtifactNotFound, "artifact %q not found", name).
		WithDetails(map[string]any{"name": name})
}
