package session

import (
	"sort"

	"github.com/hupe1980/kaizen/core"
)

// StateStore is the versioned key/value working memory of a session.
// Values are copied on the way in and on the way out.
type StateStore struct {
	values  map[string]any
	version int64
	log     *Trajectory
}

func newStateStore(log *Trajectory) *StateStore {
	return &StateStore{values: make(map[string]any), log: log}
}

// Get returns a copy of the value stored at key, or def when absent.
func (s *StateStore) Get(key string, def any) any {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	return core.Clone(v)
}

// Lookup returns a copy of the value stored at key and whether it exists.
func (s *StateStore) Lookup(key string) (any, bool) {
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return core.Clone(v), true
}

// GetString is Lookup narrowed to string values.
func (s *StateStore) GetString(key string) (string, bool) {
	v, ok := s.values[key].(string)
	return v, ok
}

// Set stores a copy of value under key, records a state_set entry and
// returns the new version.
func (s *StateStore) Set(key string, value any) (int64, error) {
	if key == "" {
		return 0, core.NewError(core.CodeStateInvalidKey, "state key must be a non-empty string")
	}
	v, err := core.Canonicalize(value)
	if err != nil {
		return 0, core.WrapError(core.CodeStateInvalidValue, err, "value for %q is not JSON-compatible", key)
	}
	old := s.values[key]
	next := s.version + 1
	if _, err := s.log.Append(core.OriginSystem, core.KindStateSet, core.Payload{
		"key":           key,
		"old_value":     old,
		"new_value":     v,
		"state_version": next,
	}); err != nil {
		return 0, err
	}
	s.values[key] = v
	s.version = next
	return next, nil
}

// Version returns the number of accepted writes.
func (s *StateStore) Version() int64 { return s.version }

// Has reports whether key is set.
func (s *StateStore) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Len returns the number of keys.
func (s *StateStore) Len() int { return len(s.values) }

// Keys returns all keys sorted lexicographically.
func (s *StateStore) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a deep copy of the whole state.
func (s *StateStore) All() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = core.Clone(v)
	}
	return out
}

func (s *StateStore) restore(values map[string]any, version int64) {
	s.values = values
	s.version = version
}
