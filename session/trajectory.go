package session

import (
	"time"

	"github.com/hupe1980/kaizen/core"
)

// Trajectory is the append-only log of a session. Append is its only
// mutator and every other store writes through it.
type Trajectory struct {
	entries []core.Entry
	next    int64
	clock   func() time.Time
}

func newTrajectory(clock func() time.Time) *Trajectory {
	return &Trajectory{next: 1, clock: clock}
}

// Append records a new entry and returns its sequence number. The payload
// is validated and copied; on error nothing is recorded.
func (t *Trajectory) Append(originID string, kind core.EntryKind, payload core.Payload) (int64, error) {
	e, err := core.NewEntry(t.next, t.clock(), originID, kind, payload)
	if err != nil {
		return 0, err
	}
	t.entries = append(t.entries, e)
	t.next++
	return e.Seq(), nil
}

// Len returns the number of entries.
func (t *Trajectory) Len() int { return len(t.entries) }

// Entries returns all entries in order.
func (t *Trajectory) Entries() []core.Entry {
	out := make([]core.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Recent returns the last n entries in chronological order. A non-positive
// n yields an empty slice.
func (t *Trajectory) Recent(n int) []core.Entry {
	if n <= 0 {
		return []core.Entry{}
	}
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]core.Entry, n)
	copy(out, t.entries[len(t.entries)-n:])
	return out
}

// Last returns the most recent entry.
func (t *Trajectory) Last() (core.Entry, bool) {
	if len(t.entries) == 0 {
		return core.Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// OfKind returns every entry with the given kind, in order.
func (t *Trajectory) OfKind(kind core.EntryKind) []core.Entry {
	var out []core.Entry
	for _, e := range t.entries {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// Records returns the serialized form of the last n entries, or of all
// entries when n is negative.
func (t *Trajectory) Records(n int) []core.EntryRecord {
	src := t.entries
	if n >= 0 {
		src = t.Recent(n)
	}
	out := make([]core.EntryRecord, len(src))
	for i, e := range src {
		out[i] = e.Record()
	}
	return out
}

// restore replaces the log with entries read from disk and continues the
// sequence after the last one.
func (t *Trajectory) restore(entries []core.Entry) {
	t.entries = entries
	t.next = 1
	if n := len(entries); n > 0 {
		t.next = entries[n-1].Seq() + 1
	}
}
