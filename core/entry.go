package core

import (
	"fmt"
	"time"
)

// EntryKind tags what an Entry records. The set is closed; Valid reports
// membership.
type EntryKind string

const (
	KindAgentInvoked      EntryKind = "agent_invoked"
	KindAgentCompleted    EntryKind = "agent_completed"
	KindAgentFailed       EntryKind = "agent_failed"
	KindStateSet          EntryKind = "state_set"
	KindArtifactWritten   EntryKind = "artifact_written"
	KindSessionCreated    EntryKind = "session_created"
	KindSessionLoaded     EntryKind = "session_loaded"
	KindSessionSaved      EntryKind = "session_saved"
	KindPlanCreated       EntryKind = "plan_created"
	KindPlanStepStarted   EntryKind = "plan_step_started"
	KindPlanStepCompleted EntryKind = "plan_step_completed"
	KindUserInput         EntryKind = "user_input"
	KindSystemNote        EntryKind = "system_note"
)

var entryKinds = []EntryKind{
	KindAgentInvoked, KindAgentCompleted, KindAgentFailed,
	KindStateSet, KindArtifactWritten,
	KindSessionCreated, KindSessionLoaded, KindSessionSaved,
	KindPlanCreated, KindPlanStepStarted, KindPlanStepCompleted,
	KindUserInput, KindSystemNote,
}

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	for _, known := range entryKinds {
		if k == known {
			return true
		}
	}
	return false
}

// EntryKinds returns every known kind in declaration order.
func EntryKinds() []EntryKind {
	out := make([]EntryKind, len(entryKinds))
	copy(out, entryKinds)
	return out
}

// Origin identifiers used by the session and the dispatcher themselves.
const (
	OriginSystem     = "system"
	OriginDispatcher = "dispatcher"
	OriginUser       = "user"
)

// TimestampLayout is the textual form of Entry timestamps in every
// serialized representation.
const TimestampLayout = time.RFC3339Nano

// Entry is one immutable fact in a Trajectory. Fields are only reachable
// through getters and Payload returns a copy, so an Entry cannot be changed
// after construction.
type Entry struct {
	seq       int64
	timestamp time.Time
	origin    string
	kind      EntryKind
	payload   Payload
}

// NewEntry validates its inputs and builds an Entry. The payload is
// canonicalized into an owned copy; the timestamp is normalized to UTC.
func NewEntry(seq int64, ts time.Time, origin string, kind EntryKind, payload Payload) (Entry, error) {
	if seq < 1 {
		return Entry{}, NewError(CodeValidation, "sequence number must be >= 1, got %d", seq)
	}
	if ts.IsZero() {
		return Entry{}, NewError(CodeContentInvalidTimestamp, "timestamp must be set")
	}
	if origin == "" {
		return Entry{}, NewError(CodeValidation, "origin id must not be empty")
	}
	if !kind.Valid() {
		return Entry{}, NewError(CodeValidation, "unknown entry kind %q", kind)
	}
	p, err := CanonicalizePayload(payload)
	if err != nil {
		return Entry{}, WrapError(CodeContentInvalidPayload, err, "payload for %s is not JSON-compatible", kind)
	}
	return Entry{seq: seq, timestamp: ts.UTC(), origin: origin, kind: kind, payload: p}, nil
}

// Seq returns the 1-based sequence number.
func (e Entry) Seq() int64 { return e.seq }

// Timestamp returns the UTC time the entry was appended.
func (e Entry) Timestamp() time.Time { return e.timestamp }

// OriginID returns the identifier of the actor that produced the entry.
func (e Entry) OriginID() string { return e.origin }

// Kind returns the entry kind.
func (e Entry) Kind() EntryKind { return e.kind }

// Payload returns a deep copy of the entry payload.
func (e Entry) Payload() Payload {
	if e.payload == nil {
		return Payload{}
	}
	return ClonePayload(e.payload)
}

// Field returns a copy of a single payload value.
func (e Entry) Field(key string) (any, bool) {
	v, ok := e.payload[key]
	if !ok {
		return nil, false
	}
	return Clone(v), true
}

func (e Entry) String() string {
	return fmt.Sprintf("#%d %s %s", e.seq, e.origin, e.kind)
}

// EntryRecord is the plain serialized form of an Entry, used by persistence,
// snapshots and exporters.
type EntryRecord struct {
	Seq       int64     `json:"seq_num" yaml:"seq_num" cbor:"seq_num"`
	Timestamp string    `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
	OriginID  string    `json:"agent_id" yaml:"agent_id" cbor:"agent_id"`
	Kind      EntryKind `json:"entry_type" yaml:"entry_type" cbor:"entry_type"`
	Content   Payload   `json:"content" yaml:"content" cbor:"content"`
}

// Record converts the entry to its serialized form. The content is a copy.
func (e Entry) Record() EntryRecord {
	return EntryRecord{
		Seq:       e.seq,
		Timestamp: e.timestamp.Format(TimestampLayout),
		OriginID:  e.origin,
		Kind:      e.kind,
		Content:   e.Payload(),
	}
}

// EntryFromRecord rebuilds an Entry. The timestamp must carry an explicit
// UTC offset ("Z" or "+hh:mm"); naive times are rejected.
func EntryFromRecord(r EntryRecord) (Entry, error) {
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return Entry{}, err
	}
	return NewEntry(r.Seq, ts, r.OriginID, r.Kind, r.Content)
}

// ParseTimestamp parses an RFC 3339 timestamp with a mandatory offset.
func ParseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, WrapError(CodeContentInvalidTimestamp, err, "timestamp %q must be RFC 3339 with an explicit offset", s)
	}
	return ts.UTC(), nil
}
