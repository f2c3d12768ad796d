package session

import (
	"time"

	"github.com/hupe1980/kaizen/core"
)

// DefaultSnapshotDepth is the trajectory tail length used by callers that
// do not choose one.
const DefaultSnapshotDepth = 10

// Snapshot is a detached view of a session. Nothing in it aliases session
// memory, so it can be freely mutated or handed to other code.
type Snapshot struct {
	SessionID             string             `json:"session_id" yaml:"session_id" cbor:"session_id"`
	RequestedBy           string             `json:"requested_by" yaml:"requested_by" cbor:"requested_by"`
	State                 map[string]any     `json:"state" yaml:"state" cbor:"state"`
	StateVersion          int64              `json:"state_version" yaml:"state_version" cbor:"state_version"`
	Trajectory            []core.EntryRecord `json:"trajectory" yaml:"trajectory" cbor:"trajectory"`
	Artifacts             []string           `json:"artifacts" yaml:"artifacts" cbor:"artifacts"`
	TrajectoryTotalLength int                `json:"trajectory_total_length" yaml:"trajectory_total_length" cbor:"trajectory_total_length"`
	SnapshotTime          string             `json:"snapshot_time" yaml:"snapshot_time" cbor:"snapshot_time"`
}

// Snapshot captures state, the last depth trajectory entries and the
// artifact names. originID identifies the requester; no entry is recorded.
func (s *Session) Snapshot(originID string, depth int) Snapshot {
	return Snapshot{
		SessionID:             s.id,
		RequestedBy:           originID,
		State:                 s.state.All(),
		StateVersion:          s.state.Version(),
		Trajectory:            s.trajectory.Records(max(depth, 0)),
		Artifacts:             s.artifacts.List(),
		TrajectoryTotalLength: s.trajectory.Len(),
		SnapshotTime:          s.opts.Clock().UTC().Format(time.RFC3339Nano),
	}
}
