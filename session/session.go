package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/logging"
)

// SchemaVersion is the persistence format understood by this package.
const SchemaVersion = 1

// Session composes a StateStore, an ArtifactStore and a Trajectory under
// one identity. Every state or artifact mutation is also recorded in the
// Trajectory.
//
// A Session is not safe for concurrent use; callers must serialize access.
type Session struct {
	id         string
	opts       Options
	logger     logging.Logger
	state      *StateStore
	artifacts  *ArtifactStore
	trajectory *Trajectory
}

// New creates an in-memory session and records its session_created entry.
func New(optFns ...func(o *Options)) (*Session, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	s, err := build(opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.trajectory.Append(core.OriginSystem, core.KindSessionCreated, core.Payload{
		"session_id":        s.id,
		"max_artifact_size": s.opts.MaxArtifactSize,
		"schema_version":    SchemaVersion,
	}); err != nil {
		return nil, err
	}
	s.logger.Debug("session created", "session_id", s.id, "max_artifact_size", s.opts.MaxArtifactSize)
	return s, nil
}

func build(opts Options) (*Session, error) {
	if opts.MaxArtifactSize <= 0 {
		return nil, core.NewError(core.CodeValidation, "max artifact size must be positive, got %d", opts.MaxArtifactSize)
	}
	switch opts.Compression {
	case "", CompressionNone:
		opts.Compression = CompressionNone
	case CompressionZstd:
	default:
		return nil, core.NewError(core.CodeValidation, "unknown compression %q", opts.Compression)
	}
	if opts.Clock == nil {
		opts.Clock = defaultOptions().Clock
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	t := newTrajectory(opts.Clock)
	return &Session{
		id:         opts.ID,
		opts:       opts,
		logger:     opts.Logger,
		state:      newStateStore(t),
		artifacts:  newArtifactStore(opts.MaxArtifactSize, t),
		trajectory: t,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// MaxArtifactSize returns the per-artifact byte limit.
func (s *Session) MaxArtifactSize() int64 { return s.opts.MaxArtifactSize }

// State returns the session's state store.
func (s *Session) State() *StateStore { return s.state }

// Artifacts returns the session's artifact store.
func (s *Session) Artifacts() *ArtifactStore { return s.artifacts }

// Trajectory returns the session's append-only log.
func (s *Session) Trajectory() *Trajectory { return s.trajectory }

// Append is shorthand for Trajectory().Append.
func (s *Session) Append(originID string, kind core.EntryKind, payload core.Payload) (int64, error) {
	return s.trajectory.Append(originID, kind, payload)
}

// All returns a deep copy of the whole state.
func (s *Session) All() map[string]any { return s.state.All() }

// Version returns the state version.
func (s *Session) Version() int64 { return s.state.Version() }

// Logger returns the logger the session was configured with.
func (s *Session) Logger() logging.Logger { return s.logger }

func (s *Session) String() string {
	return fmt.Sprintf("Session(id=%s, state_version=%d, trajectory=%d, artifacts=%d)",
		s.id, s.state.Version(), s.trajectory.Len(), s.artifacts.Len())
}
