package session

import (
	"time"

	"github.com/hupe1980/kaizen/logging"
)

// DefaultMaxArtifactSize bounds a single artifact at 100 MiB.
const DefaultMaxArtifactSize int64 = 100 * 1024 * 1024

// Compression selects how artifact blobs are stored in a session file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Options configures a Session. Use the With* helpers or mutate the struct
// directly inside an option function.
type Options struct {
	// ID is the session identifier. A random UUID is used when empty.
	ID string
	// MaxArtifactSize is the per-artifact byte limit.
	MaxArtifactSize int64
	// Clock supplies entry timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives operator telemetry. Defaults to logging.NoOpLogger.
	Logger logging.Logger
	// Compression applies to artifact blobs on Save.
	Compression Compression
	// VerifyDigests makes Load recompute and compare artifact digests.
	VerifyDigests bool
}

func defaultOptions() Options {
	return Options{
		MaxArtifactSize: DefaultMaxArtifactSize,
		Clock:           time.Now,
		Logger:          logging.NoOpLogger{},
		Compression:     CompressionNone,
		VerifyDigests:   true,
	}
}

// WithID sets a caller supplied session id.
func WithID(id string) func(o *Options) {
	return func(o *Options) { o.ID = id }
}

// WithMaxArtifactSize sets the per-artifact size limit in bytes.
func WithMaxArtifactSize(n int64) func(o *Options) {
	return func(o *Options) { o.MaxArtifactSize = n }
}

// WithClock overrides the timestamp source, mainly for tests.
func WithClock(clock func() time.Time) func(o *Options) {
	return func(o *Options) { o.Clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCompression selects artifact compression for Save.
func WithCompression(c Compression) func(o *Options) {
	return func(o *Options) { o.Compression = c }
}

// WithVerifyDigests toggles digest verification on Load.
func WithVerifyDigests(v bool) func(o *Options) {
	return func(o *Options) { o.VerifyDigests = v }
}
