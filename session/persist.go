package session

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/logging"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	value_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trajectory (
	seq_num      INTEGER PRIMARY KEY,
	timestamp    TEXT NOT NULL,
	agent_id     TEXT NOT NULL,
	entry_type   TEXT NOT NULL,
	content_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS artifacts (
	name     TEXT PRIMARY KEY,
	encoding TEXT NOT NULL,
	size     INTEGER NOT NULL,
	digest   TEXT NOT NULL,
	data     BLOB
);`

const (
	metaSchemaVersion   = "schema_version"
	metaSessionID       = "session_id"
	metaMaxArtifactSize = "max_artifact_size"
	metaStateVersion    = "state_version"
)

// Save writes the session to a single SQLite file at path. A session_saved
// entry is appended first so that the file contains the record of its own
// save. All four tables are rewritten inside one transaction.
func (s *Session) Save(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { logging.LogPersistence(s.logger, "save", path, time.Since(start), err) }()

	if _, err = s.trajectory.Append(core.OriginSystem, core.KindSessionSaved, core.Payload{"path": path}); err != nil {
		return err
	}

	dsn, err := fileDSN(path, nil)
	if err != nil {
		return core.WrapError(core.CodePersistSaveFailed, err, "resolve %s", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return core.WrapError(core.CodePersistSaveFailed, err, "open %s", path)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.CodePersistSaveFailed, err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.writeTables(ctx, tx); err != nil {
		return core.WrapError(core.CodePersistSaveFailed, err, "write %s", path)
	}
	if err = tx.Commit(); err != nil {
		return core.WrapError(core.CodePersistSaveFailed, err, "commit %s", path)
	}
	return nil
}

func (s *Session) writeTables(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	for _, table := range []string{"metadata", "state", "trajectory", "artifacts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	meta := map[string]string{
		metaSchemaVersion:   strconv.Itoa(SchemaVersion),
		metaSessionID:       s.id,
		metaMaxArtifactSize: strconv.FormatInt(s.opts.MaxArtifactSize, 10),
		metaStateVersion:    strconv.FormatInt(s.state.version, 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}

	for k, v := range s.state.values {
		data, err := core.EncodeValue(v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO state (key, value_json) VALUES (?, ?)", k, string(data)); err != nil {
			return err
		}
	}

	for _, e := range s.trajectory.entries {
		r := e.Record()
		content, err := core.EncodeValue(r.Content)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO trajectory (seq_num, timestamp, agent_id, entry_type, content_json) VALUES (?, ?, ?, ?, ?)",
			r.Seq, r.Timestamp, r.OriginID, string(r.Kind), string(content)); err != nil {
			return err
		}
	}

	for name, data := range s.artifacts.blobs {
		stored, enc := encodeBlob(data, s.opts.Compression)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO artifacts (name, encoding, size, digest, data) VALUES (?, ?, ?, ?, ?)",
			name, string(enc), int64(len(data)), Digest(data), stored); err != nil {
			return err
		}
	}
	return nil
}

// Load restores a session from a file written by Save and appends a
// session_loaded entry that continues the stored sequence. The id and
// artifact limit come from the file; Options supply the clock, logger,
// compression for later saves and digest verification.
func Load(ctx context.Context, path string, optFns ...func(o *Options)) (s *Session, err error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	start := time.Now()
	defer func() { logging.LogPersistence(opts.Logger, "load", path, time.Since(start), err) }()

	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return nil, core.WrapError(core.CodePersistFileNotFound, statErr, "session file %s not found", path).
				WithDetails(map[string]any{"path": path})
		}
		return nil, core.WrapError(core.CodePersistLoadFailed, statErr, "stat %s", path)
	}

	dsn, err := fileDSN(path, url.Values{"mode": {"ro"}})
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "resolve %s", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "open %s", path)
	}
	defer db.Close()

	meta, err := readMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	opts.ID = meta.sessionID
	opts.MaxArtifactSize = meta.maxArtifactSize

	s, err = build(opts)
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "invalid metadata in %s", path)
	}

	state, err := readState(ctx, db)
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "read state")
	}
	entries, err := readTrajectory(ctx, db)
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "read trajectory")
	}
	blobs, err := readArtifacts(ctx, db, opts.VerifyDigests)
	if err != nil {
		return nil, core.WrapError(core.CodePersistLoadFailed, err, "read artifacts")
	}

	s.state.restore(state, meta.stateVersion)
	s.trajectory.restore(entries)
	s.artifacts.restore(blobs)

	if _, err = s.trajectory.Append(core.OriginSystem, core.KindSessionLoaded, core.Payload{"path": path}); err != nil {
		return nil, err
	}
	return s, nil
}

// fileDSN turns path into an absolute file: URI with the path escaped, so
// that '?', '#' and '%' in file names are not read as URI syntax.
func fileDSN(path string, query url.Values) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: query.Encode()}
	return u.String(), nil
}

type metadata struct {
	sessionID       string
	maxArtifactSize int64
	stateVersion    int64
}

func readMetadata(ctx context.Context, db *sql.DB) (metadata, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return metadata{}, core.WrapError(core.CodePersistLoadFailed, err, "read metadata")
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return metadata{}, core.WrapError(core.CodePersistLoadFailed, err, "scan metadata")
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return metadata{}, core.WrapError(core.CodePersistLoadFailed, err, "read metadata")
	}

	version, ok := raw[metaSchemaVersion]
	if !ok {
		return metadata{}, core.NewError(core.CodePersistLoadFailed, "metadata has no %s", metaSchemaVersion)
	}
	if version != strconv.Itoa(SchemaVersion) {
		return metadata{}, core.NewError(core.CodePersistSchemaMismatch,
			"schema version %s is not supported (expected %d)", version, SchemaVersion).
			WithDetails(map[string]any{"found": version, "expected": SchemaVersion})
	}

	var m metadata
	if m.sessionID = raw[metaSessionID]; m.sessionID == "" {
		return metadata{}, core.NewError(core.CodePersistLoadFailed, "metadata has no %s", metaSessionID)
	}
	if m.maxArtifactSize, err = metaInt(raw, metaMaxArtifactSize); err != nil {
		return metadata{}, err
	}
	if m.stateVersion, err = metaInt(raw, metaStateVersion); err != nil {
		return metadata{}, err
	}
	return m, nil
}

func metaInt(raw map[string]string, key string) (int64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, core.NewError(core.CodePersistLoadFailed, "metadata has no %s", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, core.WrapError(core.CodePersistLoadFailed, err, "metadata %s is not an integer", key)
	}
	return n, nil
}

func readState(ctx context.Context, db *sql.DB) (map[string]any, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value_json FROM state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var k, raw string
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, err
		}
		v, err := core.DecodeValue([]byte(raw))
		if err != nil {
			return nil, core.WrapError(core.CodeStateInvalidValue, err, "state key %q", k)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func readTrajectory(ctx context.Context, db *sql.DB) ([]core.Entry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT seq_num, timestamp, agent_id, entry_type, content_json FROM trajectory ORDER BY seq_num")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		var (
			r       core.EntryRecord
			kind    string
			content string
		)
		if err := rows.Scan(&r.Seq, &r.Timestamp, &r.OriginID, &kind, &content); err != nil {
			return nil, err
		}
		r.Kind = core.EntryKind(kind)
		if r.Content, err = core.DecodePayload([]byte(content)); err != nil {
			return nil, core.WrapError(core.CodeContentInvalidPayload, err, "entry %d", r.Seq)
		}
		e, err := core.EntryFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func readArtifacts(ctx context.Context, db *sql.DB, verify bool) (map[string][]byte, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, encoding, size, digest, data FROM artifacts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			name, enc, digest string
			size              int64
			stored            []byte
		)
		if err := rows.Scan(&name, &enc, &size, &digest, &stored); err != nil {
			return nil, err
		}
		data, err := decodeBlob(stored, Compression(enc), size)
		if err != nil {
			return nil, core.WrapError(core.CodePersistLoadFailed, err, "artifact %q", name)
		}
		if verify && Digest(data) != digest {
			return nil, core.NewError(core.CodePersistLoadFailed, "artifact %q digest mismatch", name).
				WithDetails(map[string]any{"name": name, "expected": digest})
		}
		out[name] = data
	}
	return out, rows.Err()
}
