package session

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kaizen/core"
)

func populated(t *testing.T, optFns ...func(o *Options)) *Session {
	t.Helper()
	s := newTestSession(t, append([]func(o *Options){WithID("persist-1"), WithMaxArtifactSize(1 << 20)}, optFns...)...)
	st := s.State()
	_, err := st.Set("text", "hello world")
	require.NoError(t, err)
	_, err = st.Set("nested", map[string]any{"list": []any{1, 2.5, "x", nil, true}, "obj": map[string]any{}})
	require.NoError(t, err)
	_, err = st.Set("count", 3)
	require.NoError(t, err)

	require.NoError(t, s.Artifacts().Write("empty.bin", []byte{}))
	require.NoError(t, s.Artifacts().Write("report.txt", bytes.Repeat([]byte("kaizen "), 500)))
	require.NoError(t, s.Artifacts().Write("raw.bin", []byte{0x00, 0xff, 0x10}))

	_, err = s.Append("agent_x", core.KindSystemNote, core.Payload{"note": "ünïcode ✓"})
	require.NoError(t, err)
	return s
}

func assertRoundTrip(t *testing.T, orig, loaded *Session) {
	t.Helper()
	assert.Equal(t, orig.ID(), loaded.ID())
	assert.Equal(t, orig.MaxArtifactSize(), loaded.MaxArtifactSize())
	assert.Equal(t, orig.State().All(), loaded.State().All())
	assert.Equal(t, orig.State().Version(), loaded.State().Version())
	assert.Equal(t, orig.Artifacts().List(), loaded.Artifacts().List())
	for _, name := range orig.Artifacts().List() {
		want, _ := orig.Artifacts().Read(name)
		got, err := loaded.Artifacts().Read(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	oe := orig.Trajectory().Entries()
	le := loaded.Trajectory().Entries()
	require.Len(t, le, len(oe)+1)
	for i := range oe {
		assert.Equal(t, oe[i].Seq(), le[i].Seq())
		assert.Equal(t, oe[i].Kind(), le[i].Kind())
		assert.Equal(t, oe[i].OriginID(), le[i].OriginID())
		assert.Equal(t, oe[i].Payload(), le[i].Payload())
		assert.True(t, oe[i].Timestamp().Equal(le[i].Timestamp()), "entry %d timestamp", i+1)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.kaizen")
	orig := populated(t)

	require.NoError(t, orig.Save(ctx, path))

	last, _ := orig.Trajectory().Last()
	assert.Equal(t, core.KindSessionSaved, last.Kind())
	assert.Equal(t, core.Payload{"path": path}, last.Payload())

	loaded, err := Load(ctx, path, WithClock(fixedClock()))
	require.NoError(t, err)
	assertRoundTrip(t, orig, loaded)

	entries := loaded.Trajectory().Entries()
	n := len(entries)
	assert.Equal(t, core.KindSessionSaved, entries[n-2].Kind())
	assert.Equal(t, core.KindSessionLoaded, entries[n-1].Kind())
	assert.Equal(t, entries[n-2].Seq()+1, entries[n-1].Seq())
}

func TestSaveLoad_URIReservedCharactersInPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"run?1.kaizen", "run#2.kaizen", "50% done.kaizen"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			orig := populated(t)
			require.NoError(t, orig.Save(ctx, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, name, info.Name())

			loaded, err := Load(ctx, path, WithClock(fixedClock()))
			require.NoError(t, err)
			assertRoundTrip(t, orig, loaded)
		})
	}

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestSaveLoad_Compressed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "zstd.kaizen")
	orig := populated(t, WithCompression(CompressionZstd))

	require.NoError(t, orig.Save(ctx, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var enc string
	require.NoError(t, db.QueryRow("SELECT encoding FROM artifacts WHERE name = ?", "report.txt").Scan(&enc))
	assert.Equal(t, string(CompressionZstd), enc)
	require.NoError(t, db.QueryRow("SELECT encoding FROM artifacts WHERE name = ?", "raw.bin").Scan(&enc))
	assert.Equal(t, string(CompressionNone), enc)

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	assertRoundTrip(t, orig, loaded)
}

func TestSaveLoad_SequenceContinuesAcrossCycles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := populated(t)
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, "cycle.kaizen")
		require.NoError(t, s.Save(ctx, path))
		var err error
		s, err = Load(ctx, path)
		require.NoError(t, err)
		_, err = s.State().Set("cycle", i)
		require.NoError(t, err)
	}
	for i, e := range s.Trajectory().Entries() {
		require.Equal(t, int64(i+1), e.Seq())
	}
	assert.Len(t, s.Trajectory().OfKind(core.KindSessionSaved), 3)
	assert.Len(t, s.Trajectory().OfKind(core.KindSessionLoaded), 3)
}

func TestSave_OverwritesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "over.kaizen")

	first := populated(t)
	require.NoError(t, first.Save(ctx, path))

	second := newTestSession(t, WithID("other"))
	_, err := second.State().Set("only", "this")
	require.NoError(t, err)
	require.NoError(t, second.Save(ctx, path))

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "other", loaded.ID())
	assert.Equal(t, map[string]any{"only": "this"}, loaded.State().All())
	assert.Empty(t, loaded.Artifacts().List())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.kaizen"))
	assert.True(t, errors.Is(err, core.ErrFileNotFound))
}

func TestLoad_SchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.kaizen")
	require.NoError(t, populated(t).Save(ctx, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE metadata SET value = ? WHERE key = ?", "2", "schema_version")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path)
	assert.True(t, errors.Is(err, core.ErrSchemaMismatch))
}

func TestLoad_MissingMetadata(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bare.kaizen")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE unrelated (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path)
	assert.True(t, errors.Is(err, core.ErrLoadFailed))
}

func TestLoad_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.kaizen")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite, just some bytes here"), 0o600))

	_, err := Load(context.Background(), path)
	assert.True(t, errors.Is(err, core.ErrLoadFailed))
}

func TestLoad_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tampered.kaizen")
	require.NoError(t, populated(t).Save(ctx, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE artifacts SET data = ? WHERE name = ?", []byte{0x01, 0x02, 0x03}, "raw.bin")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Load(ctx, path)
	assert.True(t, errors.Is(err, core.ErrLoadFailed))

	loaded, err := Load(ctx, path, WithVerifyDigests(false))
	require.NoError(t, err)
	data, _ := loaded.Artifacts().Read("raw.bin")
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
}

func TestSave_FailsForMissingDirectory(t *testing.T) {
	s := populated(t)
	err := s.Save(context.Background(), filepath.Join(t.TempDir(), "no", "such", "dir", "x.kaizen"))
	assert.True(t, errors.Is(err, core.ErrSaveFailed))
}

func TestBlob_ZstdRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("abcdef"), 1000)
	stored, enc := encodeBlob(data, CompressionZstd)
	require.Equal(t, CompressionZstd, enc)
	assert.Less(t, len(stored), len(data))

	back, err := decodeBlob(stored, enc, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = decodeBlob(stored, enc, int64(len(data)-1))
	assert.Error(t, err)
}
