package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/kaizen/internal/testutil"
	"github.com/hupe1980/kaizen/session"
)

func snapshot(t *testing.T) session.Snapshot {
	t.Helper()
	sess := testutil.NewSessionBuilder("export-1").
		State("text", "hello").
		State("nested", map[string]any{"n": 1, "list": []any{true, nil, 2.5}}).
		Artifact("a.txt", []byte("data")).
		Build(t)
	return sess.Snapshot("tester", 10)
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"json", "json", false},
		{"jsonl", "jsonl", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"cbor", "cbor", false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := NewExporter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, e.Extension())
		})
	}
}

func TestJSONExporter(t *testing.T) {
	snap := snapshot(t)
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{Indent: "  "}).Export(snap, &buf))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "export-1", got["session_id"])
	assert.Equal(t, "tester", got["requested_by"])
	assert.EqualValues(t, 2, got["state_version"])
	assert.Equal(t, []any{"a.txt"}, got["artifacts"])

	traj, ok := got["trajectory"].([]any)
	require.True(t, ok)
	first := traj[0].(map[string]any)
	assert.Equal(t, "session_created", first["entry_type"])
	assert.EqualValues(t, 1, first["seq_num"])
}

func TestJSONLExporter(t *testing.T) {
	snap := snapshot(t)
	var buf bytes.Buffer
	require.NoError(t, (&JSONLExporter{}).Export(snap, &buf))

	sc := bufio.NewScanner(&buf)
	lines := 0
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines++
		assert.EqualValues(t, lines, rec["seq_num"])
	}
	assert.Equal(t, len(snap.Trajectory), lines)
}

func TestYAMLExporter(t *testing.T) {
	snap := snapshot(t)
	var buf bytes.Buffer
	require.NoError(t, (&YAMLExporter{}).Export(snap, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "session_id: export-1\n"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	state := got["state"].(map[string]any)
	assert.Equal(t, "hello", state["text"])
}

func TestCBORExporter_Deterministic(t *testing.T) {
	snap := snapshot(t)

	var a, b bytes.Buffer
	require.NoError(t, (&CBORExporter{}).Export(snap, &a))
	require.NoError(t, (&CBORExporter{}).Export(snap, &b))
	assert.Equal(t, a.Bytes(), b.Bytes())

	got, err := DecodeCBOR(&a)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, got.SessionID)
	assert.Equal(t, snap.StateVersion, got.StateVersion)
	assert.Equal(t, snap.Artifacts, got.Artifacts)
	assert.Len(t, got.Trajectory, len(snap.Trajectory))
	assert.Equal(t, "hello", got.State["text"])
}
