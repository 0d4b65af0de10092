package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/domain/entity"
)

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJSONLRecorder_FullSession(t *testing.T) {
	dir := t.TempDir()
	r := NewJSONLRecorder(dir)
	defer r.Close()

	id, err := r.CreateSession("find the cheapest flight")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, r.AddStep(id, 1,
		entity.Observation{URL: "https://fly.test/", Title: "Flights"},
		entity.Action{Type: entity.ActionClick, Selector: "#search"},
		entity.ActionOutcome{Success: true},
	))
	require.NoError(t, r.UpdateSession(id, map[string]any{"success": true, "steps": 1}))
	require.NoError(t, r.Close())

	records := readRecords(t, filepath.Join(dir, id+".jsonl"))
	require.Len(t, records, 3)

	assert.Equal(t, "session", records[0]["kind"])
	payload := records[0]["payload"].(map[string]any)
	assert.Equal(t, "find the cheapest flight", payload["goal"])

	assert.Equal(t, "step", records[1]["kind"])
	stepPayload := records[1]["payload"].(map[string]any)
	assert.Equal(t, float64(1), stepPayload["step"])
	assert.Equal(t, "https://fly.test/", stepPayload["url"])

	assert.Equal(t, "update", records[2]["kind"])
	updatePayload := records[2]["payload"].(map[string]any)
	assert.Equal(t, true, updatePayload["success"])
}

func TestJSONLRecorder_UnknownSession(t *testing.T) {
	r := NewJSONLRecorder(t.TempDir())
	defer r.Close()

	err := r.UpdateSession("no-such-id", map[string]any{"success": false})
	assert.Error(t, err)
}

func TestJSONLRecorder_DistinctSessionFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewJSONLRecorder(dir)
	defer r.Close()

	first, err := r.CreateSession("goal one")
	require.NoError(t, err)
	second, err := r.CreateSession("goal two")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
