// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/facility-match/internal/workflow"
	"github.com/pdiddy/facility-match/pkg/types"
)

func list(name, field string, values ...string) types.Collection {
	c := types.Collection{Name: name, Fields: []string{field}}
	for _, v := range values {
		c.Records = append(c.Records, types.Record{field: types.Text(v)})
	}
	return c
}

func sampleRun(t *testing.T) workflow.Run {
	t.Helper()
	c := workflow.New(types.DefaultConfig(), zerolog.Nop())
	require.NoError(t, c.SetCollections(
		list("mfl.csv", "name", "Kitale Hospital", "Kisumu County Hospital", "Kisumu County Hospital"),
		list("dhis2.csv", "name", "Kitale Hosp"),
	))
	require.NoError(t, c.Select("name", "name", 80))
	run, err := c.Run(context.Background())
	require.NoError(t, err)
	return run
}

func TestNew(t *testing.T) {
	saved := newID
	newID = func() string { return "run-1" }
	t.Cleanup(func() { newID = saved })

	run := sampleRun(t)
	run.StartedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run.FinishedAt = run.StartedAt.Add(time.Second)

	r := New(run)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, Input{Name: "mfl.csv", Key: "name", Records: 2, Fields: []string{"name"}}, r.Master)
	assert.Equal(t, Input{Name: "dhis2.csv", Key: "name", Records: 1, Fields: []string{"name"}}, r.Candidate)
	assert.Equal(t, 1, r.DuplicatesDropped)
	assert.Equal(t, 80.0, r.Threshold)
	assert.Len(t, r.Rows, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "2026-03-01T09:00:00Z", decoded["started_at"])
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["total"])
	assert.Equal(t, 1.0, summary["matched"])
	assert.Equal(t, 50.0, summary["match_rate"])

	rows := decoded["rows"].([]any)
	first := rows[0].(map[string]any)
	assert.Equal(t, "Kitale Hospital", first["MFL_name"])
	assert.Equal(t, 94.67, first["Match_Score"])
}

func TestNewIDDefault(t *testing.T) {
	run := sampleRun(t)
	a, b := New(run), New(run)
	assert.Len(t, a.RunID, 36)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, sampleRun(t))
	out := buf.String()

	assert.Contains(t, out, `Master:      mfl.csv (2 records, key "name")`)
	assert.Contains(t, out, "Duplicates:  1 master records removed")
	assert.Contains(t, out, "Total rows:  2")
	assert.Contains(t, out, "Matched:     1")
	assert.Contains(t, out, "Unmatched:   1")
	assert.Contains(t, out, "Match rate:  50.0%")
}

func TestWritePreview(t *testing.T) {
	run := sampleRun(t)

	var buf bytes.Buffer
	WritePreview(&buf, run.Results, 1)
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.True(t, strings.HasPrefix(lines[0], "Row   MFL_name"))
	assert.Contains(t, lines[2], "Kitale Hospital")
	assert.Contains(t, lines[2], "94.67")
	assert.Contains(t, lines[2], "Match")
	assert.NotContains(t, out, "Kisumu")
	assert.Contains(t, out, "1 of 2 rows shown")

	buf.Reset()
	WritePreview(&buf, run.Results, 0)
	assert.Contains(t, buf.String(), "Kisumu County Hospital")
	assert.Contains(t, buf.String(), "\n2 rows\n")

	buf.Reset()
	WritePreview(&buf, types.ResultSet{}, 10)
	assert.Equal(t, "No rows.\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Mbagath...", truncate("Mbagathi District Hospital", 10))
	assert.Equal(t, "Hôpital...", truncate("Hôpital Général", 10))
}
