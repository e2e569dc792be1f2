// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders reconciliation runs for people and for machines:
// a text summary, a bounded preview table, and a JSON report document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/facility-match/internal/reconcile"
	"github.com/pdiddy/facility-match/internal/workflow"
	"github.com/pdiddy/facility-match/pkg/types"
)

// newID generates run identifiers. Tests replace it for stable output.
var newID = uuid.NewString

// Input describes one side of a run.
type Input struct {
	Name    string   `json:"name"`
	Key     string   `json:"key"`
	Records int      `json:"records"`
	Fields  []string `json:"fields"`
}

// Report is the JSON document produced for a run.
type Report struct {
	RunID             string             `json:"run_id"`
	StartedAt         time.Time          `json:"started_at"`
	FinishedAt        time.Time          `json:"finished_at"`
	Master            Input              `json:"master"`
	Candidate         Input              `json:"candidate"`
	Threshold         float64            `json:"threshold"`
	DuplicatesDropped int                `json:"duplicates_dropped"`
	Summary           types.Summary      `json:"summary"`
	Columns           []string           `json:"columns"`
	Rows              []types.OrderedRow `json:"rows"`
}

// New builds the report for run with a fresh run ID.
func New(run workflow.Run) Report {
	return Report{
		RunID:      newID(),
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		Master: Input{
			Name:    run.Master.Name,
			Key:     run.Selection.MasterKey,
			Records: run.Master.Len(),
			Fields:  run.Master.Fields,
		},
		Candidate: Input{
			Name:    run.Candidate.Name,
			Key:     run.Selection.CandidateKey,
			Records: run.Candidate.Len(),
			Fields:  run.Candidate.Fields,
		},
		Threshold:         run.Selection.Threshold,
		DuplicatesDropped: run.Selection.DuplicatesDropped,
		Summary:           run.Summary,
		Columns:           run.Results.Columns,
		Rows:              run.Results.OrderedRows(),
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteSummary writes the counts block shown after a run.
func WriteSummary(w io.Writer, run workflow.Run) {
	s := run.Summary
	fmt.Fprintf(w, "Master:      %s (%d records, key %q)\n", run.Master.Name, run.Master.Len(), run.Selection.MasterKey)
	fmt.Fprintf(w, "Candidate:   %s (%d records, key %q)\n", run.Candidate.Name, run.Candidate.Len(), run.Selection.CandidateKey)
	fmt.Fprintf(w, "Threshold:   %g\n", run.Selection.Threshold)
	if run.Selection.DuplicatesDropped > 0 {
		fmt.Fprintf(w, "Duplicates:  %d master records removed\n", run.Selection.DuplicatesDropped)
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Total rows:  %d\n", s.Total)
	fmt.Fprintf(w, "Matched:     %d\n", s.Matched)
	fmt.Fprintf(w, "Unmatched:   %d\n", s.Unmatched)
	fmt.Fprintf(w, "Match rate:  %s\n", s.FormatRate())
}

// WritePreview writes up to limit result rows as a table of the key,
// score, status, and suggested-name columns. A limit of 0 or less writes
// every row.
func WritePreview(w io.Writer, rs types.ResultSet, limit int) {
	if rs.Len() == 0 {
		fmt.Fprintln(w, "No rows.")
		return
	}
	if len(rs.Columns) < 2 {
		return
	}
	masterCol, candCol := rs.Columns[0], rs.Columns[1]

	fmt.Fprintf(w, "%-4s  %-32s  %-32s  %6s  %-7s  %s\n",
		"Row", truncate(masterCol, 32), truncate(candCol, 32), "Score", "Status", "Suggested")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	n := rs.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		row := rs.Rows[i]
		fmt.Fprintf(w, "%-4d  %-32s  %-32s  %6.2f  %-7s  %s\n",
			i+1,
			truncate(cellText(rs.Value(i, masterCol)), 32),
			truncate(cellText(rs.Value(i, candCol)), 32),
			row.Score,
			row.Status,
			truncate(cellText(rs.Value(i, reconcile.ColumnSuggested)), 32))
	}

	if n < rs.Len() {
		fmt.Fprintf(w, "\n%d of %d rows shown\n", n, rs.Len())
	} else {
		fmt.Fprintf(w, "\n%d rows\n", n)
	}
}

func cellText(v types.Value) string {
	if v.IsNull() {
		return ""
	}
	return v.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
