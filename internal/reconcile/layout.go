// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import "github.com/pdiddy/facility-match/pkg/types"

// layout fixes the result columns for one run: both key columns, the three
// derived columns, then the remaining master and candidate fields in schema
// order.
type layout struct {
	columns         []string
	masterFields    []string
	candidateFields []string
}

func newLayout(master, candidate types.Collection, masterKey, candidateKey, mp, cp string) *layout {
	l := &layout{}
	l.columns = append(l.columns,
		mp+masterKey,
		cp+candidateKey,
		ColumnScore,
		ColumnStatus,
		ColumnSuggested,
	)
	for _, f := range master.Fields {
		if f != masterKey {
			l.masterFields = append(l.masterFields, f)
			l.columns = append(l.columns, mp+f)
		}
	}
	for _, f := range candidate.Fields {
		if f != candidateKey {
			l.candidateFields = append(l.candidateFields, f)
			l.columns = append(l.columns, cp+f)
		}
	}
	return l
}

type rowInput struct {
	master       types.Record
	candidate    types.Record
	masterKey    string
	candidateKey string
	hasCandidate bool

	score     float64
	status    types.MatchStatus
	suggested types.Value
	kind      types.MatchKind

	masterIndex    int
	candidateIndex int
}

func (l *layout) row(in rowInput) types.ResultRow {
	vals := make([]types.Value, 0, len(l.columns))

	if in.master != nil {
		vals = append(vals, types.Text(in.masterKey))
	} else {
		vals = append(vals, types.Null())
	}
	if in.hasCandidate {
		vals = append(vals, types.Text(in.candidateKey))
	} else {
		vals = append(vals, types.Null())
	}
	vals = append(vals,
		types.Float(in.score),
		types.Text(string(in.status)),
		in.suggested,
	)
	for _, f := range l.masterFields {
		vals = append(vals, in.master.Get(f))
	}
	for _, f := range l.candidateFields {
		vals = append(vals, in.candidate.Get(f))
	}

	return types.ResultRow{
		Values:         vals,
		Score:          in.score,
		Status:         in.status,
		Suggested:      in.suggested,
		Kind:           in.kind,
		MasterIndex:    in.masterIndex,
		CandidateIndex: in.candidateIndex,
	}
}
