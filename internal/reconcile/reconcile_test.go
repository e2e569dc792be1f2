// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/facility-match/pkg/types"
)

// --- test helpers ---

func names(field string, values ...string) types.Collection {
	c := types.Collection{Fields: []string{field}}
	for _, v := range values {
		c.Records = append(c.Records, types.Record{field: types.Text(v)})
	}
	return c
}

func run(t *testing.T, master, candidate types.Collection, threshold float64) (types.ResultSet, types.Summary) {
	t.Helper()
	rs, sum, err := Reconcile(context.Background(), master, candidate, master.Fields[0], candidate.Fields[0], threshold)
	require.NoError(t, err)
	return rs, sum
}

func cell(rs types.ResultSet, row int, col string) types.Value {
	return rs.Value(row, col)
}

// --- scenarios ---

func TestReconcilePrefixSharingPair(t *testing.T) {
	rs, sum := run(t, names("name", "Kitale Hospital"), names("name", "Kitale Hosp"), 70)

	require.Equal(t, 1, rs.Len())
	row := rs.Rows[0]
	assert.Equal(t, 94.67, row.Score)
	assert.Equal(t, types.StatusMatch, row.Status)
	assert.Equal(t, types.KindFuzzy, row.Kind)
	assert.Equal(t, "Kitale Hosp", row.Suggested.String())
	assert.Equal(t, "Kitale Hospital", cell(rs, 0, "MFL_name").String())
	assert.Equal(t, "Kitale Hosp", cell(rs, 0, "DHIS2_name").String())
	assert.Equal(t, types.Summary{Total: 1, Matched: 1, MatchRate: 100}, sum)
}

func TestReconcileEmptyCandidate(t *testing.T) {
	rs, sum := run(t, names("name", "A"), names("name"), 50)

	require.Equal(t, 1, rs.Len())
	row := rs.Rows[0]
	assert.Equal(t, 0.0, row.Score)
	assert.Equal(t, types.StatusUnmatch, row.Status)
	assert.Equal(t, "A", row.Suggested.String())
	assert.Equal(t, -1, row.CandidateIndex)
	assert.True(t, cell(rs, 0, "DHIS2_name").IsNull())
	assert.Equal(t, types.Summary{Total: 1, Unmatched: 1}, sum)
}

func TestReconcileEmptyMaster(t *testing.T) {
	rs, sum := run(t, names("name"), names("name", "X"), 50)

	require.Equal(t, 1, rs.Len())
	row := rs.Rows[0]
	assert.Equal(t, types.KindResidual, row.Kind)
	assert.Equal(t, 0.0, row.Score)
	assert.Equal(t, types.StatusUnmatch, row.Status)
	assert.True(t, row.Suggested.IsNull())
	assert.True(t, cell(rs, 0, "MFL_name").IsNull())
	assert.Equal(t, "X", cell(rs, 0, "DHIS2_name").String())
	assert.Equal(t, -1, row.MasterIndex)
	assert.Equal(t, 0.0, sum.MatchRate)
}

func TestReconcileBothEmpty(t *testing.T) {
	rs, sum := run(t, names("name"), names("name"), 50)
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, types.Summary{}, sum)
	assert.Len(t, rs.Columns, 5)
}

func TestReconcileExactMatchIgnoresThreshold(t *testing.T) {
	for _, threshold := range []float64{0, 50, 100} {
		rs, _ := run(t, names("name", "Kitale Hospital"), names("name", "Kitale Hosp", "Kitale Hospital"), threshold)
		require.Equal(t, 2, rs.Len())
		row := rs.Rows[0]
		assert.Equal(t, 100.0, row.Score)
		assert.Equal(t, types.StatusMatch, row.Status)
		assert.Equal(t, types.KindExact, row.Kind)
		assert.Equal(t, 1, row.CandidateIndex)
		assert.Equal(t, "Kitale Hospital", row.Suggested.String())

		// The unclaimed candidate is a residual row.
		assert.Equal(t, types.KindResidual, rs.Rows[1].Kind)
		assert.Equal(t, 0, rs.Rows[1].CandidateIndex)
	}
}

func TestReconcileThresholdBoundary(t *testing.T) {
	s := JaroWinkler("CRATE", "TRACE") * 100

	tests := []struct {
		name      string
		threshold float64
		status    types.MatchStatus
		suggested string
	}{
		{"equal to score", s, types.StatusMatch, "TRACE"},
		{"just below score", math.Nextafter(s, 0), types.StatusMatch, "TRACE"},
		{"just above score", math.Nextafter(s, 100), types.StatusUnmatch, "CRATE"},
		{"rounded score is compared unrounded", 73.34, types.StatusUnmatch, "CRATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, _ := run(t, names("name", "CRATE"), names("name", "TRACE"), tt.threshold)
			require.Equal(t, 1, rs.Len())
			assert.Equal(t, 73.33, rs.Rows[0].Score)
			assert.Equal(t, tt.status, rs.Rows[0].Status)
			assert.Equal(t, tt.suggested, rs.Rows[0].Suggested.String())
		})
	}
}

func TestReconcileUnmatchKeepsBestPartner(t *testing.T) {
	rs, sum := run(t, names("name", "Kisumu County Hospital"), names("name", "Machakos Level 5"), 90)

	require.Equal(t, 1, rs.Len(), "a below-threshold best partner is not re-emitted")
	row := rs.Rows[0]
	assert.Equal(t, 37.99, row.Score)
	assert.Equal(t, types.StatusUnmatch, row.Status)
	assert.Equal(t, "Kisumu County Hospital", row.Suggested.String())
	assert.Equal(t, "Machakos Level 5", cell(rs, 0, "DHIS2_name").String())
	assert.Equal(t, 1, sum.Unmatched)
}

func TestReconcileZeroScoreDoesNotAttach(t *testing.T) {
	rs, _ := run(t,
		names("name", "Kitale Hospital", "Zzz"),
		names("name", "Kitale Hospital", "Mbagathi Hospital", "Qqq"),
		80,
	)

	require.Equal(t, 4, rs.Len())
	assert.Equal(t, types.KindExact, rs.Rows[0].Kind)

	zzz := rs.Rows[1]
	assert.Equal(t, 0.0, zzz.Score)
	assert.Equal(t, -1, zzz.CandidateIndex)
	assert.True(t, cell(rs, 1, "DHIS2_name").IsNull())
	assert.Equal(t, "Zzz", zzz.Suggested.String())

	assert.Equal(t, "Mbagathi Hospital", cell(rs, 2, "DHIS2_name").String())
	assert.Equal(t, "Qqq", cell(rs, 3, "DHIS2_name").String())
}

func TestReconcileTieGoesToFirstCandidate(t *testing.T) {
	candidate := types.Collection{Fields: []string{"name", "code"}}
	candidate.Records = []types.Record{
		{"name": types.Text("Kitale Hosp"), "code": types.Int(1)},
		{"name": types.Text("Kitale Hosp"), "code": types.Int(2)},
	}
	rs, _, err := Reconcile(context.Background(), names("name", "Kitale Hospital"), candidate, "name", "name", 70)
	require.NoError(t, err)

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, int64(1), cell(rs, 0, "DHIS2_code").Interface())
	assert.Equal(t, 0, rs.Rows[0].CandidateIndex)

	// The duplicate-valued candidate was never claimed, so it is kept.
	assert.Equal(t, types.KindResidual, rs.Rows[1].Kind)
	assert.Equal(t, int64(2), cell(rs, 1, "DHIS2_code").Interface())
}

func TestReconcileDuplicateCandidateKeys(t *testing.T) {
	rs, sum := run(t, names("name", "A", "A"), names("name", "A", "A"), 80)

	require.Equal(t, 3, rs.Len())
	assert.Equal(t, 0, rs.Rows[0].CandidateIndex)
	assert.Equal(t, 0, rs.Rows[1].CandidateIndex)
	assert.Equal(t, types.KindResidual, rs.Rows[2].Kind)
	assert.Equal(t, 1, rs.Rows[2].CandidateIndex)
	assert.Equal(t, 2, sum.Matched)
}

func TestReconcileCompleteness(t *testing.T) {
	master := names("name", "Kitale Hospital", "Nairobi West", "Mbagathi District Hospital", "Thika Level 5 Hospital")
	candidate := names("name", "Kitale Hospital", "Nairobi West Hospital", "Mbagathi Hospital", "Machakos Level 5", "Kisumu County Hospital")

	rs, sum := run(t, master, candidate, 85)

	claimed := map[int]bool{}
	for _, r := range rs.Rows[:master.Len()] {
		if r.CandidateIndex >= 0 {
			claimed[r.CandidateIndex] = true
		}
	}
	assert.Equal(t, master.Len()+candidate.Len()-len(claimed), rs.Len())

	seen := map[int]int{}
	for _, r := range rs.Rows {
		if r.MasterIndex >= 0 {
			seen[r.MasterIndex]++
		}
	}
	for i := range master.Records {
		assert.Equal(t, 1, seen[i], "master %d", i)
	}
	for i := range candidate.Records {
		appearances := 0
		for _, r := range rs.Rows {
			if r.CandidateIndex == i {
				appearances++
			}
		}
		assert.GreaterOrEqual(t, appearances, 1, "candidate %d dropped", i)
	}
	assert.Equal(t, sum.Matched+sum.Unmatched, sum.Total)
}

func TestReconcileColumnLayout(t *testing.T) {
	master := types.Collection{
		Fields:  []string{"county", "name", "beds"},
		Records: []types.Record{{"county": types.Text("Trans Nzoia"), "name": types.Text("Kitale Hospital"), "beds": types.Int(120)}},
	}
	candidate := types.Collection{
		Fields:  []string{"orgunit", "facility"},
		Records: []types.Record{{"orgunit": types.Text("ou1"), "facility": types.Text("Kitale Hospital")}},
	}
	rs, _, err := Reconcile(context.Background(), master, candidate, "name", "facility", 80)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"MFL_name", "DHIS2_facility", "Match_Score", "Match_Status", "New_HF_name_in_MFL",
		"MFL_county", "MFL_beds", "DHIS2_orgunit",
	}, rs.Columns)
	require.Len(t, rs.Rows[0].Values, len(rs.Columns))
	assert.Equal(t, int64(120), cell(rs, 0, "MFL_beds").Interface())
	assert.Equal(t, "ou1", cell(rs, 0, "DHIS2_orgunit").String())
}

func TestReconcileCustomPrefixes(t *testing.T) {
	e := New(WithPrefixes("ref.", "src."))
	rs, _, err := e.Reconcile(context.Background(), names("n", "A"), names("n", "A"), "n", "n", 80)
	require.NoError(t, err)
	assert.Equal(t, "ref.n", rs.Columns[0])
	assert.Equal(t, "src.n", rs.Columns[1])

	_, _, err = New(WithPrefixes("x", "x")).Reconcile(context.Background(), names("n", "A"), names("n", "A"), "n", "n", 80)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReconcileCoercesKeys(t *testing.T) {
	master := types.Collection{Fields: []string{"k"}, Records: []types.Record{
		{"k": types.Int(12)},
		{"k": types.Float(7)},
		{"k": types.Null()},
		{"k": types.Bool(true)},
	}}
	candidate := names("k", "12", "7.0", "nan", "True")

	rs, sum := run(t, master, candidate, 100)
	require.Equal(t, 4, rs.Len())
	for i, r := range rs.Rows {
		assert.Equal(t, types.KindExact, r.Kind, "row %d", i)
		assert.Equal(t, i, r.CandidateIndex)
	}
	assert.Equal(t, 4, sum.Matched)
}

func TestReconcileDeterministic(t *testing.T) {
	master := names("name", "Kitale Hospital", "Nairobi West", "Kenyatta National Hospital")
	candidate := names("name", "Kenyatta Hosp", "Nairobi West Hospital", "Kitale Hosp")

	rs1, s1 := run(t, master, candidate, 85)
	rs2, s2 := run(t, master, candidate, 85)
	assert.Equal(t, rs1, rs2)
	assert.Equal(t, s1, s2)
}

func TestReconcileDoesNotModifyInputs(t *testing.T) {
	master := names("name", "Kitale Hospital")
	candidate := names("name", "Kitale Hosp")
	_, _ = run(t, master, candidate, 70)
	assert.Equal(t, names("name", "Kitale Hospital"), master)
	assert.Equal(t, names("name", "Kitale Hosp"), candidate)
}

// --- validation ---

func TestReconcileInvalidInput(t *testing.T) {
	master := types.Collection{Fields: []string{"Facility_Name"}}
	candidate := names("name", "X")

	tests := []struct {
		name         string
		masterKey    string
		candidateKey string
		threshold    float64
		wantField    string
		wantSuggest  string
	}{
		{"missing master key", "facility name", "name", 80, "facility name", "Facility_Name"},
		{"missing candidate key", "Facility_Name", "facility", 80, "facility", ""},
		{"threshold above range", "Facility_Name", "name", 101, "threshold", ""},
		{"threshold below range", "Facility_Name", "name", -0.5, "threshold", ""},
		{"threshold NaN", "Facility_Name", "name", math.NaN(), "threshold", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Reconcile(context.Background(), master, candidate, tt.masterKey, tt.candidateKey, tt.threshold)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)

			var ie *InvalidInputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.wantField, ie.Field)
			assert.Equal(t, tt.wantSuggest, ie.Suggestion)
		})
	}
}

func TestInvalidInputErrorMessage(t *testing.T) {
	err := missingField("master", "facility name", []string{"Facility_Name", "County"})
	assert.Equal(t, `invalid input: master collection: field "facility name" not found (did you mean "Facility_Name"?)`, err.Error())
}

func TestReconcileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Reconcile(ctx, names("name", "A"), names("name", "B"), "name", "name", 80)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- summary and helpers ---

func TestSummarize(t *testing.T) {
	rs := types.ResultSet{Rows: []types.ResultRow{
		{Status: types.StatusMatch},
		{Status: types.StatusUnmatch},
		{Status: types.StatusUnmatch},
	}}
	s := Summarize(rs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 2, s.Unmatched)
	assert.Equal(t, float64(1)/float64(3)*100, s.MatchRate)
	assert.Equal(t, "33.3%", s.FormatRate())

	empty := Summarize(types.ResultSet{})
	assert.Equal(t, 0.0, empty.MatchRate)
	assert.Equal(t, "0.0%", empty.FormatRate())
}

func TestDedupeByKey(t *testing.T) {
	c := types.Collection{Name: "mfl", Fields: []string{"name", "code"}, Records: []types.Record{
		{"name": types.Text("A"), "code": types.Int(1)},
		{"name": types.Text("B"), "code": types.Int(2)},
		{"name": types.Text("A"), "code": types.Int(3)},
		{"name": types.Null(), "code": types.Int(4)},
		{"code": types.Int(5)},
	}}

	out, dropped, err := DedupeByKey(c, "name")
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, out.Records, 3)
	assert.Equal(t, int64(1), out.Records[0]["code"].Interface())
	assert.Equal(t, int64(2), out.Records[1]["code"].Interface())
	assert.Equal(t, int64(4), out.Records[2]["code"].Interface())
	assert.Len(t, c.Records, 5)

	_, _, err = DedupeByKey(c, "missing")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{94.66666666666667, 94.67},
		{73.33333333333334, 73.33},
		{0.125, 0.12},
		{2.675, 2.67},
		{100, 100},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round2(tt.in), "round2(%v)", tt.in)
	}
}
