// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// MatchStatus is the decision attached to every result row.
type MatchStatus string

const (
	StatusMatch   MatchStatus = "Match"
	StatusUnmatch MatchStatus = "Unmatch"
)

// MatchKind records which pass produced a row.
type MatchKind string

const (
	KindExact    MatchKind = "exact"
	KindFuzzy    MatchKind = "fuzzy"
	KindResidual MatchKind = "residual"
)

// ResultRow is one reconciled row. Values is aligned with the owning
// ResultSet's Columns; the typed fields repeat the derived cells for
// callers that do not want to look them up by name.
type ResultRow struct {
	Values []Value

	// Score is the similarity on a 0-100 scale, rounded to two decimals.
	Score float64

	// Status is Match or Unmatch.
	Status MatchStatus

	// Suggested is the proposed canonical name; null on residual rows.
	Suggested Value

	// Kind is the pass that emitted the row.
	Kind MatchKind

	// MasterIndex and CandidateIndex point into the input collections;
	// -1 means the side is absent.
	MasterIndex    int
	CandidateIndex int
}

// ResultSet is the ordered output of a reconciliation run.
type ResultSet struct {
	Columns []string
	Rows    []ResultRow
}

// Len returns the number of rows.
func (rs ResultSet) Len() int {
	return len(rs.Rows)
}

// ColumnIndex returns the position of name in Columns, or -1.
func (rs ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i, column name. Unknown columns yield null.
func (rs ResultSet) Value(i int, name string) Value {
	idx := rs.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(rs.Rows) || idx >= len(rs.Rows[i].Values) {
		return Null()
	}
	return rs.Rows[i].Values[idx]
}

// OrderedRow renders one result row as a JSON or YAML object whose keys
// follow the result set's column order.
type OrderedRow struct {
	Columns []string
	Values  []Value
}

// Row returns row i in ordered form.
func (rs ResultSet) Row(i int) OrderedRow {
	return OrderedRow{Columns: rs.Columns, Values: rs.Rows[i].Values}
}

// OrderedRows returns every row in ordered form.
func (rs ResultSet) OrderedRows() []OrderedRow {
	rows := make([]OrderedRow, len(rs.Rows))
	for i := range rs.Rows {
		rows[i] = rs.Row(i)
	}
	return rows
}

// MarshalJSON writes the row as an object with keys in column order.
func (r OrderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var v Value
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding column %s: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the row as a mapping with keys in column order.
func (r OrderedRow) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, c := range r.Columns {
		var v Value
		if i < len(r.Values) {
			v = r.Values[i]
		}
		key := &yaml.Node{}
		if err := key.Encode(c); err != nil {
			return nil, err
		}
		val := &yaml.Node{}
		if err := val.Encode(v.Interface()); err != nil {
			return nil, fmt.Errorf("encoding column %s: %w", c, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// Summary holds the counts reported after a run.
type Summary struct {
	Total     int     `json:"total" yaml:"total"`
	Matched   int     `json:"matched" yaml:"matched"`
	Unmatched int     `json:"unmatched" yaml:"unmatched"`
	MatchRate float64 `json:"match_rate" yaml:"match_rate"`
}

// FormatRate renders the match rate with one decimal place.
func (s Summary) FormatRate() string {
	return fmt.Sprintf("%.1f%%", s.MatchRate)
}
