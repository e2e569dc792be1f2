// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"strings"

	"github.com/pdiddy/facility-match/pkg/types"
)

// keyHints are field names that usually hold a facility name, most
// specific first.
var keyHints = []string{
	"facility_name",
	"facility name",
	"hf_name",
	"health facility name",
	"officialname",
	"official_name",
	"organisationunitname",
	"orgunit_name",
	"displayname",
	"name",
}

// SuggestKey returns the field most likely to hold facility names: an exact
// hint match first, then any field containing "name", then the first text
// field. It returns "" for a collection with no fields.
func SuggestKey(c types.Collection) string {
	lower := make(map[string]string, len(c.Fields))
	for _, f := range c.Fields {
		lower[strings.ToLower(strings.TrimSpace(f))] = f
	}
	for _, h := range keyHints {
		if f, ok := lower[h]; ok {
			return f
		}
	}
	for _, f := range c.Fields {
		if strings.Contains(strings.ToLower(f), "name") {
			return f
		}
	}
	for _, f := range c.Fields {
		if isTextField(c, f) {
			return f
		}
	}
	if len(c.Fields) > 0 {
		return c.Fields[0]
	}
	return ""
}

func isTextField(c types.Collection, field string) bool {
	for _, rec := range c.Records {
		if rec[field].Kind() == types.KindText {
			return true
		}
	}
	return false
}

// ColumnInfo profiles one field of a collection.
type ColumnInfo struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	NonNull int    `json:"non_null" yaml:"non_null"`
	Unique  int    `json:"unique" yaml:"unique"`
	Sample  string `json:"sample,omitempty" yaml:"sample,omitempty"`
}

// Columns profiles every field in schema order. Kind is the kind shared by
// all non-null cells, "mixed" when they differ, or "null" when the column
// is empty.
func Columns(c types.Collection) []ColumnInfo {
	infos := make([]ColumnInfo, len(c.Fields))
	for i, f := range c.Fields {
		info := ColumnInfo{Name: f, Kind: types.KindNull.String()}
		seen := make(map[string]bool)
		for _, rec := range c.Records {
			v := rec.Get(f)
			if v.IsNull() {
				continue
			}
			switch {
			case info.NonNull == 0:
				info.Kind = v.Kind().String()
				info.Sample = v.String()
			case info.Kind != v.Kind().String():
				info.Kind = "mixed"
			}
			info.NonNull++
			seen[v.String()] = true
		}
		info.Unique = len(seen)
		infos[i] = info
	}
	return infos
}
