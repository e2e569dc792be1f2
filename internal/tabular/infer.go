// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/facility-match/pkg/types"
)

// naTokens are the cell spellings read as missing.
var naTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

type columnType int

const (
	colInt columnType = iota
	colFloat
	colBool
	colText
)

// buildCollection types each column from its raw cells and assembles the
// records. An all-integer column containing a missing cell becomes float,
// a boolean column with a missing cell keeps booleans and nulls, and a
// column mixing numbers with other text keeps every cell as text.
func buildCollection(header []string, rows [][]string) types.Collection {
	fields := uniqueFields(header)
	kinds := make([]columnType, len(fields))
	for j := range fields {
		kinds[j] = inferColumn(rows, j)
	}

	records := make([]types.Record, len(rows))
	for i, row := range rows {
		rec := make(types.Record, len(fields))
		for j, f := range fields {
			raw := ""
			if j < len(row) {
				raw = row[j]
			}
			rec[f] = convertCell(raw, kinds[j])
		}
		records[i] = rec
	}
	return types.Collection{Fields: fields, Records: records}
}

func inferColumn(rows [][]string, j int) columnType {
	hasNA, allInt, allNum, allBool, present := false, true, true, true, false
	for _, row := range rows {
		raw := ""
		if j < len(row) {
			raw = row[j]
		}
		if naTokens[raw] {
			hasNA = true
			continue
		}
		present = true
		s := strings.TrimSpace(raw)
		if _, ok := parseInt(s); !ok {
			allInt = false
		}
		if _, ok := parseFloat(s); !ok {
			allNum = false
		}
		if _, ok := parseBool(s); !ok {
			allBool = false
		}
	}
	switch {
	case !present:
		return colFloat
	case allInt && !hasNA:
		return colInt
	case allNum:
		return colFloat
	case allBool:
		return colBool
	default:
		return colText
	}
}

func convertCell(raw string, kind columnType) types.Value {
	if naTokens[raw] {
		return types.Null()
	}
	s := strings.TrimSpace(raw)
	switch kind {
	case colInt:
		n, _ := parseInt(s)
		return types.Int(n)
	case colFloat:
		f, _ := parseFloat(s)
		return types.Float(f)
	case colBool:
		b, _ := parseBool(s)
		return types.Bool(b)
	default:
		return types.Text(raw)
	}
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xX_pP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

// uniqueFields renames repeated and blank header cells so field names are
// unique: a second "name" becomes "name.1", a blank header "Unnamed: 3".
func uniqueFields(header []string) []string {
	fields := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		base := h
		if strings.TrimSpace(base) == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		name := base
		for used[name] {
			counts[base]++
			name = fmt.Sprintf("%s.%d", base, counts[base])
		}
		used[name] = true
		fields[i] = name
	}
	return fields
}

// harmonize widens integer cells to float in any column that also holds
// floats or nulls, so typed sources stringify keys the same way a
// delimited file with the same contents would.
func harmonize(c types.Collection) {
	for _, f := range c.Fields {
		numeric, widen, ints := true, false, false
		for _, rec := range c.Records {
			switch rec[f].Kind() {
			case types.KindInt:
				ints = true
			case types.KindFloat, types.KindNull:
				widen = true
			default:
				numeric = false
			}
		}
		if !numeric || !widen || !ints {
			continue
		}
		for _, rec := range c.Records {
			if v := rec[f]; v.Kind() == types.KindInt {
				rec[f] = types.Float(float64(v.Interface().(int64)))
			}
		}
	}
}
