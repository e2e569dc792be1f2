// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import "github.com/pdiddy/facility-match/pkg/types"

// Summarize counts matched and unmatched rows. MatchRate is
// matched/total*100, or 0 for an empty result.
func Summarize(rs types.ResultSet) types.Summary {
	var s types.Summary
	s.Total = len(rs.Rows)
	for _, r := range rs.Rows {
		if r.Status == types.StatusMatch {
			s.Matched++
		} else {
			s.Unmatched++
		}
	}
	if s.Total > 0 {
		s.MatchRate = float64(s.Matched) / float64(s.Total) * 100
	}
	return s
}

// DedupeByKey returns c with every record whose key string repeats an
// earlier record's removed, and the number of records dropped. The input
// is not modified.
func DedupeByKey(c types.Collection, key string) (types.Collection, int, error) {
	if !c.HasField(key) {
		return types.Collection{}, 0, missingField(c.Name, key, c.Fields)
	}
	out := types.Collection{
		Name:    c.Name,
		Fields:  append([]string(nil), c.Fields...),
		Records: make([]types.Record, 0, len(c.Records)),
	}
	seen := make(map[string]struct{}, len(c.Records))
	for _, r := range c.Records {
		k := r.Get(key).String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Records = append(out.Records, r)
	}
	return out, len(c.Records) - len(out.Records), nil
}
