// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile matches a master registry against a candidate registry
// by key name and merges both into one result set.
//
// A run has three passes. The exact pass pairs each master record with the
// first candidate whose key string is identical. The fuzzy pass scores the
// remaining master records against every candidate with Jaro-Winkler and
// keeps the best. The residual pass emits every candidate no master row
// claimed.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pdiddy/facility-match/pkg/types"
)

// Result column names shared by every run.
const (
	ColumnScore     = "Match_Score"
	ColumnStatus    = "Match_Status"
	ColumnSuggested = "New_HF_name_in_MFL"
)

const (
	DefaultMasterPrefix    = "MFL_"
	DefaultCandidatePrefix = "DHIS2_"

	exactScore = 100
)

// Engine runs reconciliations. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	masterPrefix    string
	candidatePrefix string
	log             zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrefixes sets the column namespaces for master and candidate fields.
func WithPrefixes(master, candidate string) Option {
	return func(e *Engine) {
		e.masterPrefix = master
		e.candidatePrefix = candidate
	}
}

// WithLogger sets the logger used for per-run debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New returns an Engine using the MFL_/DHIS2_ prefixes unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		masterPrefix:    DefaultMasterPrefix,
		candidatePrefix: DefaultCandidatePrefix,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig returns an Engine configured from cfg.
func NewFromConfig(cfg types.MatchConfig, log zerolog.Logger) *Engine {
	var opts []Option
	if cfg.MasterPrefix != "" || cfg.CandidatePrefix != "" {
		opts = append(opts, WithPrefixes(cfg.MasterPrefix, cfg.CandidatePrefix))
	}
	opts = append(opts, WithLogger(log))
	return New(opts...)
}

// Reconcile runs the matching passes with default settings.
func Reconcile(ctx context.Context, master, candidate types.Collection, masterKey, candidateKey string, threshold float64) (types.ResultSet, types.Summary, error) {
	return New().Reconcile(ctx, master, candidate, masterKey, candidateKey, threshold)
}

// Reconcile matches master against candidate on the given key fields.
//
// Every master record yields exactly one row, in master order. Candidates
// that no master row claimed follow in candidate order. Master records are
// not deduplicated here; see DedupeByKey.
//
// The only errors are *InvalidInputError, returned before any matching,
// and ctx.Err() if ctx is cancelled between master records.
func (e *Engine) Reconcile(ctx context.Context, master, candidate types.Collection, masterKey, candidateKey string, threshold float64) (types.ResultSet, types.Summary, error) {
	if err := e.Validate(master, candidate, masterKey, candidateKey, threshold); err != nil {
		return types.ResultSet{}, types.Summary{}, err
	}

	lay := newLayout(master, candidate, masterKey, candidateKey, e.masterPrefix, e.candidatePrefix)

	candKeys := candidate.Keys(candidateKey)
	candRunes := make([][]rune, len(candKeys))
	firstByKey := make(map[string]int, len(candKeys))
	for i, k := range candKeys {
		candRunes[i] = []rune(k)
		if _, ok := firstByKey[k]; !ok {
			firstByKey[k] = i
		}
	}

	claimed := make([]bool, len(candKeys))
	rows := make([]types.ResultRow, 0, len(master.Records)+len(candidate.Records))
	var sc scorer
	var exact, fuzzy int

	for mi, mrec := range master.Records {
		if err := ctx.Err(); err != nil {
			return types.ResultSet{}, types.Summary{}, err
		}

		key := mrec.Get(masterKey).String()

		if ci, ok := firstByKey[key]; ok {
			claimed[ci] = true
			exact++
			rows = append(rows, lay.row(rowInput{
				master: mrec, candidate: candidate.Records[ci],
				masterKey: key, candidateKey: key, hasCandidate: true,
				score: exactScore, status: types.StatusMatch, suggested: types.Text(key),
				kind: types.KindExact, masterIndex: mi, candidateIndex: ci,
			}))
			continue
		}

		best, bestIdx := 0.0, -1
		keyRunes := []rune(key)
		for ci, cr := range candRunes {
			s := sc.similarity(keyRunes, cr) * 100
			if s > best {
				best, bestIdx = s, ci
			}
		}

		in := rowInput{
			master: mrec, masterKey: key,
			score: round2(best), kind: types.KindFuzzy,
			masterIndex: mi, candidateIndex: bestIdx,
		}
		if bestIdx >= 0 {
			claimed[bestIdx] = true
			in.candidate = candidate.Records[bestIdx]
			in.candidateKey = candKeys[bestIdx]
			in.hasCandidate = true
		}
		if bestIdx >= 0 && best >= threshold {
			in.status = types.StatusMatch
			in.suggested = types.Text(in.candidateKey)
			fuzzy++
		} else {
			in.status = types.StatusUnmatch
			in.suggested = types.Text(key)
		}
		rows = append(rows, lay.row(in))
	}

	residual := 0
	for ci, crec := range candidate.Records {
		if claimed[ci] {
			continue
		}
		residual++
		rows = append(rows, lay.row(rowInput{
			candidate: crec, candidateKey: candKeys[ci], hasCandidate: true,
			score: 0, status: types.StatusUnmatch, suggested: types.Null(),
			kind: types.KindResidual, masterIndex: -1, candidateIndex: ci,
		}))
	}

	rs := types.ResultSet{Columns: lay.columns, Rows: rows}
	summary := Summarize(rs)

	e.log.Debug().
		Str("master", master.Name).
		Str("candidate", candidate.Name).
		Float64("threshold", threshold).
		Int("exact", exact).
		Int("fuzzy_matched", fuzzy).
		Int("residual", residual).
		Int("rows", summary.Total).
		Msg("reconciliation finished")

	return rs, summary, nil
}

// Validate checks the run parameters without matching. It returns the same
// *InvalidInputError Reconcile would.
func (e *Engine) Validate(master, candidate types.Collection, masterKey, candidateKey string, threshold float64) error {
	if !master.HasField(masterKey) {
		return missingField("master", masterKey, master.Fields)
	}
	if !candidate.HasField(candidateKey) {
		return missingField("candidate", candidateKey, candidate.Fields)
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return &InvalidInputError{
			Field:   "threshold",
			Message: fmt.Sprintf("threshold %v outside [0, 100]", threshold),
		}
	}
	if e.masterPrefix == e.candidatePrefix {
		return &InvalidInputError{
			Field:   "prefix",
			Message: fmt.Sprintf("master and candidate prefixes must differ, both are %q", e.masterPrefix),
		}
	}
	return nil
}

// round2 rounds half-to-even on the exact binary value, two decimals.
func round2(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	if err != nil {
		return f
	}
	return r
}
