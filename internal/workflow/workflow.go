// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives one reconciliation session through its steps:
// upload both lists, choose the key columns and threshold, then view and
// export the results.
//
// A Controller is owned by its caller and is not safe for concurrent use.
// Servers create one per request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/facility-match/internal/reconcile"
	"github.com/pdiddy/facility-match/internal/tabular"
	"github.com/pdiddy/facility-match/pkg/types"
)

// Step is a position in the session.
type Step int

const (
	StepUpload Step = iota
	StepSelect
	StepResults
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepSelect:
		return "select"
	case StepResults:
		return "results"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an operation is not allowed in the
// current step.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// Selection holds the parameters chosen in the select step.
type Selection struct {
	MasterKey    string  `json:"master_key" yaml:"master_key"`
	CandidateKey string  `json:"candidate_key" yaml:"candidate_key"`
	Threshold    float64 `json:"threshold" yaml:"threshold"`

	// DuplicatesDropped counts master records removed by deduplication.
	DuplicatesDropped int `json:"duplicates_dropped" yaml:"duplicates_dropped"`
}

// Run describes a finished reconciliation.
type Run struct {
	Master     types.Collection
	Candidate  types.Collection
	Selection  Selection
	Results    types.ResultSet
	Summary    types.Summary
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller holds the state of one session.
type Controller struct {
	engine *reconcile.Engine
	cfg    types.MatchConfig
	sheet  string
	log    zerolog.Logger
	now    func() time.Time

	step Step

	// uploaded is the master list as given; master is it after dedup.
	uploaded  types.Collection
	master    types.Collection
	candidate types.Collection
	selected  bool
	selection Selection
	run       Run
}

// New returns a Controller at StepUpload.
func New(cfg types.Config, log zerolog.Logger) *Controller {
	return &Controller{
		engine: reconcile.NewFromConfig(cfg.Match, log),
		cfg:    cfg.Match,
		sheet:  cfg.Output.Sheet,
		log:    log,
		now:    time.Now,
	}
}

// Step reports the current step.
func (c *Controller) Step() Step {
	return c.step
}

func (c *Controller) transition(op string, allowed ...Step) error {
	for _, s := range allowed {
		if c.step == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not allowed in step %s", ErrInvalidTransition, op, c.step)
}

// SetCollections stores both lists and moves to StepSelect. Uploading again
// from StepSelect replaces the lists and clears any selection; from
// StepResults the session must be Reset first.
func (c *Controller) SetCollections(master, candidate types.Collection) error {
	if err := c.transition("upload", StepUpload, StepSelect); err != nil {
		return err
	}
	if len(master.Fields) == 0 {
		return &reconcile.InvalidInputError{Collection: "master", Field: "fields", Message: "master list has no columns"}
	}
	if len(candidate.Fields) == 0 {
		return &reconcile.InvalidInputError{Collection: "candidate", Field: "fields", Message: "candidate list has no columns"}
	}

	c.uploaded, c.master, c.candidate = master, master, candidate
	c.selected = false
	c.selection = Selection{}
	c.step = StepSelect

	c.log.Debug().
		Int("master_records", master.Len()).
		Int("candidate_records", candidate.Len()).
		Msg("collections uploaded")
	return nil
}

// Fields returns the schemas offered for key selection.
func (c *Controller) Fields() (master, candidate []string, err error) {
	if err := c.transition("fields", StepSelect, StepResults); err != nil {
		return nil, nil, err
	}
	return c.master.Fields, c.candidate.Fields, nil
}

// Suggest proposes a key column for each list.
func (c *Controller) Suggest() (masterKey, candidateKey string, err error) {
	if err := c.transition("suggest", StepSelect); err != nil {
		return "", "", err
	}
	return tabular.SuggestKey(c.master), tabular.SuggestKey(c.candidate), nil
}

// Select validates and records the key columns and threshold. When master
// deduplication is enabled the master list is reduced to the first record
// per key. Select may be called repeatedly until Run.
func (c *Controller) Select(masterKey, candidateKey string, threshold float64) error {
	if err := c.transition("select", StepSelect); err != nil {
		return err
	}
	if err := c.engine.Validate(c.uploaded, c.candidate, masterKey, candidateKey, threshold); err != nil {
		return err
	}

	sel := Selection{MasterKey: masterKey, CandidateKey: candidateKey, Threshold: threshold}
	c.master = c.uploaded
	if c.cfg.DedupeMaster {
		deduped, dropped, err := reconcile.DedupeByKey(c.uploaded, masterKey)
		if err != nil {
			return err
		}
		c.master = deduped
		sel.DuplicatesDropped = dropped
		if dropped > 0 {
			c.log.Info().Int("dropped", dropped).Str("key", masterKey).Msg("duplicate master records removed")
		}
	}

	c.selection = sel
	c.selected = true
	return nil
}

// Run reconciles the lists with the current selection and moves to
// StepResults. A cancelled run leaves the controller in StepSelect.
func (c *Controller) Run(ctx context.Context) (Run, error) {
	if err := c.transition("run", StepSelect); err != nil {
		return Run{}, err
	}
	if !c.selected {
		return Run{}, fmt.Errorf("%w: run before select", ErrInvalidTransition)
	}

	started := c.now()
	rs, sum, err := c.engine.Reconcile(ctx, c.master, c.candidate, c.selection.MasterKey, c.selection.CandidateKey, c.selection.Threshold)
	if err != nil {
		return Run{}, err
	}

	c.run = Run{
		Master:     c.master,
		Candidate:  c.candidate,
		Selection:  c.selection,
		Results:    rs,
		Summary:    sum,
		StartedAt:  started,
		FinishedAt: c.now(),
	}
	c.step = StepResults

	c.log.Info().
		Int("rows", sum.Total).
		Int("matched", sum.Matched).
		Str("match_rate", sum.FormatRate()).
		Dur("elapsed", c.run.FinishedAt.Sub(started)).
		Msg("reconciliation complete")
	return c.run, nil
}

// Result returns the last run.
func (c *Controller) Result() (Run, error) {
	if err := c.transition("result", StepResults); err != nil {
		return Run{}, err
	}
	return c.run, nil
}

// Export writes the results in format (csv, tsv, xlsx, json, yaml).
func (c *Controller) Export(w io.Writer, format string) error {
	if err := c.transition("export", StepResults); err != nil {
		return err
	}
	if !tabular.IsOutputFormat(format) {
		return &reconcile.InvalidInputError{Field: "format", Message: fmt.Sprintf("unsupported output format %q", format)}
	}
	return tabular.Write(w, c.run.Results, format, c.sheet)
}

// Back returns from StepResults to StepSelect, keeping the uploaded lists
// and the previous selection.
func (c *Controller) Back() error {
	if err := c.transition("back", StepResults); err != nil {
		return err
	}
	c.run = Run{}
	c.step = StepSelect
	return nil
}

// Reset discards everything and returns to StepUpload. It is allowed from
// any step.
func (c *Controller) Reset() {
	c.step = StepUpload
	c.uploaded = types.Collection{}
	c.master = types.Collection{}
	c.candidate = types.Collection{}
	c.selected = false
	c.selection = Selection{}
	c.run = Run{}
}
