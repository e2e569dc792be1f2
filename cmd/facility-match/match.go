// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/facility-match/internal/report"
	"github.com/pdiddy/facility-match/internal/secrets"
	"github.com/pdiddy/facility-match/internal/tabular"
	"github.com/pdiddy/facility-match/internal/workflow"
	"github.com/pdiddy/facility-match/pkg/types"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Reconcile a master list against a candidate list",
	Long: `Match pairs every master facility with the candidate facility carrying the
same name, or failing that the most similar name by Jaro-Winkler score.
Pairs scoring at or above the threshold are marked Match; the rest are
Unmatch and keep the master name. Candidates no master claimed are listed
at the end.

Sources may be file paths, http(s) URLs, or database DSNs with --<side>-driver.
A value of the form secret:<name> is read from the secrets directory; a
database source with no location uses the master-dsn or candidate-dsn
secret.`,
	Example: `  facility-match match --master mfl.xlsx --candidate dhis2.csv \
    --master-key "Facility Name" --candidate-key name --threshold 85 \
    --output results.xlsx`,
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.String("master", "", "master list (MFL): file, URL, or DSN")
	f.String("candidate", "", "candidate list (DHIS2): file, URL, or DSN")
	f.String("master-key", "", "master field holding facility names (default: suggested)")
	f.String("candidate-key", "", "candidate field holding facility names (default: suggested)")
	f.Float64("threshold", 0, "minimum fuzzy score 0-100 counted as a match (default 80)")
	f.Bool("no-dedupe", false, "keep master records whose key repeats an earlier record")
	f.String("master-prefix", "", "column prefix for master fields (default MFL_)")
	f.String("candidate-prefix", "", "column prefix for candidate fields (default DHIS2_)")
	f.StringP("output", "o", "", "write results to this file")
	f.String("format", "", "output format: csv, tsv, xlsx, json, yaml (default: from --output extension)")
	f.String("sheet", "", "worksheet name for xlsx output (default Results)")
	f.Int("preview", 0, "rows shown in the console preview (default 20, -1 for all)")
	f.Bool("json", false, "print a JSON report instead of the summary and preview")
	addSourceFlags(matchCmd, "master")
	addSourceFlags(matchCmd, "candidate")
	bindMatchFlags()

	rootCmd.AddCommand(matchCmd)
}

// bindMatchFlags ties match flags to their config keys.
func bindMatchFlags() {
	bindFlag(matchCmd, "match.threshold", "threshold")
	bindFlag(matchCmd, "match.master_prefix", "master-prefix")
	bindFlag(matchCmd, "match.candidate_prefix", "candidate-prefix")
	bindFlag(matchCmd, "output.format", "format")
	bindFlag(matchCmd, "output.sheet", "sheet")
	bindFlag(matchCmd, "output.preview_rows", "preview")
}

// addSourceFlags registers the per-side reading options.
func addSourceFlags(cmd *cobra.Command, side string) {
	f := cmd.Flags()
	f.String(side+"-format", "", "override format detection: csv, tsv, xlsx, json, yaml, sqlite")
	f.String(side+"-sheet", "", "xlsx worksheet (default: first sheet)")
	f.String(side+"-delimiter", "", "field delimiter for delimited text")
	f.String(side+"-encoding", "", "text encoding: utf-8, utf-16, windows-1252, iso-8859-1")
	f.String(side+"-driver", "", "database driver: sqlite3, mysql, sqlserver")
	f.String(side+"-table", "", "database table (default: the only table)")
	f.String(side+"-query", "", "SELECT statement used instead of a table")
}

// sourceFromFlags builds the Source for one side, resolving secret
// references and falling back to the side's DSN secret for databases.
func sourceFromFlags(cmd *cobra.Command, side, location, dsnSecret string) (tabular.Source, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(side + "-" + name)
		return v
	}
	src := tabular.Source{
		SourceConfig: types.SourceConfig{
			Format:    get("format"),
			Sheet:     get("sheet"),
			Delimiter: get("delimiter"),
			Encoding:  get("encoding"),
			Driver:    get("driver"),
			Table:     get("table"),
			Query:     get("query"),
		},
	}

	loc, err := loadedSecrets.Resolve(location)
	if err != nil {
		return tabular.Source{}, fmt.Errorf("--%s: %w", side, err)
	}
	if loc == "" && src.Driver != "" {
		loc = loadedSecrets.Get(dsnSecret, "")
	}
	if loc == "" {
		return tabular.Source{}, fmt.Errorf("--%s is required", side)
	}
	src.Location = loc
	if src.Driver != "" || loc != location {
		// Keep DSNs out of logs and reports.
		src.Name = side
	}
	return src, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if noDedupe, _ := cmd.Flags().GetBool("no-dedupe"); noDedupe {
		cfg.Match.DedupeMaster = false
	}

	masterLoc, _ := cmd.Flags().GetString("master")
	candidateLoc, _ := cmd.Flags().GetString("candidate")
	masterSrc, err := sourceFromFlags(cmd, "master", masterLoc, secrets.MasterDSN)
	if err != nil {
		return err
	}
	candidateSrc, err := sourceFromFlags(cmd, "candidate", candidateLoc, secrets.CandidateDSN)
	if err != nil {
		return err
	}

	loader := tabular.NewLoader(nil, cfg.HTTP, logger)
	master, err := loader.Load(ctx, masterSrc)
	if err != nil {
		return fmt.Errorf("loading master list: %w", err)
	}
	candidate, err := loader.Load(ctx, candidateSrc)
	if err != nil {
		return fmt.Errorf("loading candidate list: %w", err)
	}

	ctrl := workflow.New(cfg, logger)
	if err := ctrl.SetCollections(master, candidate); err != nil {
		return err
	}

	masterKey, _ := cmd.Flags().GetString("master-key")
	candidateKey, _ := cmd.Flags().GetString("candidate-key")
	if masterKey == "" || candidateKey == "" {
		mk, ck, err := ctrl.Suggest()
		if err != nil {
			return err
		}
		if masterKey == "" {
			masterKey = mk
			fmt.Fprintf(errOut, "Using master key %q\n", mk)
		}
		if candidateKey == "" {
			candidateKey = ck
			fmt.Fprintf(errOut, "Using candidate key %q\n", ck)
		}
	}

	if err := ctrl.Select(masterKey, candidateKey, cfg.Match.Threshold); err != nil {
		return err
	}
	run, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := tabular.WriteFile(output, run.Results, cfg.Output.Format, cfg.Output.Sheet); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "Wrote %d rows to %s\n", run.Results.Len(), output)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return report.WriteJSON(out, report.New(run))
	}

	report.WriteSummary(out, run)
	fmt.Fprintln(out)
	report.WritePreview(out, run.Results, cfg.Output.PreviewRows)
	return nil
}
