// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/facility-match/internal/tabular"
)

var columnsCmd = &cobra.Command{
	Use:   "columns <source>",
	Short: "List the fields of a list and the suggested key field",
	Long: `Columns loads one list and prints its fields with their inferred type, the
number of non-empty and distinct values, and a sample value. The field most
likely to hold facility names is marked; match uses it when no key is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runColumns,
}

func init() {
	columnsCmd.Flags().Bool("json", false, "output fields as JSON")
	addSourceFlags(columnsCmd, "source")

	rootCmd.AddCommand(columnsCmd)
}

func runColumns(cmd *cobra.Command, args []string) error {
	src, err := sourceFromFlags(cmd, "source", args[0], "")
	if err != nil {
		return err
	}

	c, err := tabular.NewLoader(nil, cfg.HTTP, logger).Load(context.Background(), src)
	if err != nil {
		return err
	}

	infos := tabular.Columns(c)
	suggested := tabular.SuggestKey(c)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Source    string               `json:"source"`
			Records   int                  `json:"records"`
			Suggested string               `json:"suggested_key"`
			Fields    []tabular.ColumnInfo `json:"fields"`
		}{c.Name, c.Len(), suggested, infos})
	}

	fmt.Fprintf(os.Stdout, "%s: %d records\n\n", c.Name, c.Len())
	fmt.Fprintf(os.Stdout, "%-2s %-32s  %-6s  %8s  %8s  %s\n", "", "Field", "Type", "Non-null", "Distinct", "Sample")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, info := range infos {
		mark := ""
		if info.Name == suggested {
			mark = "*"
		}
		sample := info.Sample
		if len([]rune(sample)) > 30 {
			sample = string([]rune(sample)[:27]) + "..."
		}
		fmt.Fprintf(os.Stdout, "%-2s %-32s  %-6s  %8d  %8d  %s\n", mark, info.Name, info.Kind, info.NonNull, info.Unique, sample)
	}
	if suggested != "" {
		fmt.Fprintf(os.Stdout, "\n* suggested key: %s\n", suggested)
	}
	return nil
}
