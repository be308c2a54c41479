package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/balaji-balu/fusion-deploy/internal/journal"
	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show runs recorded in the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfg.Input("journal")
		if path == "" {
			return errors.New("--journal is required")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		store, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(limit)
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), output, runs)
	},
}

func init() {
	historyCmd.Flags().String("journal", "", "bbolt file the runs were recorded in")
	historyCmd.Flags().Int("limit", 20, "show at most this many runs, 0 for all")
	historyCmd.Flags().StringP("output", "o", "table", "table, json or yaml")
}

func printRuns(w io.Writer, output string, runs []orchestrator.Summary) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "yaml":
		out, err := yaml.Marshal(runs)
		if err != nil {
			return fmt.Errorf("encode runs: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tRUN\tBUNDLE\tOUTCOME\tSTATE\tBASELINE\tNEWEST\tTERMINATED\tDURATION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.StartedAt.Format(time.RFC3339),
				r.RunID,
				r.BundleName,
				r.Outcome,
				r.State,
				dash(string(r.Baseline)),
				dash(string(r.Newest)),
				terminated(r.Termination),
				r.Duration().Round(time.Second))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func terminated(res *orchestrator.TerminationResult) string {
	switch {
	case res == nil:
		return "-"
	case res.Success:
		return string(res.Version)
	default:
		return fmt.Sprintf("%s (failed)", res.Version)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
