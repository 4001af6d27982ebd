package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/user/compliance-radar/pkg/engine"
)

var diffCmd = &cobra.Command{
	Use:   "diff <baseline> <current>",
	Short: "Compare two saved reports by finding identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")

		baseline, err := engine.LoadReport(args[0])
		if err != nil {
			return fmt.Errorf("loading baseline: %w", err)
		}
		current, err := engine.LoadReport(args[1])
		if err != nil {
			return fmt.Errorf("loading current report: %w", err)
		}

		d := engine.CompareReports(baseline, current)
		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}
		writeDiff(cmd.OutOrStdout(), d)
		return nil
	},
}

func writeDiff(w io.Writer, d engine.Diff) {
	fmt.Fprintf(w, "\nBASELINE COMPARISON\n")
	fmt.Fprintf(w, "New: %d  Fixed: %d  Unchanged: %d\n", len(d.New), len(d.Fixed), len(d.Unchanged))
	for _, f := range d.New {
		fmt.Fprintf(w, "  + [%s] %s %s %s\n", f.Severity, f.Scanner, f.CheckID, f.Title)
	}
	for _, f := range d.Fixed {
		fmt.Fprintf(w, "  - [%s] %s %s %s\n", f.Severity, f.Scanner, f.CheckID, f.Title)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	diffCmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	rootCmd.AddCommand(diffCmd)
}
