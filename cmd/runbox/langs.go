package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/caffeineduck/runbox/executor"
	"github.com/spf13/cobra"
)

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "List known languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return printLanguages(cmd, asJSON)
	},
}

func init() {
	langsCmd.Flags().Bool("json", false, "Print as JSON")
	rootCmd.AddCommand(langsCmd)
}

func printLanguages(cmd *cobra.Command, asJSON bool) error {
	langs := executor.Languages()
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(langs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
	for _, l := range langs {
		status := "unsupported"
		if l.Supported {
			status = "supported (" + l.Strategy + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.ID, l.Name, status)
	}
	return tw.Flush()
}
