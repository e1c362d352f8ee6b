package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/advisory"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List advisory tier presets",
	Long:  `Display every tier preset with its brackets.`,
	Args:  cobra.NoArgs,
	RunE:  runPresets,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func runPresets(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	for _, t := range advisory.Presets() {
		name := t.Name
		if t.Deprecated {
			name += " (deprecated)"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, t.Description)
		for _, tier := range t.Tiers {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", tier.Level, tier.Range, tier.Label, tier.Color)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
