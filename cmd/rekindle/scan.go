package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rekindle/internal/output"
)

var (
	scanJSON bool
	scanOut  string
)

var scanCmd = &cobra.Command{
	Use:   "scan <image.rkimg>",
	Short: "List the UI units recovered from an assembly image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, units, err := loadImage(args[0])
		if err != nil {
			return err
		}

		if scanOut != "" {
			return output.WriteUnitsJSON(scanOut, units)
		}

		w := cmd.OutOrStdout()
		if scanJSON {
			entries := make([]output.UnitEntry, len(units))
			for i, u := range units {
				entries[i] = output.EntryForUnit(u)
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		for _, u := range units {
			e := output.EntryForUnit(u)
			fmt.Fprintf(w, "%s\n  type     %s\n  build    %s\n  populate %s\n",
				e.Locator, e.Type, e.Build, e.Populate)
			if e.Override != "" {
				fmt.Fprintf(w, "  override %s\n", e.Override)
			}
			for _, n := range e.Named {
				fmt.Fprintf(w, "  named    %s\n", n)
			}
			for _, r := range e.Refresh {
				fmt.Fprintf(w, "  refresh  %s\n", r)
			}
		}
		fmt.Fprintf(w, "%d unit(s)\n", len(units))
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print units as JSON")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "write units.json into this directory")
	rootCmd.AddCommand(scanCmd)
}
