package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rekindle/internal/inject"
)

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Report the injection strategy for the configured runtime",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := guestRuntime()
		if err != nil {
			return err
		}
		env := inject.NewEnv(&rt)

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "runtime          %s\n", rt.Version)
		fmt.Fprintf(w, "tiering          %t\n", rt.TieringEnabled)
		fmt.Fprintf(w, "debugger         %t\n", rt.DebuggerAttached())
		fmt.Fprintf(w, "stable entries   %t\n", rt.StableEntries())
		fmt.Fprintf(w, "strategy         %s\n", env.Strategy())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capabilityCmd)
}
