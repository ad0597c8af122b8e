package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice/render"

	"rekindle/internal/output"
	"rekindle/internal/unitgraph"
)

var graphOut string

var graphCmd = &cobra.Command{
	Use:   "graph <image.rkimg>",
	Short: "Render recovered units and their wiring as a DOT graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, units, err := loadImage(args[0])
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return fmt.Errorf("no units recovered from %s", args[0])
		}

		dot := render.DOT(unitgraph.Build(units), "units")
		if graphOut != "" {
			return output.WriteDOT(graphOut, "units", dot)
		}
		fmt.Fprint(cmd.OutOrStdout(), dot)
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphOut, "out", "", "write units.dot into this directory")
	rootCmd.AddCommand(graphCmd)
}
