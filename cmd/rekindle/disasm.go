package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rekindle/internal/cil"
	"rekindle/internal/output"
)

var (
	disasmMatch string
	disasmOut   string
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <image.rkimg>",
	Short: "Disassemble method bodies from an assembly image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asm, _, err := loadImage(args[0])
		if err != nil {
			return err
		}

		mod := asm.Module()
		w := cmd.OutOrStdout()
		n := 0
		for _, t := range asm.Types {
			for _, m := range t.Methods {
				if len(m.Body) == 0 {
					continue
				}
				full := m.FullName()
				if disasmMatch != "" && !strings.Contains(full, disasmMatch) {
					continue
				}
				n++
				if disasmOut != "" {
					name := output.ListingName(t.FullName(), m.Name)
					if err := output.WriteIL(disasmOut, name, m.Body, mod); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(w, "%s:\n%s\n", full, cil.Format(m.Body, mod))
			}
		}
		if n == 0 {
			return fmt.Errorf("no method bodies matched")
		}
		if disasmOut != "" {
			fmt.Fprintf(w, "wrote %d listing(s) to %s\n", n, disasmOut)
		}
		return nil
	},
}

func init() {
	disasmCmd.Flags().StringVar(&disasmMatch, "match", "", "only methods whose full name contains this substring")
	disasmCmd.Flags().StringVar(&disasmOut, "out", "", "write per-method .il files into this directory")
	rootCmd.AddCommand(disasmCmd)
}
