package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check <unit.json>",
	Short: "Run ownership and domain analysis without emitting an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := driverOptions(cmd)
		opts.CheckOnly = true

		res, err := driver.CompileFile(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if reportDiagnostics(cmd, res) {
			return fmt.Errorf("check failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit %s: ok\n", res.Unit)
		return nil
	},
}
