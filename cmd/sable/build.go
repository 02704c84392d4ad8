package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sable/internal/driver"
	"sable/internal/project"
)

var buildOutDir string

func init() {
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "", "output directory (default: sable.toml out_dir)")
}

var buildCmd = &cobra.Command{
	Use:   "build <unit.json>",
	Short: "Compile a unit to a bytecode artifact and manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := project.Load(args[0])
		if err != nil {
			return err
		}
		opts := driverOptions(cmd)
		opts.Config = cfg

		res, err := driver.CompileFile(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if reportDiagnostics(cmd, res) || !res.OK {
			return fmt.Errorf("build failed")
		}

		outDir := buildOutDir
		if outDir == "" {
			outDir = cfg.Build.OutDir
		}
		artPath, err := res.WriteArtifacts(outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d functions, %d exports)\n",
			artPath, len(res.Artifact.Funcs), len(res.Artifact.Exports))
		return nil
	},
}
