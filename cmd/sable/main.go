// Package main implements the sable CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sable/internal/diagfmt"
	"sable/internal/driver"
	"sable/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sable",
	Short: "Sable contract compiler",
	Long:  "Sable compiles typed contract units to deterministic stack bytecode\nwith per-function conflict-domain manifests for parallel scheduling.",
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("json", false, "emit diagnostics as JSON")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().Int("jobs", 0, "parallel compilation jobs (0 = all cores)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func colorEnabled(cmd *cobra.Command) bool {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stderr)
	}
}

func driverOptions(cmd *cobra.Command) driver.Options {
	jobs, _ := cmd.Flags().GetInt("jobs")
	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	return driver.Options{Jobs: jobs, MaxDiagnostics: maxDiags}
}

// reportDiagnostics renders the bag to stderr and reports whether errors
// were present.
func reportDiagnostics(cmd *cobra.Command, res *driver.CompileResult) bool {
	res.Bag.Sort()
	res.Bag.Dedup()
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		_ = diagfmt.JSON(os.Stderr, res.Bag, res.Files, diagfmt.JSONOpts{IncludePositions: true})
	} else {
		diagfmt.Pretty(os.Stderr, res.Bag, res.Files, diagfmt.PrettyOpts{
			Color:     colorEnabled(cmd),
			ShowNotes: true,
		})
	}
	return res.Bag.HasErrors()
}
