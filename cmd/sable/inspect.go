package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sable/internal/domains"
	"sable/internal/driver"
	"sable/internal/hir"
	"sable/internal/ssa"
)

var (
	inspectSSA     bool
	inspectDomains bool
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectSSA, "ssa", false, "print only SSA bodies")
	inspectCmd.Flags().BoolVar(&inspectDomains, "domains", false, "print only domain sets")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <unit.json>",
	Short: "Print the compiled intermediate forms of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := driver.CompileFile(cmd.Context(), args[0], driverOptions(cmd))
		if err != nil {
			return err
		}
		if reportDiagnostics(cmd, res) {
			return fmt.Errorf("inspect failed")
		}
		showAll := !inspectSSA && !inspectDomains

		out := cmd.OutOrStdout()
		for id := 1; id < len(res.SSA.Funcs); id++ {
			fn := res.SSA.Funcs[id]
			if fn == nil {
				continue
			}
			printSignature(out, res.HIR.Funcs[id], res.HIR)
			if showAll || inspectDomains {
				printDomains(out, res.Domains.Domains(hir.FuncID(id))) //nolint:gosec // arena index
			}
			if showAll || inspectSSA {
				fmt.Fprint(out, ssa.Print(res.SSA, fn))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func printSignature(w io.Writer, fn *hir.Func, m *hir.Module) {
	var b strings.Builder
	if fn.Flags.HasFlag(hir.FuncPublic) {
		b.WriteString("pub ")
	}
	b.WriteString("fn ")
	b.WriteString(fn.Name)
	b.WriteByte('(')
	for i, id := range fn.ParamIDs() {
		if i > 0 {
			b.WriteString(", ")
		}
		p := fn.Local(id)
		fmt.Fprintf(&b, "%s: %s", p.Name, m.Types.String(p.Type))
	}
	b.WriteByte(')')
	fmt.Fprintf(w, "%s -> %s\n", b.String(), m.Types.String(fn.Result))
}

func printDomains(w io.Writer, fd domains.FuncDomains) {
	render := func(label string, set *domains.Set) {
		keys := set.Sorted()
		if len(keys) == 0 {
			return
		}
		canons := make([]string, 0, len(keys))
		for _, k := range keys {
			canons = append(canons, k.Canon())
		}
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(canons, ", "))
	}
	if fd.Declared {
		fmt.Fprintln(w, "  domains: declared")
	}
	render("reads", fd.Reads)
	render("writes", fd.Writes)
}
