package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sable/internal/bytecode"
	"sable/internal/vm"
)

var (
	runGasLimit uint64
	runUnitID   string
	runTxValue  uint64
)

func init() {
	runCmd.Flags().Uint64Var(&runGasLimit, "gas", 1<<24, "gas limit for the invocation")
	runCmd.Flags().StringVar(&runUnitID, "unit", "local", "unit id reported by ctx queries")
	runCmd.Flags().Uint64Var(&runTxValue, "value", 0, "attached transaction value")
}

// parseArg turns a CLI argument into a VM value: decimal or 0x words,
// @text for a buffer.
func parseArg(s string) (vm.Value, error) {
	if rest, ok := strings.CutPrefix(s, "@"); ok {
		return vm.BytesValue([]byte(rest)), nil
	}
	w, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), base(s), 64)
	if err != nil {
		return vm.Value{}, fmt.Errorf("argument %q: expected a word or @text", s)
	}
	return vm.WordValue(w), nil
}

func base(s string) int {
	if strings.HasPrefix(s, "0x") {
		return 16
	}
	return 10
}

func formatValue(v vm.Value) string {
	if v.IsBytes {
		return fmt.Sprintf("%q", string(v.Bytes))
	}
	return strconv.FormatUint(v.Word, 10)
}

var runCmd = &cobra.Command{
	Use:   "run <artifact.sbc> <export> [args...]",
	Short: "Execute an exported function against an in-memory host",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		mod, err := bytecode.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		callArgs := make([]vm.Value, 0, len(args)-2)
		for _, a := range args[2:] {
			v, err := parseArg(a)
			if err != nil {
				return err
			}
			callArgs = append(callArgs, v)
		}

		host := vm.NewMockHost(runUnitID)
		host.Value = runTxValue
		machine, err := vm.New(mod, host, runGasLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		results, err := machine.Call(args[1], callArgs...)
		if err != nil {
			fmt.Fprintf(out, "gas used: %d\n", machine.GasUsed())
			return err
		}

		for i, r := range results {
			fmt.Fprintf(out, "result[%d] = %s\n", i, formatValue(r))
		}
		for _, d := range host.Deltas {
			verb := "write"
			if d.Kind == vm.DeltaDelete {
				verb = "delete"
			}
			fmt.Fprintf(out, "state %s %s:%s\n", verb, d.Namespace, d.Key)
		}
		for _, l := range host.Logs {
			parts := make([]string, 0, len(l.Args))
			for _, a := range l.Args {
				parts = append(parts, formatValue(a))
			}
			fmt.Fprintf(out, "log %s(%s)\n", l.Event, strings.Join(parts, ", "))
		}
		fmt.Fprintf(out, "gas used: %d\n", machine.GasUsed())
		return nil
	},
}
