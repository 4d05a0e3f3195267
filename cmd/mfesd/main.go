// Command mfesd drives a multi-fidelity ensemble-surrogate search as a
// standalone process: "run" executes a search against a built-in demo
// objective, "inspect-weights" dumps a previously persisted weight
// snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mfesd",
		Short:         "multi-fidelity ensemble-surrogate hyperparameter search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectWeightsCmd())
	return root
}
