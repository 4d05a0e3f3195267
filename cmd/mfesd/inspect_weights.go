package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yezoli/mfes-go/internal/persist"
)

func newInspectWeightsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "inspect-weights",
		Short: "print a weight snapshot file written by a previous run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectWeights(file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a mfes_weights_<method>.bin snapshot")
	cmd.MarkFlagRequired("file")
	return cmd
}

func inspectWeights(file string) error {
	rows, err := persist.Read(file)
	if err != nil {
		return fmt.Errorf("inspect-weights: %w", err)
	}
	for i, row := range rows {
		fmt.Printf("update %3d: %v\n", i, row)
	}
	return nil
}
