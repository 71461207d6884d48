package commands

import (
	"github.com/spf13/cobra"

	"github.com/mmynk/receiptsplit/internal/calculator"
)

func newAllocateCommand() *cobra.Command {
	var file string
	var instruction string

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Split a receipt from an allocation request",
		Long: `Reads an allocation request (people, shared items, receipt figures) and
prints each person's share. Conservation problems are printed as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req, err := calculator.DecodeAllocationRequest(data)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("instruction") {
				req.Instruction = instruction
			}

			result, _, err := req.Run()
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "allocation request JSON file (- for stdin)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "free-text instruction, e.g. \"add 18% tip\"")

	return cmd
}
