package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/models"
)

type splitDocument struct {
	Items       []models.SplitLine `json:"items"`
	Explanation string             `json:"explanation"`
}

func newValidateCommand() *cobra.Command {
	var file string
	var receiptFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a computed split against the receipt",
		Long: `Reads a split in the {items, explanation} form and checks it. With
--receipt the per-person figures are compared with the receipt subtotal, tax,
fees and tip; without it only internal consistency is checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var doc splitDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing split: %w", err)
			}
			result := models.ResultFromLines(doc.Items, doc.Explanation)

			agg := calculator.ImpliedAggregate(result)
			if receiptFile != "" {
				if agg, err = readReceipt(cmd, receiptFile); err != nil {
					return err
				}
			}

			report := calculator.Validate(result, agg)
			if err := writeJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("split has %d error(s)", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "split JSON file (- for stdin)")
	cmd.Flags().StringVar(&receiptFile, "receipt", "", "receipt figures JSON file")

	return cmd
}

func readReceipt(cmd *cobra.Command, path string) (calculator.ReceiptAggregate, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return calculator.ReceiptAggregate{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var agg calculator.ReceiptAggregate
	if err := dec.Decode(&agg); err != nil {
		return calculator.ReceiptAggregate{}, fmt.Errorf("parsing receipt: %w", err)
	}
	return agg, nil
}
