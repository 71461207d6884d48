package calculator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AllocationRequest is the JSON form of an allocation: who ordered what, the
// receipt figures and an optional free-text instruction (used for the tip
// percentage).
type AllocationRequest struct {
	People      []PersonAssignment `json:"people"`
	SharedItems []SharedItem       `json:"shared_items,omitempty"`
	Receipt     ReceiptAggregate   `json:"receipt"`
	Instruction string             `json:"instruction,omitempty"`
}

// DecodeAllocationRequest parses a request, rejecting unknown fields.
func DecodeAllocationRequest(data []byte) (*AllocationRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var req AllocationRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode allocation request: %w", err)
	}
	if len(req.People) == 0 {
		return nil, fmt.Errorf("allocation request lists no people")
	}
	return &req, nil
}

// Run allocates and validates. Structural problems are returned as errors;
// conservation warnings are attached to the result.
func (r *AllocationRequest) Run() (*BillSplitResult, ValidationReport, error) {
	agg := r.Receipt.WithInstruction(r.Instruction)

	result, err := Allocate(r.People, r.SharedItems, agg)
	if err != nil {
		return nil, ValidationReport{}, err
	}

	report := Validate(result, *result.Receipt)
	if err := report.Err(); err != nil {
		return nil, report, err
	}
	result.Warnings = report.Warnings
	return result, report, nil
}
