// Package splitter defines the capability that turns a receipt image and an
// instruction into a per-person split, with a local implementation backed by
// the calculator.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/receiptsplit/internal/calculator"
)

var (
	// ErrMissingImage is returned when a computer needs an image and none was given.
	ErrMissingImage = errors.New("image URL is required")

	// ErrMissingInstruction is returned for an empty instruction.
	ErrMissingInstruction = errors.New("instruction is required")
)

// Request is the input to a split computation.
type Request struct {
	// ImageURL points at the receipt photo.
	ImageURL string

	// Instruction says who ordered what, in free text or, for the local
	// computer, as an allocation request document.
	Instruction string
}

// Validate checks the fields every computer needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Instruction) == "" {
		return ErrMissingInstruction
	}
	return nil
}

// Computer produces a split for a request.
type Computer interface {
	Compute(ctx context.Context, req Request) (*calculator.BillSplitResult, error)
}

// ComputerFunc adapts a function to Computer.
type ComputerFunc func(ctx context.Context, req Request) (*calculator.BillSplitResult, error)

// Compute calls f.
func (f ComputerFunc) Compute(ctx context.Context, req Request) (*calculator.BillSplitResult, error) {
	return f(ctx, req)
}

// LocalComputer runs the deterministic allocator. The instruction must hold
// an allocation request in JSON; the image is not read.
type LocalComputer struct{}

// NewLocalComputer returns a LocalComputer.
func NewLocalComputer() *LocalComputer {
	return &LocalComputer{}
}

// Compute decodes the instruction, allocates and validates. Conservation
// warnings are attached to the result; structural problems are errors.
func (c *LocalComputer) Compute(ctx context.Context, req Request) (*calculator.BillSplitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocation, err := calculator.DecodeAllocationRequest([]byte(req.Instruction))
	if err != nil {
		return nil, err
	}

	result, _, err := allocation.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to compute split: %w", err)
	}
	return result, nil
}
