package calculator

import (
	"errors"
	"fmt"
)

// Structural errors. These are never corrected silently.
var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrEmptyName         = errors.New("person name is required")
	ErrEmptySplit        = errors.New("shared item must be split with at least one person")
	ErrDuplicateItem     = errors.New("item is assigned both exclusively and as shared")
	ErrUnknownPerson     = errors.New("reference to unknown person")
	ErrDuplicatePerson   = errors.New("person is listed more than once")
	ErrNothingToAllocate = errors.New("tax, fees or tip present but no subtotal to allocate against")
)

// AllocationError ties a structural error to the person and item involved.
type AllocationError struct {
	Kind   error
	Person string
	Item   string
}

func (e *AllocationError) Error() string {
	switch {
	case e.Person != "" && e.Item != "":
		return fmt.Sprintf("%v: person %q, item %q", e.Kind, e.Person, e.Item)
	case e.Person != "":
		return fmt.Sprintf("%v: person %q", e.Kind, e.Person)
	case e.Item != "":
		return fmt.Sprintf("%v: item %q", e.Kind, e.Item)
	default:
		return e.Kind.Error()
	}
}

func (e *AllocationError) Unwrap() error {
	return e.Kind
}
