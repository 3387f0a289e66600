package project

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound indicates the project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
)

// TotalsError rejects a total that would fall below the points already completed.
type TotalsError struct {
	Method    Method
	Completed int64
}

func (e *TotalsError) Error() string {
	return fmt.Sprintf("total points for %s cannot be lower than completed points (%d)", e.Method, e.Completed)
}

// Is makes TotalsError match ErrInvalidInput.
func (e *TotalsError) Is(target error) bool {
	return target == ErrInvalidInput
}
