package progress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/fieldlog/internal/domain/project"
)

var (
	// ErrInvalidInput indicates malformed daily progress input.
	ErrInvalidInput = errors.New("invalid daily progress input")
	// ErrInvalidDate indicates a local date that is not a YYYY-MM-DD calendar date.
	ErrInvalidDate = fmt.Errorf("%w: local_date must be a YYYY-MM-DD calendar date", ErrInvalidInput)
	// ErrItemsRequired indicates the items field was absent.
	ErrItemsRequired = fmt.Errorf("%w: field \"items\" is required", ErrInvalidInput)

	// ErrRecordNotFound indicates no report exists for the date.
	ErrRecordNotFound = errors.New("daily progress not found")

	// ErrOutOfRange indicates a local date outside the project window.
	ErrOutOfRange = errors.New("local date outside project window")
	// ErrBeforeStart indicates a local date before the project start date.
	ErrBeforeStart = fmt.Errorf("%w: progress date is before the project start date", ErrOutOfRange)
	// ErrAfterEnd indicates a local date after the project end date.
	ErrAfterEnd = fmt.Errorf("%w: progress date is after the project end date", ErrOutOfRange)

	// ErrConfirmationRequired guards clearing every item of an existing report.
	ErrConfirmationRequired = errors.New("clearing all items requires confirmation (confirm=clear)")

	// ErrBoundsViolation indicates completed points would leave [0, total_points].
	ErrBoundsViolation = errors.New("completed points out of bounds")

	// ErrConflict indicates a concurrent write won the race; the request may be retried.
	ErrConflict = errors.New("daily progress was modified concurrently")
)

// BoundsError lists the methods whose completed points would leave their bounds.
type BoundsError struct {
	Methods []project.Method
}

func (e *BoundsError) Error() string {
	labels := make([]string, len(e.Methods))
	for i, m := range e.Methods {
		labels[i] = m.Label()
	}
	return fmt.Sprintf("%s: %s", ErrBoundsViolation, strings.Join(labels, ", "))
}

// Is makes BoundsError match ErrBoundsViolation.
func (e *BoundsError) Is(target error) bool {
	return target == ErrBoundsViolation
}
