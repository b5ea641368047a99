/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Domain packages wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - Out-of-range days, negative amounts, unknown codes
  2. Lookup errors - Missing workers, records, or an unloaded month
  3. State errors - Operations that need a loaded grid

USAGE:
  Domain packages can wrap generic errors:

    if errors.Is(err, generic.ErrInvalidDay) {
        return &ValidationError{Field: "day", ...}
    }

SEE ALSO:
  - attendance/errors.go: Wraps these errors with domain context
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDay is returned when a day-of-month falls outside the month.
	ErrInvalidDay = errors.New("day out of range for month")

	// ErrInvalidMonth is returned when a month number is outside 1..12.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidRange is returned when a day range is inverted.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrNegativeAmount is returned for negative hours or money amounts.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrUnknownStatus is returned for a status code outside the taxonomy.
	ErrUnknownStatus = errors.New("unknown status code")

	// ErrWorkerNotFound is returned when a worker is not part of the loaded grid.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrRecordNotFound is returned when a persisted row does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMonthNotLoaded is returned when an operation needs a loaded grid.
	ErrMonthNotLoaded = errors.New("no month loaded")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDay) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrUnknownStatus)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
