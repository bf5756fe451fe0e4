/*
errors.go - Centralized error types for the settlement core

PURPOSE:
  All error types in one place. Sentinels anchor errors.Is checks;
  structured types carry the context callers need to build responses.

ERROR CATEGORIES:
  1. Lookup errors     - referenced id absent from its collection
  2. Validation errors - settlement preconditions violated
  3. Integrity errors  - mirrored refs out of sync (corruption)

USAGE:
  if errors.Is(err, ledger.ErrOverApplication) { ... }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) { ... nf.Collection, nf.ID ... }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced id is absent from its
	// collection.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCredit is returned when a source cannot cover the
	// requested application total.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrOverApplication is returned when an application exceeds a
	// target's balance due, or is not positive.
	ErrOverApplication = errors.New("over-application")

	// ErrInvalidTargetState is returned when the target is VOID, DRAFT,
	// or already fully paid.
	ErrInvalidTargetState = errors.New("invalid target state")

	// ErrReversalMismatch is returned when a reversal finds a
	// settlement ref whose source-side mirror is missing. This
	// indicates corrupted cross-links; the operation aborts with data
	// left untouched.
	ErrReversalMismatch = errors.New("reversal mismatch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports a missing id and which collection was searched.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: id %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientCreditError reports a source shortfall for a batch.
type InsufficientCreditError struct {
	SourceID  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("source %s cannot cover application: available %s, requested %s",
		e.SourceID, e.Available, e.Requested)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// OverApplicationError reports an application exceeding a target's
// balance due (or a non-positive amount).
type OverApplicationError struct {
	DocumentID string
	BalanceDue decimal.Decimal
	Requested  decimal.Decimal
}

func (e *OverApplicationError) Error() string {
	return fmt.Sprintf("document %s: cannot apply %s against balance due %s",
		e.DocumentID, e.Requested, e.BalanceDue)
}

func (e *OverApplicationError) Unwrap() error { return ErrOverApplication }

// InvalidTargetStateError reports a target that cannot accept
// settlements in its current state.
type InvalidTargetStateError struct {
	DocumentID string
	Status     Status
}

func (e *InvalidTargetStateError) Error() string {
	return fmt.Sprintf("document %s is %s and cannot accept settlements", e.DocumentID, e.Status)
}

func (e *InvalidTargetStateError) Unwrap() error { return ErrInvalidTargetState }

// ReversalMismatchError reports a target-side settlement ref with no
// source-side mirror.
type ReversalMismatchError struct {
	DocumentID string
	SourceID   string
}

func (e *ReversalMismatchError) Error() string {
	return fmt.Sprintf("settlement %s -> %s has no mirrored applied ref on the source",
		e.SourceID, e.DocumentID)
}

func (e *ReversalMismatchError) Unwrap() error { return ErrReversalMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error rejects client input rather
// than signaling a store or integrity failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrOverApplication) ||
		errors.Is(err, ErrInvalidTargetState)
}

// IsNotFound returns true if the error indicates a missing id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
