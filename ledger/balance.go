/*
balance.go - Balance and status derivation

PURPOSE:
  The single place where balanceDue and document status are computed
  from total and amountPaid. Pure functions, no I/O, fully
  deterministic. Everything is decimal: repeated partial applications
  must round-trip bit-for-bit, so float64 never appears here.

STATUS RULES:
  PAID            balanceDue == 0 and total > 0
  PARTIALLY_PAID  0 < amountPaid < total
  otherwise       the prior unsettled status (OPEN) is preserved

  This function never invents DRAFT or VOID; those are terminal
  overrides set elsewhere, and the engine must not call the calculator
  for documents in those states.
*/
package ledger

import "github.com/shopspring/decimal"

// ComputeBalance derives balanceDue and status for a settleable
// document. prior is the document's current status and is returned
// unchanged when the amounts imply neither PAID nor PARTIALLY_PAID.
func ComputeBalance(total, amountPaid decimal.Decimal, prior Status) (decimal.Decimal, Status) {
	balanceDue := total.Sub(amountPaid)
	if balanceDue.IsNegative() {
		balanceDue = decimal.Zero
	}

	switch {
	case balanceDue.IsZero() && total.IsPositive():
		return balanceDue, StatusPaid
	case amountPaid.IsPositive() && amountPaid.LessThan(total):
		return balanceDue, StatusPartiallyPaid
	case prior == StatusPaid || prior == StatusPartiallyPaid:
		// Amounts no longer justify a settled status (a reversal
		// brought amountPaid back to zero): fall back to OPEN.
		return balanceDue, StatusOpen
	default:
		return balanceDue, prior
	}
}

// SettledAmount sums the settlement refs on a document. The engine
// keeps AmountPaid equal to this at all times; reversal uses it to
// re-derive state rather than trusting the stored scalar.
func SettledAmount(refs []SettlementRef) decimal.Decimal {
	total := decimal.Zero
	for _, ref := range refs {
		total = total.Add(ref.AmountApplied)
	}
	return total
}
