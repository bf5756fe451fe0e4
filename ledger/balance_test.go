package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openledger/billing-engine/ledger"
)

func TestComputeBalance_FullyPaid(t *testing.T) {
	// GIVEN: total 1000, paid 1000
	// THEN: balance 0, status PAID

	balance, status := ledger.ComputeBalance(
		ledger.MustMoney("1000.00"), ledger.MustMoney("1000.00"), ledger.StatusOpen)

	assert.True(t, balance.IsZero())
	assert.Equal(t, ledger.StatusPaid, status)
}

func TestComputeBalance_PartiallyPaid(t *testing.T) {
	balance, status := ledger.ComputeBalance(
		ledger.MustMoney("1000.00"), ledger.MustMoney("250.50"), ledger.StatusOpen)

	assert.Equal(t, "749.50", balance.StringFixed(2))
	assert.Equal(t, ledger.StatusPartiallyPaid, status)
}

func TestComputeBalance_Unpaid_PreservesPriorStatus(t *testing.T) {
	// GIVEN: nothing paid
	// THEN: the document's prior unsettled status is preserved, the
	// calculator never invents a new state

	balance, status := ledger.ComputeBalance(
		ledger.MustMoney("1000.00"), ledger.MustMoney("0"), ledger.StatusOpen)

	assert.Equal(t, "1000.00", balance.StringFixed(2))
	assert.Equal(t, ledger.StatusOpen, status)
}

func TestComputeBalance_OverpaidClampsToZero(t *testing.T) {
	// Balance due never goes negative, even if amountPaid exceeds
	// total through some historical corruption.

	balance, status := ledger.ComputeBalance(
		ledger.MustMoney("100.00"), ledger.MustMoney("150.00"), ledger.StatusOpen)

	assert.True(t, balance.IsZero())
	assert.Equal(t, ledger.StatusPaid, status)
}

func TestComputeBalance_ZeroTotalIsNeverPaid(t *testing.T) {
	// A zero-total document has nothing to pay; PAID requires
	// total > 0.

	balance, status := ledger.ComputeBalance(
		ledger.MustMoney("0"), ledger.MustMoney("0"), ledger.StatusOpen)

	assert.True(t, balance.IsZero())
	assert.Equal(t, ledger.StatusOpen, status)
}

func TestComputeBalance_ReversalToZeroFallsBackToOpen(t *testing.T) {
	// GIVEN: a previously PARTIALLY_PAID document whose settlements
	// were all reversed
	// THEN: it returns to OPEN, not to a settled status

	_, status := ledger.ComputeBalance(
		ledger.MustMoney("500.00"), ledger.MustMoney("0"), ledger.StatusPartiallyPaid)

	assert.Equal(t, ledger.StatusOpen, status)
}

func TestSettledAmount_SumsRefs(t *testing.T) {
	refs := []ledger.SettlementRef{
		{SourceID: "p1", AmountApplied: ledger.MustMoney("100.10")},
		{SourceID: "p2", AmountApplied: ledger.MustMoney("200.20")},
	}

	assert.Equal(t, "300.30", ledger.SettledAmount(refs).StringFixed(2))
	assert.True(t, ledger.SettledAmount(nil).IsZero())
}
