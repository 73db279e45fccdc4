package pool

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"lendpool/core/types"
)

const (
	EventTypeDeposited        = "pool.deposited"
	EventTypeSharesMinted     = "pool.shares_minted"
	EventTypeSharesBurned     = "pool.shares_burned"
	EventTypeWithdrawal       = "pool.withdrawal"
	EventTypeBorrowed         = "pool.borrowed"
	EventTypeRepaid           = "pool.repaid"
	EventTypePaymentCollected = "pool.payment_collected"
	EventTypePauseChanged     = "pool.pause_changed"
)

// NewDepositedEvent returns the canonical payload for a lender deposit.
func NewDepositedEvent(lender common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"lender": lender.Hex(),
			"amount": formatAmount(amount),
		},
	}
}

// NewSharesMintedEvent returns the payload emitted when shares are minted.
func NewSharesMintedEvent(lender common.Address, shares *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSharesMinted,
		Attributes: map[string]string{
			"lender": lender.Hex(),
			"shares": formatAmount(shares),
		},
	}
}

// NewSharesBurnedEvent returns the payload emitted when shares are burned.
func NewSharesBurnedEvent(lender common.Address, shares *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSharesBurned,
		Attributes: map[string]string{
			"lender": lender.Hex(),
			"shares": formatAmount(shares),
		},
	}
}

// NewWithdrawalEvent returns the payload for a lender withdrawal.
func NewWithdrawalEvent(lender common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawal,
		Attributes: map[string]string{
			"lender": lender.Hex(),
			"amount": formatAmount(amount),
		},
	}
}

// NewBorrowedEvent returns the payload emitted when a loan is opened or
// extended.
func NewBorrowedEvent(loan *Loan, notional *big.Int) *types.Event {
	attrs := map[string]string{
		"notional": formatAmount(notional),
	}
	if loan != nil {
		attrs["borrower"] = loan.Borrower.Hex()
		attrs["amountBorrowed"] = formatAmount(loan.AmountBorrowed)
		attrs["collateralAsset"] = loan.CollateralAsset
		attrs["collateralAmount"] = formatAmount(loan.CollateralAmount)
	}
	return &types.Event{Type: EventTypeBorrowed, Attributes: attrs}
}

// NewRepaidEvent returns the payload emitted when debt is repaid. closed is
// true when the loan slot was deleted.
func NewRepaidEvent(borrower common.Address, amount *big.Int, closed bool) *types.Event {
	closedValue := "false"
	if closed {
		closedValue = "true"
	}
	return &types.Event{
		Type: EventTypeRepaid,
		Attributes: map[string]string{
			"borrower": borrower.Hex(),
			"amount":   formatAmount(amount),
			"closed":   closedValue,
		},
	}
}

// NewPaymentCollectedEvent returns the payload for a payment-collection
// reconciliation.
func NewPaymentCollectedEvent(router common.Address, amount, debtUnits *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePaymentCollected,
		Attributes: map[string]string{
			"router":    router.Hex(),
			"amount":    formatAmount(amount),
			"debtUnits": formatAmount(debtUnits),
		},
	}
}

// NewPauseChangedEvent returns the payload for an operator pause toggle.
func NewPauseChangedEvent(paused, wasPaused bool) *types.Event {
	return &types.Event{
		Type: EventTypePauseChanged,
		Attributes: map[string]string{
			"paused":    strconv.FormatBool(paused),
			"wasPaused": strconv.FormatBool(wasPaused),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
