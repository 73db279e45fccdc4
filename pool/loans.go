package pool

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Loan is the single loan slot recorded per borrower address. A second borrow
// before resolution merges additively into the open slot; the record is
// deleted once the outstanding principal reaches zero.
type Loan struct {
	Borrower         common.Address `json:"borrower"`
	AmountBorrowed   *big.Int       `json:"amountBorrowed"`
	CollateralAsset  string         `json:"collateralAsset"`
	CollateralAmount *big.Int       `json:"collateralAmount"`
}

// EnsureDefaults populates nil big.Int fields so JSON handling is safe.
func (l *Loan) EnsureDefaults() {
	if l == nil {
		return
	}
	if l.AmountBorrowed == nil {
		l.AmountBorrowed = big.NewInt(0)
	}
	if l.CollateralAmount == nil {
		l.CollateralAmount = big.NewInt(0)
	}
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{Borrower: l.Borrower, CollateralAsset: l.CollateralAsset}
	if l.AmountBorrowed != nil {
		clone.AmountBorrowed = new(big.Int).Set(l.AmountBorrowed)
	}
	if l.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(l.CollateralAmount)
	}
	return clone
}

// Merge accumulates a further borrow into the open slot. The collateral asset
// must match the recorded one.
func (l *Loan) Merge(notional *big.Int, collateralAsset string, collateralAmount *big.Int) error {
	if l == nil {
		return ErrNoOutstandingDebt
	}
	l.EnsureDefaults()
	if !strings.EqualFold(strings.TrimSpace(collateralAsset), l.CollateralAsset) {
		return ErrCollateralMismatch
	}
	l.AmountBorrowed = new(big.Int).Add(l.AmountBorrowed, orZero(notional))
	l.CollateralAmount = new(big.Int).Add(l.CollateralAmount, orZero(collateralAmount))
	return nil
}

// ReserveTotals is the engine-owned aggregate of outstanding debt, split by
// rate class for pricing snapshots.
type ReserveTotals struct {
	TotalStableDebt   *big.Int `json:"totalStableDebt"`
	TotalVariableDebt *big.Int `json:"totalVariableDebt"`
	// AverageStableBorrowRate is the ray-scaled blended rate of the stable
	// debt book.
	AverageStableBorrowRate *big.Int `json:"averageStableBorrowRate"`
}

// EnsureDefaults populates nil big.Int fields.
func (t *ReserveTotals) EnsureDefaults() {
	if t == nil {
		return
	}
	if t.TotalStableDebt == nil {
		t.TotalStableDebt = big.NewInt(0)
	}
	if t.TotalVariableDebt == nil {
		t.TotalVariableDebt = big.NewInt(0)
	}
	if t.AverageStableBorrowRate == nil {
		t.AverageStableBorrowRate = big.NewInt(0)
	}
}

// Clone returns a deep copy of the totals.
func (t *ReserveTotals) Clone() *ReserveTotals {
	if t == nil {
		return nil
	}
	clone := &ReserveTotals{}
	if t.TotalStableDebt != nil {
		clone.TotalStableDebt = new(big.Int).Set(t.TotalStableDebt)
	}
	if t.TotalVariableDebt != nil {
		clone.TotalVariableDebt = new(big.Int).Set(t.TotalVariableDebt)
	}
	if t.AverageStableBorrowRate != nil {
		clone.AverageStableBorrowRate = new(big.Int).Set(t.AverageStableBorrowRate)
	}
	return clone
}

// TotalDebt is the combined outstanding debt across both rate classes.
func (t *ReserveTotals) TotalDebt() *big.Int {
	if t == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(orZero(t.TotalStableDebt), orZero(t.TotalVariableDebt))
}
