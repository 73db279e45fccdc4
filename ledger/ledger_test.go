package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendpool/storage"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	from := addr(0x01)
	to := addr(0x02)
	if err := l.Credit("ASSET", from, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := l.Transfer("ASSET", from, to, big.NewInt(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	fromBalance, err := l.BalanceOf("ASSET", from)
	if err != nil {
		t.Fatalf("balance of from: %v", err)
	}
	if fromBalance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("from balance %s, want 300", fromBalance)
	}
	toBalance, err := l.BalanceOf("ASSET", to)
	if err != nil {
		t.Fatalf("balance of to: %v", err)
	}
	if toBalance.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("to balance %s, want 200", toBalance)
	}
}

func TestTransferInsufficientFundsMovesNothing(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	from := addr(0x01)
	to := addr(0x02)
	if err := l.Credit("ASSET", from, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if err := l.Transfer("ASSET", from, to, big.NewInt(200)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	balance, err := l.BalanceOf("ASSET", from)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance %s, want untouched 100", balance)
	}
}

func TestTransferRejectsNonPositive(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	if err := l.Transfer("ASSET", addr(0x01), addr(0x02), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Transfer("ASSET", addr(0x01), addr(0x02), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
}

func TestBalancesPerAssetAreIndependent(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	holder := addr(0x01)
	if err := l.Credit("ASSET", holder, big.NewInt(100)); err != nil {
		t.Fatalf("credit asset: %v", err)
	}
	if err := l.Credit("COLL", holder, big.NewInt(50)); err != nil {
		t.Fatalf("credit collateral: %v", err)
	}

	collBalance, err := l.BalanceOf("COLL", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if collBalance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("collateral balance %s, want 50", collBalance)
	}
	otherBalance, err := l.BalanceOf("OTHER", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if otherBalance.Sign() != 0 {
		t.Fatalf("unseeded asset balance %s, want 0", otherBalance)
	}
}

func TestMintAndBurnSharesTrackSupply(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	holder := addr(0x01)

	if err := l.MintShares(holder, big.NewInt(400)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, err := l.TotalShares()
	if err != nil {
		t.Fatalf("total shares: %v", err)
	}
	if supply.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("supply %s, want 400", supply)
	}

	if err := l.BurnShares(holder, big.NewInt(150)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	held, err := l.SharesOf(holder)
	if err != nil {
		t.Fatalf("shares of: %v", err)
	}
	if held.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("held shares %s, want 250", held)
	}
	supply, err = l.TotalShares()
	if err != nil {
		t.Fatalf("total shares: %v", err)
	}
	if supply.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("supply %s, want 250", supply)
	}
}

func TestBurnBeyondHoldingFails(t *testing.T) {
	l := NewLedger(storage.NewMemDB())
	holder := addr(0x01)
	if err := l.MintShares(holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.BurnShares(holder, big.NewInt(101)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	db := storage.NewMemDB()
	l := NewLedger(db)
	holder := addr(0x01)
	if err := l.Credit("ASSET", holder, big.NewInt(42)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.MintShares(holder, big.NewInt(7)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// A fresh ledger over the same store sees the persisted records.
	reopened := NewLedger(db)
	balance, err := reopened.BalanceOf("ASSET", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("balance %s, want 42", balance)
	}
	supply, err := reopened.TotalShares()
	if err != nil {
		t.Fatalf("total shares: %v", err)
	}
	if supply.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("supply %s, want 7", supply)
	}
}
