package ledger

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendpool/core/types"
	"lendpool/storage"
)

var (
	// ErrInsufficientFunds signals a debit beyond the account balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInsufficientShares signals a burn beyond the holder's share balance.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
	// ErrInvalidAmount rejects zero or negative movement.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

var (
	keyShareSupply   = []byte("ledger/shares/supply")
	accountKeyPrefix = "ledger/account/"
)

// Ledger is the asset and share-unit collaborator consumed by the pool
// engine: it owns the per-address balances and the share supply, exposing
// only debit/credit and mint/burn primitives.
type Ledger struct {
	mu sync.Mutex
	db storage.Database
}

// NewLedger wraps the database in the collaborator contract.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr common.Address) []byte {
	return append([]byte(accountKeyPrefix), addr.Bytes()...)
}

// BalanceOf reports the free balance held by addr in asset.
func (l *Ledger) BalanceOf(asset string, addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance(asset), nil
}

// Transfer debits from and credits to atomically. The debit is checked first
// so a failed transfer moves nothing.
func (l *Ledger) Transfer(asset string, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromAcc, err := l.loadAccount(from)
	if err != nil {
		return err
	}
	balance := fromAcc.Balance(asset)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAcc, err := l.loadAccount(to)
	if err != nil {
		return err
	}

	fromAcc.SetBalance(asset, new(big.Int).Sub(balance, amount))
	toAcc.SetBalance(asset, new(big.Int).Add(toAcc.Balance(asset), amount))

	if err := l.persistAccount(from, fromAcc); err != nil {
		return err
	}
	return l.persistAccount(to, toAcc)
}

// Credit mints asset balance out of band, used to seed ledger accounts.
func (l *Ledger) Credit(asset string, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.loadAccount(addr)
	if err != nil {
		return err
	}
	acc.SetBalance(asset, new(big.Int).Add(acc.Balance(asset), amount))
	return l.persistAccount(addr, acc)
}

// TotalShares reports the live share supply.
func (l *Ledger) TotalShares() (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadSupply()
}

// SharesOf reports the share balance held by addr.
func (l *Ledger) SharesOf(addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc.Shares == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.Shares), nil
}

// MintShares issues share units to addr and grows the supply.
func (l *Ledger) MintShares(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.loadAccount(addr)
	if err != nil {
		return err
	}
	supply, err := l.loadSupply()
	if err != nil {
		return err
	}
	acc.Shares = new(big.Int).Add(acc.Shares, amount)
	if err := l.persistAccount(addr, acc); err != nil {
		return err
	}
	return l.persistSupply(new(big.Int).Add(supply, amount))
}

// BurnShares retires share units from addr and shrinks the supply.
func (l *Ledger) BurnShares(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.loadAccount(addr)
	if err != nil {
		return err
	}
	if acc.Shares.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	supply, err := l.loadSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	acc.Shares = new(big.Int).Sub(acc.Shares, amount)
	if err := l.persistAccount(addr, acc); err != nil {
		return err
	}
	return l.persistSupply(new(big.Int).Sub(supply, amount))
}

// Account returns a copy of the stored account for inspection.
func (l *Ledger) Account(addr common.Address) (*types.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

func (l *Ledger) loadAccount(addr common.Address) (*types.Account, error) {
	raw, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		acc := &types.Account{}
		acc.EnsureDefaults()
		return acc, nil
	}
	if err != nil {
		return nil, err
	}
	var acc types.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, err
	}
	acc.EnsureDefaults()
	return &acc, nil
}

func (l *Ledger) persistAccount(addr common.Address, acc *types.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return l.db.Put(accountKey(addr), raw)
}

func (l *Ledger) loadSupply() (*big.Int, error) {
	raw, err := l.db.Get(keyShareSupply)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	supply, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.New("ledger: corrupt share supply record")
	}
	return supply, nil
}

func (l *Ledger) persistSupply(supply *big.Int) error {
	return l.db.Put(keyShareSupply, []byte(supply.String()))
}
