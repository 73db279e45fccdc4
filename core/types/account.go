package types

import "math/big"

// Account tracks the per-asset balances and share-unit holdings of a single
// address in the pool ledger. Amounts are denominated in the asset's smallest
// unit and kept as big integers to match on-chain precision.
type Account struct {
	// Balances maps asset symbols to free balances.
	Balances map[string]*big.Int `json:"balances"`
	// Shares is the pool share-unit balance representing the proportional
	// claim on pool assets.
	Shares *big.Int `json:"shares"`
}

// EnsureDefaults populates nil fields so JSON handling is safe.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if a.Shares == nil {
		a.Shares = big.NewInt(0)
	}
}

// Balance returns the balance held in asset, zero when absent.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if v, ok := a.Balances[asset]; ok && v != nil {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// SetBalance records the balance held in asset.
func (a *Account) SetBalance(asset string, amount *big.Int) {
	if a == nil {
		return
	}
	a.EnsureDefaults()
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[asset] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{}
	if a.Balances != nil {
		clone.Balances = make(map[string]*big.Int, len(a.Balances))
		for asset, amount := range a.Balances {
			if amount != nil {
				clone.Balances[asset] = new(big.Int).Set(amount)
			}
		}
	}
	if a.Shares != nil {
		clone.Shares = new(big.Int).Set(a.Shares)
	}
	return clone
}
