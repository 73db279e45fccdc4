package pool

import "math/big"

// Share conversions value claims against the live pool balance. Rounding
// always favours the protocol: deposits floor the minted shares, withdrawals
// round the burned shares up, so a deposit/withdraw round trip can never
// extract value from the reserve.

// SharesForDeposit converts a deposit amount into share units at the current
// exchange rate. The first deposit into an empty pool bootstraps 1:1.
func SharesForDeposit(amount, totalShares, totalAssets *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if totalAssets == nil || totalAssets.Sign() == 0 {
		// Shares exist but the reserve is empty; a deposit cannot be
		// valued against a zero balance.
		return nil, ErrInsufficientLiquidity
	}
	return mulDivFloor(amount, totalShares, totalAssets), nil
}

// AssetsForShares values a share amount in underlying assets, flooring in the
// protocol's favour.
func AssetsForShares(shareAmount, totalShares, totalAssets *big.Int) *big.Int {
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return big.NewInt(0)
	}
	return mulDivFloor(shareAmount, orZero(totalAssets), totalShares)
}

// SharesForWithdraw computes the share units that must be burned to release
// the requested asset amount. The result rounds up so a withdrawal never
// consumes fewer shares than its true value.
func SharesForWithdraw(amount, totalShares, totalAssets *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return big.NewInt(0)
	}
	if totalAssets == nil || totalAssets.Sign() == 0 {
		return big.NewInt(0)
	}
	return mulDivCeil(amount, totalShares, totalAssets)
}

// Entitlement is the asset value a holder of callerShares may redeem.
func Entitlement(callerShares, totalShares, totalAssets *big.Int) *big.Int {
	return AssetsForShares(callerShares, totalShares, totalAssets)
}
