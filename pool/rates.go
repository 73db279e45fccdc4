package pool

import "math/big"

// ReserveSnapshot is the pricing input: the debt mix and the liquidity the
// reserve will hold once the operation being priced has settled.
type ReserveSnapshot struct {
	// TotalStableDebt is the outstanding debt accruing at stable rates.
	TotalStableDebt *big.Int
	// TotalVariableDebt is the outstanding debt accruing at variable rates.
	TotalVariableDebt *big.Int
	// AverageStableBorrowRate is the ray-scaled weighted average rate of the
	// existing stable debt.
	AverageStableBorrowRate *big.Int
	// ReserveBalance is the underlying balance reported by the asset
	// collaborator, read at call time.
	ReserveBalance *big.Int
	// LiquidityAdded adjusts the balance for liquidity entering in the
	// current operation.
	LiquidityAdded *big.Int
	// LiquidityTaken adjusts the balance for liquidity leaving in the
	// current operation.
	LiquidityTaken *big.Int
	// ReserveFactor is the protocol-retained interest share in basis points.
	ReserveFactor uint64
}

// Rates is the pricing output, all values ray-scaled.
type Rates struct {
	LiquidityRate      *big.Int `json:"liquidityRate"`
	StableBorrowRate   *big.Int `json:"stableBorrowRate"`
	VariableBorrowRate *big.Int `json:"variableBorrowRate"`
}

// RateCurveModel prices borrowing and lending from a utilization-driven
// two-slope curve. Below the optimal usage ratio rates climb gently along
// slope1; above it slope2 penalizes utilization to pull it back toward the
// target and protect withdrawal liquidity. The model holds no mutable state
// beyond its validated construction parameters.
type RateCurveModel struct {
	params RateCurveParams

	maxExcessUsageRatio  *big.Int
	maxExcessStableRatio *big.Int
}

// NewRateCurveModel validates the parameters and precomputes the derived
// excess-ratio denominators.
func NewRateCurveModel(params RateCurveParams) (*RateCurveModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	cloned := params.Clone()
	return &RateCurveModel{
		params:               cloned,
		maxExcessUsageRatio:  new(big.Int).Sub(ray, cloned.OptimalUsageRatio),
		maxExcessStableRatio: new(big.Int).Sub(ray, cloned.OptimalStableToTotalDebtRatio),
	}, nil
}

// Params returns a copy of the construction parameters.
func (m *RateCurveModel) Params() RateCurveParams {
	if m == nil {
		return RateCurveParams{}
	}
	return m.params.Clone()
}

// CalculateRates derives the liquidity, stable and variable rates for the
// given reserve snapshot.
func (m *RateCurveModel) CalculateRates(snap ReserveSnapshot) Rates {
	totalStable := orZero(snap.TotalStableDebt)
	totalVariable := orZero(snap.TotalVariableDebt)
	totalDebt := new(big.Int).Add(totalStable, totalVariable)

	variableRate := new(big.Int).Set(m.params.BaseVariableRate)
	stableRate := new(big.Int).Add(m.params.BaseVariableRate, m.params.BaseStableRateOffset)
	liquidityRate := big.NewInt(0)

	if totalDebt.Sign() == 0 {
		return Rates{
			LiquidityRate:      liquidityRate,
			StableBorrowRate:   stableRate,
			VariableBorrowRate: variableRate,
		}
	}

	availableLiquidity := new(big.Int).Set(orZero(snap.ReserveBalance))
	availableLiquidity.Add(availableLiquidity, orZero(snap.LiquidityAdded))
	availableLiquidity.Sub(availableLiquidity, orZero(snap.LiquidityTaken))
	if availableLiquidity.Sign() < 0 {
		availableLiquidity.SetInt64(0)
	}

	utilization := rayDiv(totalDebt, new(big.Int).Add(availableLiquidity, totalDebt))

	if utilization.Cmp(m.params.OptimalUsageRatio) > 0 {
		excess := rayDiv(new(big.Int).Sub(utilization, m.params.OptimalUsageRatio), m.maxExcessUsageRatio)
		variableRate.Add(variableRate, m.params.VariableSlope1)
		variableRate.Add(variableRate, rayMul(m.params.VariableSlope2, excess))
	} else {
		scaled := rayDiv(rayMul(m.params.VariableSlope1, utilization), m.params.OptimalUsageRatio)
		variableRate.Add(variableRate, scaled)
	}

	stableRate = new(big.Int).Add(variableRate, m.params.BaseStableRateOffset)
	stableRatio := rayDiv(totalStable, totalDebt)
	if stableRatio.Cmp(m.params.OptimalStableToTotalDebtRatio) > 0 {
		excessStable := rayDiv(new(big.Int).Sub(stableRatio, m.params.OptimalStableToTotalDebtRatio), m.maxExcessStableRatio)
		stableRate.Add(stableRate, rayMul(m.params.StableRateExcessOffset, excessStable))
	}

	overallBorrowRate := weightedBorrowRate(totalStable, totalVariable, orZero(snap.AverageStableBorrowRate), variableRate)
	liquidityRate = rayMul(overallBorrowRate, utilization)
	liquidityRate = percentMulBps(liquidityRate, 10_000-clampBps(snap.ReserveFactor))

	return Rates{
		LiquidityRate:      liquidityRate,
		StableBorrowRate:   stableRate,
		VariableBorrowRate: variableRate,
	}
}

// RiskAdjustedRates layers the flat risk premiums on top of the base curve.
// Each premium applies when its protection flag is false.
func (m *RateCurveModel) RiskAdjustedRates(snap ReserveSnapshot, premiums RiskPremiums) Rates {
	rates := m.CalculateRates(snap)
	surcharge := big.NewInt(0)
	if !premiums.CouponPaid && premiums.CouponPremium != nil {
		surcharge.Add(surcharge, premiums.CouponPremium)
	}
	if !premiums.CollateralInsured && premiums.CollateralInsurancePremium != nil {
		surcharge.Add(surcharge, premiums.CollateralInsurancePremium)
	}
	if surcharge.Sign() > 0 {
		rates.StableBorrowRate = new(big.Int).Add(rates.StableBorrowRate, surcharge)
		rates.VariableBorrowRate = new(big.Int).Add(rates.VariableBorrowRate, surcharge)
	}
	return rates
}

// weightedBorrowRate blends the two debt classes into the overall borrow rate
// used for the liquidity rate: (variableDebt*variableRate +
// stableDebt*averageStableRate) / totalDebt.
func weightedBorrowRate(totalStable, totalVariable, averageStableRate, variableRate *big.Int) *big.Int {
	totalDebt := new(big.Int).Add(totalStable, totalVariable)
	if totalDebt.Sign() == 0 {
		return big.NewInt(0)
	}
	weighted := new(big.Int).Mul(totalVariable, variableRate)
	weighted.Add(weighted, new(big.Int).Mul(totalStable, averageStableRate))
	return weighted.Quo(weighted, totalDebt)
}

func clampBps(bps uint64) uint64 {
	if bps > 10_000 {
		return 10_000
	}
	return bps
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
