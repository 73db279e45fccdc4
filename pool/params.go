package pool

import "math/big"

// RateCurveParams groups the immutable two-slope curve parameters. All ratio
// values are ray-scaled (1e27 == 1.0) and fixed at construction.
type RateCurveParams struct {
	// OptimalUsageRatio is the utilization breakpoint where the curve's
	// slope changes.
	OptimalUsageRatio *big.Int
	// BaseVariableRate is the variable borrow rate at zero utilization.
	BaseVariableRate *big.Int
	// VariableSlope1 is the rate increase applied below the optimal point.
	VariableSlope1 *big.Int
	// VariableSlope2 is the additional rate increase applied above it.
	VariableSlope2 *big.Int
	// BaseStableRateOffset is the flat premium of the stable rate over the
	// variable rate.
	BaseStableRateOffset *big.Int
	// StableRateExcessOffset is the surcharge applied when the stable share
	// of total debt exceeds its target.
	StableRateExcessOffset *big.Int
	// OptimalStableToTotalDebtRatio is the target stable share of debt.
	OptimalStableToTotalDebtRatio *big.Int
}

// Clone returns a deep copy of the curve parameters.
func (p RateCurveParams) Clone() RateCurveParams {
	clone := RateCurveParams{}
	if p.OptimalUsageRatio != nil {
		clone.OptimalUsageRatio = new(big.Int).Set(p.OptimalUsageRatio)
	}
	if p.BaseVariableRate != nil {
		clone.BaseVariableRate = new(big.Int).Set(p.BaseVariableRate)
	}
	if p.VariableSlope1 != nil {
		clone.VariableSlope1 = new(big.Int).Set(p.VariableSlope1)
	}
	if p.VariableSlope2 != nil {
		clone.VariableSlope2 = new(big.Int).Set(p.VariableSlope2)
	}
	if p.BaseStableRateOffset != nil {
		clone.BaseStableRateOffset = new(big.Int).Set(p.BaseStableRateOffset)
	}
	if p.StableRateExcessOffset != nil {
		clone.StableRateExcessOffset = new(big.Int).Set(p.StableRateExcessOffset)
	}
	if p.OptimalStableToTotalDebtRatio != nil {
		clone.OptimalStableToTotalDebtRatio = new(big.Int).Set(p.OptimalStableToTotalDebtRatio)
	}
	return clone
}

// Validate rejects parameter sets whose derived denominators would be zero at
// call time. Misconfiguration is refused here so the pricing path never has to
// guard a division.
func (p RateCurveParams) Validate() error {
	if p.OptimalUsageRatio == nil || p.OptimalUsageRatio.Sign() <= 0 {
		return ErrCurveMisconfigured
	}
	if p.OptimalUsageRatio.Cmp(ray) >= 0 {
		return ErrCurveMisconfigured
	}
	if p.OptimalStableToTotalDebtRatio == nil || p.OptimalStableToTotalDebtRatio.Sign() <= 0 {
		return ErrCurveMisconfigured
	}
	if p.OptimalStableToTotalDebtRatio.Cmp(ray) >= 0 {
		return ErrCurveMisconfigured
	}
	for _, rate := range []*big.Int{
		p.BaseVariableRate,
		p.VariableSlope1,
		p.VariableSlope2,
		p.BaseStableRateOffset,
		p.StableRateExcessOffset,
	} {
		if rate == nil || rate.Sign() < 0 {
			return ErrCurveMisconfigured
		}
	}
	return nil
}

// RiskPremiums captures the flat surcharges layered on top of the base curve
// when the corresponding protection is absent.
type RiskPremiums struct {
	// CouponPaid signals the borrower services coupons on schedule; when
	// false CouponPremium is added to both rates.
	CouponPaid bool
	// CollateralInsured signals the posted collateral carries insurance;
	// when false CollateralInsurancePremium is added to both rates.
	CollateralInsured bool
	// CouponPremium is the ray-scaled coupon surcharge.
	CouponPremium *big.Int
	// CollateralInsurancePremium is the ray-scaled insurance surcharge.
	CollateralInsurancePremium *big.Int
}
