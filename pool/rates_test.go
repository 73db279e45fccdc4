package pool

import (
	"errors"
	"math/big"
	"testing"
)

func testCurveParams(t *testing.T) RateCurveParams {
	t.Helper()
	decimals := map[string]string{
		"optimal":       "0.8",
		"base":          "0.01",
		"slope1":        "0.04",
		"slope2":        "0.6",
		"stableOffset":  "0.01",
		"excessOffset":  "0.02",
		"optimalStable": "0.2",
	}
	values := make(map[string]*big.Int, len(decimals))
	for name, decimal := range decimals {
		v, err := RayFromDecimal(decimal)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		values[name] = v
	}
	return RateCurveParams{
		OptimalUsageRatio:             values["optimal"],
		BaseVariableRate:              values["base"],
		VariableSlope1:                values["slope1"],
		VariableSlope2:                values["slope2"],
		BaseStableRateOffset:          values["stableOffset"],
		StableRateExcessOffset:        values["excessOffset"],
		OptimalStableToTotalDebtRatio: values["optimalStable"],
	}
}

func mustRay(t *testing.T, decimal string) *big.Int {
	t.Helper()
	v, err := RayFromDecimal(decimal)
	if err != nil {
		t.Fatalf("parse %s: %v", decimal, err)
	}
	return v
}

func newTestModel(t *testing.T) *RateCurveModel {
	t.Helper()
	model, err := NewRateCurveModel(testCurveParams(t))
	if err != nil {
		t.Fatalf("construct model: %v", err)
	}
	return model
}

func TestCalculateRatesZeroDebt(t *testing.T) {
	model := newTestModel(t)
	rates := model.CalculateRates(ReserveSnapshot{ReserveBalance: big.NewInt(1_000)})

	if rates.LiquidityRate.Sign() != 0 {
		t.Fatalf("liquidity rate %s, want 0", rates.LiquidityRate)
	}
	if rates.VariableBorrowRate.Cmp(mustRay(t, "0.01")) != 0 {
		t.Fatalf("variable rate %s, want base", rates.VariableBorrowRate)
	}
	if rates.StableBorrowRate.Cmp(mustRay(t, "0.02")) != 0 {
		t.Fatalf("stable rate %s, want base plus offset", rates.StableBorrowRate)
	}
}

func TestCalculateRatesAtOptimalBoundary(t *testing.T) {
	model := newTestModel(t)
	// 80 debt against 20 liquidity puts utilization exactly on the optimal
	// point, which prices on the first slope: base + slope1.
	rates := model.CalculateRates(ReserveSnapshot{
		TotalVariableDebt: big.NewInt(80),
		ReserveBalance:    big.NewInt(20),
	})
	if rates.VariableBorrowRate.Cmp(mustRay(t, "0.05")) != 0 {
		t.Fatalf("variable rate %s, want 0.05 ray", rates.VariableBorrowRate)
	}
	if rates.StableBorrowRate.Cmp(mustRay(t, "0.06")) != 0 {
		t.Fatalf("stable rate %s, want 0.06 ray", rates.StableBorrowRate)
	}
	// All debt is variable so the overall borrow rate equals the variable
	// rate; liquidity rate = 0.05 * 0.8 with no reserve factor.
	if rates.LiquidityRate.Cmp(mustRay(t, "0.04")) != 0 {
		t.Fatalf("liquidity rate %s, want 0.04 ray", rates.LiquidityRate)
	}
}

func TestCalculateRatesAboveOptimal(t *testing.T) {
	model := newTestModel(t)
	// 90 debt against 10 liquidity: utilization 0.9, excess ratio
	// (0.9-0.8)/(1-0.8) = 0.5 so slope2 contributes 0.3.
	rates := model.CalculateRates(ReserveSnapshot{
		TotalVariableDebt: big.NewInt(90),
		ReserveBalance:    big.NewInt(10),
		ReserveFactor:     1_000,
	})
	if rates.VariableBorrowRate.Cmp(mustRay(t, "0.35")) != 0 {
		t.Fatalf("variable rate %s, want 0.35 ray", rates.VariableBorrowRate)
	}
	// liquidity = 0.35 * 0.9 * (1 - 10%) = 0.2835.
	if rates.LiquidityRate.Cmp(mustRay(t, "0.2835")) != 0 {
		t.Fatalf("liquidity rate %s, want 0.2835 ray", rates.LiquidityRate)
	}
}

func TestCalculateRatesStableExcessSurcharge(t *testing.T) {
	model := newTestModel(t)
	// Stable debt is 75% of the book against a 20% target. Excess ratio
	// (0.75-0.2)/(1-0.2) = 0.6875 adds 0.02*0.6875 = 0.01375 on top of the
	// boundary stable rate of 0.06.
	rates := model.CalculateRates(ReserveSnapshot{
		TotalStableDebt:         big.NewInt(60),
		TotalVariableDebt:       big.NewInt(20),
		AverageStableBorrowRate: mustRay(t, "0.06"),
		ReserveBalance:          big.NewInt(20),
	})
	if rates.StableBorrowRate.Cmp(mustRay(t, "0.07375")) != 0 {
		t.Fatalf("stable rate %s, want 0.07375 ray", rates.StableBorrowRate)
	}
	// Overall borrow rate blends (20*0.05 + 60*0.06)/80 = 0.0575 and the
	// liquidity rate applies utilization 0.8.
	if rates.LiquidityRate.Cmp(mustRay(t, "0.046")) != 0 {
		t.Fatalf("liquidity rate %s, want 0.046 ray", rates.LiquidityRate)
	}
}

func TestCalculateRatesLiquidityAdjustments(t *testing.T) {
	model := newTestModel(t)
	// Balance 120 with 100 about to leave and 80 debt: available 20, so
	// utilization lands exactly on the optimal point.
	rates := model.CalculateRates(ReserveSnapshot{
		TotalVariableDebt: big.NewInt(80),
		ReserveBalance:    big.NewInt(110),
		LiquidityAdded:    big.NewInt(10),
		LiquidityTaken:    big.NewInt(100),
	})
	if rates.VariableBorrowRate.Cmp(mustRay(t, "0.05")) != 0 {
		t.Fatalf("variable rate %s, want 0.05 ray", rates.VariableBorrowRate)
	}
}

func TestCalculateRatesMonotoneInUtilization(t *testing.T) {
	model := newTestModel(t)
	prev := big.NewInt(-1)
	for debt := int64(10); debt <= 90; debt += 10 {
		rates := model.CalculateRates(ReserveSnapshot{
			TotalVariableDebt: big.NewInt(debt),
			ReserveBalance:    big.NewInt(100 - debt),
		})
		if rates.VariableBorrowRate.Cmp(prev) < 0 {
			t.Fatalf("variable rate decreased at debt %d: %s < %s", debt, rates.VariableBorrowRate, prev)
		}
		prev = rates.VariableBorrowRate
	}
}

func TestRiskAdjustedRates(t *testing.T) {
	model := newTestModel(t)
	snap := ReserveSnapshot{
		TotalVariableDebt: big.NewInt(80),
		ReserveBalance:    big.NewInt(20),
	}
	premiums := RiskPremiums{
		CouponPaid:                 false,
		CollateralInsured:          false,
		CouponPremium:              mustRay(t, "0.005"),
		CollateralInsurancePremium: mustRay(t, "0.01"),
	}
	rates := model.RiskAdjustedRates(snap, premiums)
	if rates.VariableBorrowRate.Cmp(mustRay(t, "0.065")) != 0 {
		t.Fatalf("variable rate %s, want 0.065 ray", rates.VariableBorrowRate)
	}
	if rates.StableBorrowRate.Cmp(mustRay(t, "0.075")) != 0 {
		t.Fatalf("stable rate %s, want 0.075 ray", rates.StableBorrowRate)
	}

	// Protections in place leave the curve untouched.
	premiums.CouponPaid = true
	premiums.CollateralInsured = true
	base := model.CalculateRates(snap)
	adjusted := model.RiskAdjustedRates(snap, premiums)
	if adjusted.VariableBorrowRate.Cmp(base.VariableBorrowRate) != 0 {
		t.Fatalf("protected premiums changed the variable rate")
	}
}

func TestNewRateCurveModelRejectsMisconfiguration(t *testing.T) {
	params := testCurveParams(t)
	params.OptimalUsageRatio = Ray()
	if _, err := NewRateCurveModel(params); !errors.Is(err, ErrCurveMisconfigured) {
		t.Fatalf("expected ErrCurveMisconfigured, got %v", err)
	}

	params = testCurveParams(t)
	params.VariableSlope1 = big.NewInt(-1)
	if _, err := NewRateCurveModel(params); !errors.Is(err, ErrCurveMisconfigured) {
		t.Fatalf("expected ErrCurveMisconfigured for negative slope, got %v", err)
	}

	params = testCurveParams(t)
	params.OptimalStableToTotalDebtRatio = big.NewInt(0)
	if _, err := NewRateCurveModel(params); !errors.Is(err, ErrCurveMisconfigured) {
		t.Fatalf("expected ErrCurveMisconfigured for zero stable target, got %v", err)
	}
}
