package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Amounts travel as decimal strings so callers in any language keep full
// precision on big integers.

type depositParams struct {
	Lender string `json:"lender"`
	Amount string `json:"amount"`
}

type withdrawParams struct {
	Lender string `json:"lender"`
	Amount string `json:"amount"`
}

type borrowParams struct {
	Caller           string `json:"caller"`
	Borrower         string `json:"borrower"`
	Amount           string `json:"amount"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount string `json:"collateralAmount"`
}

type repayParams struct {
	Caller   string `json:"caller"`
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type collectPaymentParams struct {
	Caller          string `json:"caller"`
	Amount          string `json:"amount"`
	OutstandingDebt string `json:"outstandingDebt"`
}

type queryRatesParams struct {
	TotalStableDebt         string `json:"totalStableDebt,omitempty"`
	TotalVariableDebt       string `json:"totalVariableDebt,omitempty"`
	AverageStableBorrowRate string `json:"averageStableBorrowRate,omitempty"`
	ReserveBalance          string `json:"reserveBalance,omitempty"`
	LiquidityAdded          string `json:"liquidityAdded,omitempty"`
	LiquidityTaken          string `json:"liquidityTaken,omitempty"`
	ReserveFactorBps        uint64 `json:"reserveFactorBps,omitempty"`
}

type getLoanParams struct {
	Borrower string `json:"borrower"`
}

type listEventsParams struct {
	Limit int `json:"limit,omitempty"`
}

type setPausedParams struct {
	Paused bool `json:"paused"`
}

type depositResult struct {
	Lender       string `json:"lender"`
	Amount       string `json:"amount"`
	SharesMinted string `json:"sharesMinted"`
}

type withdrawResult struct {
	Lender       string `json:"lender"`
	Amount       string `json:"amount"`
	SharesBurned string `json:"sharesBurned"`
}

type loanResult struct {
	Borrower         string `json:"borrower"`
	AmountBorrowed   string `json:"amountBorrowed"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount string `json:"collateralAmount"`
}

type repayResult struct {
	Borrower string `json:"borrower"`
	Repaid   string `json:"repaid"`
	Closed   bool   `json:"closed"`
}

type collectPaymentResult struct {
	Amount    string `json:"amount"`
	DebtUnits string `json:"debtUnits"`
}

type ratesResult struct {
	LiquidityRate      string `json:"liquidityRate"`
	StableBorrowRate   string `json:"stableBorrowRate"`
	VariableBorrowRate string `json:"variableBorrowRate"`
}

type reserveResult struct {
	TotalShares       string `json:"totalShares"`
	TotalAssets       string `json:"totalAssets"`
	TotalStableDebt   string `json:"totalStableDebt"`
	TotalVariableDebt string `json:"totalVariableDebt"`
}

type setPausedResult struct {
	Paused    bool `json:"paused"`
	WasPaused bool `json:"wasPaused"`
}

func parseAddress(label, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s must be a valid hex address", label)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(label, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", label)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", label)
	}
	return amount, nil
}

// parseOptionalAmount treats the empty string as zero.
func parseOptionalAmount(label, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(label, value)
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
