package pool

import "errors"

var (
	// ErrNilState signals the engine was used before persistence was wired.
	ErrNilState = errors.New("liquidity pool: state not configured")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("liquidity pool: amount must be positive")
	// ErrUnauthorizedRouter rejects router-only operations from other callers.
	ErrUnauthorizedRouter = errors.New("liquidity pool: caller is not an authorized router")
	// ErrInsufficientLiquidity signals the pool balance cannot cover the request.
	ErrInsufficientLiquidity = errors.New("liquidity pool: insufficient liquidity")
	// ErrInsufficientEntitlement signals a withdrawal above the caller's share value.
	ErrInsufficientEntitlement = errors.New("liquidity pool: withdrawal exceeds share entitlement")
	// ErrTransferFailed wraps a failure reported by the asset collaborator.
	ErrTransferFailed = errors.New("liquidity pool: external transfer failed")
	// ErrDebtTokenBalanceZero guards the payment-collection unit-value division.
	ErrDebtTokenBalanceZero = errors.New("liquidity pool: debt token balance is zero")
	// ErrCurveMisconfigured rejects rate-curve denominators that would be zero.
	ErrCurveMisconfigured = errors.New("liquidity pool: rate curve misconfigured")
	// ErrPoolInactive signals the pool is paused.
	ErrPoolInactive = errors.New("liquidity pool: pool is not active")
	// ErrCollateralMismatch rejects a merged borrow with a different collateral asset.
	ErrCollateralMismatch = errors.New("liquidity pool: collateral asset does not match open loan")
	// ErrNoOutstandingDebt signals a repayment against an empty loan slot.
	ErrNoOutstandingDebt = errors.New("liquidity pool: no outstanding debt to repay")
)
