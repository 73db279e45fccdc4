package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendpool/core/types"
)

// EngineState is the persistence contract for the engine-owned records: the
// per-borrower loan registry and the outstanding-debt totals.
type EngineState interface {
	GetLoan(borrower common.Address) (*Loan, error)
	PutLoan(loan *Loan) error
	DeleteLoan(borrower common.Address) error
	ListLoans() ([]*Loan, error)
	GetTotals() (*ReserveTotals, error)
	PutTotals(totals *ReserveTotals) error
}

// AssetVault is the external asset collaborator. The engine never holds
// balances itself; it reads them live and issues transfer instructions.
type AssetVault interface {
	BalanceOf(asset string, addr common.Address) (*big.Int, error)
	Transfer(asset string, from, to common.Address, amount *big.Int) error
}

// ShareToken is the external share-unit collaborator owning lender balances.
type ShareToken interface {
	TotalShares() (*big.Int, error)
	SharesOf(addr common.Address) (*big.Int, error)
	MintShares(addr common.Address, amount *big.Int) error
	BurnShares(addr common.Address, amount *big.Int) error
}

// Engine orchestrates the liquidity pool: it composes the share ledger, loan
// registry and rate curve, delegating balance movement and access checks to
// the injected collaborators.
//
// Every mutating operation runs under an exclusive lock so calls against the
// shared reserve serialize in a single total order, and internal ledger
// mutation strictly precedes any balance-moving transfer out of the pool.
type Engine struct {
	mu sync.Mutex

	state  EngineState
	vault  AssetVault
	shares ShareToken
	rates  *RateCurveModel
	access AccessView
	pauses PauseView

	poolAddress common.Address
	loanDesk    common.Address
	underlying  string
	debtToken   string
	reserveBps  uint64

	emit func(*types.Event)
}

// EngineConfig carries the fixed identities the engine operates with.
type EngineConfig struct {
	// PoolAddress is the ledger address holding the pool's balances.
	PoolAddress common.Address
	// LoanDesk receives reconciled debt units during payment collection.
	LoanDesk common.Address
	// Underlying is the reserve asset symbol.
	Underlying string
	// DebtToken is the debt-unit asset symbol held during collection.
	DebtToken string
	// ReserveFactorBps is the protocol-retained interest share.
	ReserveFactorBps uint64
}

// NewEngine constructs a pool engine around the validated rate model and the
// external collaborators.
func NewEngine(cfg EngineConfig, rates *RateCurveModel) *Engine {
	return &Engine{
		rates:       rates,
		poolAddress: cfg.PoolAddress,
		loanDesk:    cfg.LoanDesk,
		underlying:  cfg.Underlying,
		debtToken:   cfg.DebtToken,
		reserveBps:  cfg.ReserveFactorBps,
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetVault wires the external asset collaborator.
func (e *Engine) SetVault(vault AssetVault) { e.vault = vault }

// SetShareToken wires the external share-unit collaborator.
func (e *Engine) SetShareToken(shares ShareToken) { e.shares = shares }

// SetAccess wires the router authorization predicate.
func (e *Engine) SetAccess(access AccessView) {
	if e == nil {
		return
	}
	e.access = access
}

// SetPauses wires the pause predicate.
func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter registers the sink for domain events. Events are emitted only
// after an operation has fully committed.
func (e *Engine) SetEmitter(emit func(*types.Event)) {
	if e == nil {
		return
	}
	e.emit = emit
}

func (e *Engine) emitEvent(ev *types.Event) {
	if e == nil || e.emit == nil || ev == nil {
		return
	}
	e.emit(ev)
}

// Deposit pulls amount from the lender and mints shares valued against the
// pre-deposit pool balance.
func (e *Engine) Deposit(lender common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil || e.vault == nil || e.shares == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Guard(e.pauses); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	totalShares, err := e.shares.TotalShares()
	if err != nil {
		return nil, err
	}
	totalAssets, err := e.vault.BalanceOf(e.underlying, e.poolAddress)
	if err != nil {
		return nil, err
	}

	minted, err := SharesForDeposit(amount, totalShares, totalAssets)
	if err != nil {
		return nil, err
	}

	if err := e.vault.Transfer(e.underlying, lender, e.poolAddress, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.shares.MintShares(lender, minted); err != nil {
		return nil, err
	}

	e.emitEvent(NewDepositedEvent(lender, amount))
	e.emitEvent(NewSharesMintedEvent(lender, minted))
	return minted, nil
}

// Withdraw burns the shares covering amount and releases the assets back to
// the lender. Shares are burned before the transfer leaves the pool.
func (e *Engine) Withdraw(lender common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil || e.vault == nil || e.shares == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Guard(e.pauses); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	totalShares, err := e.shares.TotalShares()
	if err != nil {
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	totalAssets, err := e.vault.BalanceOf(e.underlying, e.poolAddress)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(totalAssets) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	callerShares, err := e.shares.SharesOf(lender)
	if err != nil {
		return nil, err
	}
	entitlement := Entitlement(callerShares, totalShares, totalAssets)
	if amount.Cmp(entitlement) > 0 {
		return nil, ErrInsufficientEntitlement
	}

	burned := SharesForWithdraw(amount, totalShares, totalAssets)
	if err := e.shares.BurnShares(lender, burned); err != nil {
		return nil, err
	}
	if err := e.vault.Transfer(e.underlying, e.poolAddress, lender, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emitEvent(NewSharesBurnedEvent(lender, burned))
	e.emitEvent(NewWithdrawalEvent(lender, amount))
	return burned, nil
}

// Borrow escrows the caller's collateral, records or merges the borrower's
// loan slot, and pays the notional out to the caller last.
func (e *Engine) Borrow(caller, borrower common.Address, notional *big.Int, collateralAsset string, collateralAmount *big.Int) (*Loan, error) {
	if e == nil || e.state == nil || e.vault == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Guard(e.pauses); err != nil {
		return nil, err
	}
	if e.access == nil || !e.access.IsAuthorizedRouter(caller) {
		return nil, ErrUnauthorizedRouter
	}
	if notional == nil || notional.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// Liquidity is checked before any collateral moves so a rejected borrow
	// leaves the caller untouched.
	availableLiquidity, err := e.vault.BalanceOf(e.underlying, e.poolAddress)
	if err != nil {
		return nil, err
	}
	if notional.Cmp(availableLiquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		loan = &Loan{
			Borrower:         borrower,
			AmountBorrowed:   new(big.Int).Set(notional),
			CollateralAsset:  collateralAsset,
			CollateralAmount: new(big.Int).Set(collateralAmount),
		}
	} else {
		loan = loan.Clone()
		if err := loan.Merge(notional, collateralAsset, collateralAmount); err != nil {
			return nil, err
		}
	}

	if err := e.vault.Transfer(collateralAsset, caller, e.poolAddress, collateralAmount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	totals.TotalVariableDebt = new(big.Int).Add(totals.TotalVariableDebt, notional)

	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutTotals(totals); err != nil {
		return nil, err
	}

	// Payout happens last, after all internal state is final.
	if err := e.vault.Transfer(e.underlying, e.poolAddress, caller, notional); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emitEvent(NewBorrowedEvent(loan, notional))
	return loan.Clone(), nil
}

// Repay settles outstanding principal for the borrower. The repaid amount is
// clamped to the outstanding balance; at zero the loan slot is deleted and
// the escrowed collateral released back to the borrower.
func (e *Engine) Repay(caller, borrower common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil || e.vault == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Guard(e.pauses); err != nil {
		return nil, err
	}
	if e.access == nil || !e.access.IsAuthorizedRouter(caller) {
		return nil, ErrUnauthorizedRouter
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return nil, err
	}
	if loan == nil || loan.AmountBorrowed == nil || loan.AmountBorrowed.Sign() == 0 {
		return nil, ErrNoOutstandingDebt
	}
	loan = loan.Clone()

	repay := new(big.Int).Set(amount)
	if repay.Cmp(loan.AmountBorrowed) > 0 {
		repay = new(big.Int).Set(loan.AmountBorrowed)
	}

	if err := e.vault.Transfer(e.underlying, caller, e.poolAddress, repay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	loan.AmountBorrowed = new(big.Int).Sub(loan.AmountBorrowed, repay)
	closed := loan.AmountBorrowed.Sign() == 0

	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	totals.TotalVariableDebt = new(big.Int).Sub(totals.TotalVariableDebt, repay)
	if totals.TotalVariableDebt.Sign() < 0 {
		totals.TotalVariableDebt = big.NewInt(0)
	}
	if err := e.state.PutTotals(totals); err != nil {
		return nil, err
	}

	collateral := new(big.Int).Set(loan.CollateralAmount)
	collateralAsset := loan.CollateralAsset
	if closed {
		if err := e.state.DeleteLoan(borrower); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.PutLoan(loan); err != nil {
			return nil, err
		}
	}

	if closed && collateral.Sign() > 0 {
		if err := e.vault.Transfer(collateralAsset, e.poolAddress, borrower, collateral); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	e.emitEvent(NewRepaidEvent(borrower, repay, closed))
	return repay, nil
}

// CollectPayment reconciles the pool's debt-token holdings against the
// outstanding-debt figure: the underlying amount is pulled in from the caller
// and the covered debt units are returned to the loan desk.
func (e *Engine) CollectPayment(caller common.Address, amount, outstandingDebt *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil || e.vault == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := Guard(e.pauses); err != nil {
		return nil, err
	}
	if e.access == nil || !e.access.IsAuthorizedRouter(caller) {
		return nil, ErrUnauthorizedRouter
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if outstandingDebt == nil || outstandingDebt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	debtBalance, err := e.vault.BalanceOf(e.debtToken, e.poolAddress)
	if err != nil {
		return nil, err
	}
	if debtBalance.Sign() == 0 {
		return nil, ErrDebtTokenBalanceZero
	}

	// Unit value of one held debt token, in ray.
	unitValue := rayDiv(outstandingDebt, debtBalance)
	debtUnits := rayDiv(amount, unitValue)
	if debtUnits.Cmp(debtBalance) > 0 {
		debtUnits = new(big.Int).Set(debtBalance)
	}

	if err := e.vault.Transfer(e.underlying, caller, e.poolAddress, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	totals.TotalVariableDebt = new(big.Int).Sub(totals.TotalVariableDebt, amount)
	if totals.TotalVariableDebt.Sign() < 0 {
		totals.TotalVariableDebt = big.NewInt(0)
	}
	if err := e.state.PutTotals(totals); err != nil {
		return nil, err
	}

	if debtUnits.Sign() > 0 {
		if err := e.vault.Transfer(e.debtToken, e.poolAddress, e.loanDesk, debtUnits); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	e.emitEvent(NewPaymentCollectedEvent(caller, amount, debtUnits))
	return debtUnits, nil
}

// QueryRates prices the supplied snapshot. The reserve factor defaults to
// the engine's configured value when the snapshot leaves it unset.
func (e *Engine) QueryRates(snap ReserveSnapshot) (Rates, error) {
	if e == nil || e.rates == nil {
		return Rates{}, ErrNilState
	}
	if snap.ReserveFactor == 0 {
		snap.ReserveFactor = e.reserveBps
	}
	return e.rates.CalculateRates(snap), nil
}

// CurrentRates prices the reserve as it stands: live pool balance plus the
// recorded debt totals.
func (e *Engine) CurrentRates() (Rates, error) {
	if e == nil || e.state == nil || e.vault == nil || e.rates == nil {
		return Rates{}, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.vault.BalanceOf(e.underlying, e.poolAddress)
	if err != nil {
		return Rates{}, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return Rates{}, err
	}
	snap := ReserveSnapshot{
		TotalStableDebt:         totals.TotalStableDebt,
		TotalVariableDebt:       totals.TotalVariableDebt,
		AverageStableBorrowRate: totals.AverageStableBorrowRate,
		ReserveBalance:          balance,
		ReserveFactor:           e.reserveBps,
	}
	return e.rates.CalculateRates(snap), nil
}

// ReserveView is the externally visible reserve snapshot.
type ReserveView struct {
	TotalShares       *big.Int `json:"totalShares"`
	TotalAssets       *big.Int `json:"totalAssets"`
	TotalStableDebt   *big.Int `json:"totalStableDebt"`
	TotalVariableDebt *big.Int `json:"totalVariableDebt"`
}

// Reserve reports the live reserve state.
func (e *Engine) Reserve() (ReserveView, error) {
	if e == nil || e.state == nil || e.vault == nil || e.shares == nil {
		return ReserveView{}, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	totalShares, err := e.shares.TotalShares()
	if err != nil {
		return ReserveView{}, err
	}
	totalAssets, err := e.vault.BalanceOf(e.underlying, e.poolAddress)
	if err != nil {
		return ReserveView{}, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return ReserveView{}, err
	}
	return ReserveView{
		TotalShares:       totalShares,
		TotalAssets:       totalAssets,
		TotalStableDebt:   totals.TotalStableDebt,
		TotalVariableDebt: totals.TotalVariableDebt,
	}, nil
}

// Loan returns the open loan slot for the borrower, or nil.
func (e *Engine) Loan(borrower common.Address) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.state.GetLoan(borrower)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// Loans lists every open loan slot.
func (e *Engine) Loans() ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	loans, err := e.state.ListLoans()
	if err != nil {
		return nil, err
	}
	out := make([]*Loan, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loan.Clone())
	}
	return out, nil
}

func (e *Engine) loadTotals() (*ReserveTotals, error) {
	totals, err := e.state.GetTotals()
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &ReserveTotals{}
	} else {
		totals = totals.Clone()
	}
	totals.EnsureDefaults()
	return totals, nil
}
