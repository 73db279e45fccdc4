package rpc

import (
	"encoding/json"
	"net/http"
	"time"

	"lendpool/observability"
	"lendpool/pool"
)

const defaultEventLimit = 100

func decodeParams(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params payload", Data: err.Error()}
	}
	return nil
}

func (s *Server) observe(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		observability.PoolMetrics().ObserveError(method, err.Error())
	}
	observability.PoolMetrics().ObserveOperation(method, outcome, time.Since(start).Seconds())
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params depositParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, err := parseAddress("lender", params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	start := time.Now()
	minted, err := s.engine.Deposit(lender, amount)
	s.observe("deposit", start, err)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_deposit", err)
		return
	}
	writeResult(w, req.ID, depositResult{
		Lender:       lender.Hex(),
		Amount:       formatBig(amount),
		SharesMinted: formatBig(minted),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params withdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, err := parseAddress("lender", params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	start := time.Now()
	burned, err := s.engine.Withdraw(lender, amount)
	s.observe("withdraw", start, err)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_withdraw", err)
		return
	}
	writeResult(w, req.ID, withdrawResult{
		Lender:       lender.Hex(),
		Amount:       formatBig(amount),
		SharesBurned: formatBig(burned),
	})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params borrowParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateral, err := parseAmount("collateralAmount", params.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	start := time.Now()
	loan, err := s.engine.Borrow(caller, borrower, amount, params.CollateralAsset, collateral)
	s.observe("borrow", start, err)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_borrow", err)
		return
	}
	writeResult(w, req.ID, loanView(loan))
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params repayParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	start := time.Now()
	repaid, err := s.engine.Repay(caller, borrower, amount)
	s.observe("repay", start, err)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_repay", err)
		return
	}
	remaining, err := s.engine.Loan(borrower)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_repay", err)
		return
	}
	writeResult(w, req.ID, repayResult{
		Borrower: borrower.Hex(),
		Repaid:   formatBig(repaid),
		Closed:   remaining == nil,
	})
}

func (s *Server) handleCollectPayment(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params collectPaymentParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	outstanding, err := parseAmount("outstandingDebt", params.OutstandingDebt)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	start := time.Now()
	debtUnits, err := s.engine.CollectPayment(caller, amount, outstanding)
	s.observe("collect_payment", start, err)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_collectPayment", err)
		return
	}
	writeResult(w, req.ID, collectPaymentResult{
		Amount:    formatBig(amount),
		DebtUnits: formatBig(debtUnits),
	})
}

func (s *Server) handleQueryRates(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	// When no snapshot is supplied the live reserve is priced.
	if len(req.Params) == 0 {
		rates, err := s.engine.CurrentRates()
		if err != nil {
			s.writeEngineError(w, req.ID, "lending_queryRates", err)
			return
		}
		writeResult(w, req.ID, ratesView(rates))
		return
	}

	var params queryRatesParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	snap := pool.ReserveSnapshot{ReserveFactor: params.ReserveFactorBps}
	var err error
	if snap.TotalStableDebt, err = parseOptionalAmount("totalStableDebt", params.TotalStableDebt); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if snap.TotalVariableDebt, err = parseOptionalAmount("totalVariableDebt", params.TotalVariableDebt); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if snap.AverageStableBorrowRate, err = parseOptionalAmount("averageStableBorrowRate", params.AverageStableBorrowRate); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if snap.ReserveBalance, err = parseOptionalAmount("reserveBalance", params.ReserveBalance); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if snap.LiquidityAdded, err = parseOptionalAmount("liquidityAdded", params.LiquidityAdded); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if snap.LiquidityTaken, err = parseOptionalAmount("liquidityTaken", params.LiquidityTaken); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	rates, err := s.engine.QueryRates(snap)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_queryRates", err)
		return
	}
	writeResult(w, req.ID, ratesView(rates))
}

func (s *Server) handleGetReserve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	view, err := s.engine.Reserve()
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_getReserve", err)
		return
	}
	writeResult(w, req.ID, reserveResult{
		TotalShares:       formatBig(view.TotalShares),
		TotalAssets:       formatBig(view.TotalAssets),
		TotalStableDebt:   formatBig(view.TotalStableDebt),
		TotalVariableDebt: formatBig(view.TotalVariableDebt),
	})
}

func (s *Server) handleGetLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params getLoanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loan, err := s.engine.Loan(borrower)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_getLoan", err)
		return
	}
	if loan == nil {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, loanView(loan))
}

func (s *Server) handleListLoans(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	loans, err := s.engine.Loans()
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_listLoans", err)
		return
	}
	views := make([]loanResult, 0, len(loans))
	for _, loan := range loans {
		views = append(views, loanView(loan))
	}
	writeResult(w, req.ID, views)
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	limit := defaultEventLimit
	if len(req.Params) == 1 {
		var params listEventsParams
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		if params.Limit > 0 {
			limit = params.Limit
		}
	}
	entries, err := s.journal.Tail(limit)
	if err != nil {
		s.writeEngineError(w, req.ID, "lending_listEvents", err)
		return
	}
	writeResult(w, req.ID, entries)
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var params setPausedParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	previous := s.pauses.SetPaused(params.Paused)
	if err := s.journal.Append(pool.NewPauseChangedEvent(params.Paused, previous)); err != nil {
		s.logger.Error("journal append failed", "error", err)
	}
	observability.PoolMetrics().ObserveEvent(pool.EventTypePauseChanged)
	s.logger.Info("pool pause state changed", "paused", params.Paused, "wasPaused", previous)
	writeResult(w, req.ID, setPausedResult{Paused: params.Paused, WasPaused: previous})
}

func loanView(loan *pool.Loan) loanResult {
	if loan == nil {
		return loanResult{}
	}
	return loanResult{
		Borrower:         loan.Borrower.Hex(),
		AmountBorrowed:   formatBig(loan.AmountBorrowed),
		CollateralAsset:  loan.CollateralAsset,
		CollateralAmount: formatBig(loan.CollateralAmount),
	}
}

func ratesView(rates pool.Rates) ratesResult {
	return ratesResult{
		LiquidityRate:      formatBig(rates.LiquidityRate),
		StableBorrowRate:   formatBig(rates.StableBorrowRate),
		VariableBorrowRate: formatBig(rates.VariableBorrowRate),
	}
}
