package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"lendpool/core/types"
	"lendpool/ledger"
	"lendpool/pool"
	"lendpool/state"
	"lendpool/storage"
)

const testToken = "test-token"

type rpcHarness struct {
	server  *httptest.Server
	ledger  *ledger.Ledger
	pauses  *pool.PauseSwitch
	journal *storage.Journal

	poolAddr common.Address
	router   common.Address
}

func newRPCHarness(t *testing.T) *rpcHarness {
	t.Helper()

	db := storage.NewMemDB()
	journal, err := storage.OpenJournal(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	params := pool.RateCurveParams{}
	for decimal, dst := range map[string]**big.Int{
		"0.8":  &params.OptimalUsageRatio,
		"0.01": &params.BaseVariableRate,
		"0.04": &params.VariableSlope1,
		"0.6":  &params.VariableSlope2,
	} {
		value, err := pool.RayFromDecimal(decimal)
		require.NoError(t, err)
		*dst = value
	}
	offset, err := pool.RayFromDecimal("0.01")
	require.NoError(t, err)
	params.BaseStableRateOffset = offset
	excess, err := pool.RayFromDecimal("0.02")
	require.NoError(t, err)
	params.StableRateExcessOffset = excess
	stableTarget, err := pool.RayFromDecimal("0.2")
	require.NoError(t, err)
	params.OptimalStableToTotalDebtRatio = stableTarget

	model, err := pool.NewRateCurveModel(params)
	require.NoError(t, err)

	h := &rpcHarness{
		journal:  journal,
		poolAddr: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		router:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		pauses:   pool.NewPauseSwitch(false),
	}
	h.ledger = ledger.NewLedger(db)

	engine := pool.NewEngine(pool.EngineConfig{
		PoolAddress: h.poolAddr,
		LoanDesk:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Underlying:  "ASSET",
		DebtToken:   "DEBT",
	}, model)
	engine.SetState(state.NewPoolState(db))
	engine.SetVault(h.ledger)
	engine.SetShareToken(h.ledger)
	engine.SetAccess(pool.NewRouterSet([]common.Address{h.router}))
	engine.SetPauses(h.pauses)
	engine.SetEmitter(func(ev *types.Event) {
		require.NoError(t, journal.Append(ev))
	})

	srv := NewServer(engine, journal, h.pauses, testToken, slog.Default())
	h.server = httptest.NewServer(srv.Router())
	t.Cleanup(h.server.Close)
	return h
}

func (h *rpcHarness) call(t *testing.T, token, method string, params interface{}) RPCResponse {
	t.Helper()
	envelope := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		envelope["params"] = []interface{}{params}
	}
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestDepositOverRPC(t *testing.T) {
	h := newRPCHarness(t)
	lender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	require.NoError(t, h.ledger.Credit("ASSET", lender, big.NewInt(1_000)))

	resp := h.call(t, testToken, "lending_deposit", depositParams{
		Lender: lender.Hex(),
		Amount: "400",
	})
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result depositResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, "400", result.SharesMinted)

	balance, err := h.ledger.BalanceOf("ASSET", h.poolAddr)
	require.NoError(t, err)
	require.Equal(t, "400", balance.String())
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	h := newRPCHarness(t)
	resp := h.call(t, "", "lending_deposit", depositParams{
		Lender: "0x4444444444444444444444444444444444444444",
		Amount: "10",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = h.call(t, "wrong-token", "lending_deposit", depositParams{
		Lender: "0x4444444444444444444444444444444444444444",
		Amount: "10",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	h := newRPCHarness(t)
	resp := h.call(t, testToken, "lending_unknown", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestInvalidAmountMapsToInvalidParams(t *testing.T) {
	h := newRPCHarness(t)
	resp := h.call(t, testToken, "lending_deposit", depositParams{
		Lender: "0x4444444444444444444444444444444444444444",
		Amount: "not-a-number",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestBorrowUnauthorizedRouterMapsToUnauthorized(t *testing.T) {
	h := newRPCHarness(t)
	resp := h.call(t, testToken, "lending_borrow", borrowParams{
		Caller:           "0x4444444444444444444444444444444444444444",
		Borrower:         "0x5555555555555555555555555555555555555555",
		Amount:           "100",
		CollateralAsset:  "COLL",
		CollateralAmount: "200",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestQueryRatesWithSnapshot(t *testing.T) {
	h := newRPCHarness(t)
	resp := h.call(t, "", "lending_queryRates", queryRatesParams{
		TotalVariableDebt: "80",
		ReserveBalance:    "20",
	})
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ratesResult
	require.NoError(t, json.Unmarshal(raw, &result))
	// Utilization sits exactly on the optimal point: base + slope1.
	require.Equal(t, "50000000000000000000000000", result.VariableBorrowRate)
}

func TestSetPausedBlocksDeposits(t *testing.T) {
	h := newRPCHarness(t)
	lender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	require.NoError(t, h.ledger.Credit("ASSET", lender, big.NewInt(1_000)))

	resp := h.call(t, testToken, "lending_setPaused", setPausedParams{Paused: true})
	require.Nil(t, resp.Error)

	resp = h.call(t, testToken, "lending_deposit", depositParams{
		Lender: lender.Hex(),
		Amount: "100",
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)

	entries, err := h.journal.Tail(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, pool.EventTypePauseChanged, entries[0].Type)
}
