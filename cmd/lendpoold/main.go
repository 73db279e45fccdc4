package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendpool/config"
	"lendpool/core/types"
	"lendpool/ledger"
	"lendpool/observability"
	"lendpool/observability/logging"
	"lendpool/pool"
	"lendpool/rpc"
	"lendpool/state"
	"lendpool/storage"
)

const rpcTokenEnv = "LENDPOOL_RPC_TOKEN"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to lendpoold config")
	flag.Parse()

	logging.Setup("lendpoold", "", "")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("lendpoold", cfg.LogEnv, cfg.LogFile)

	rpcToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if rpcToken == "" {
		rpcToken = strings.TrimSpace(cfg.RPCToken)
	}
	if rpcToken == "" {
		logger.Warn("no RPC token configured, mutating RPC methods are disabled",
			"env", rpcTokenEnv)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "pool"))
	if err != nil {
		log.Fatalf("open state database: %v", err)
	}
	defer db.Close()

	journal, err := storage.OpenJournal(filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		log.Fatalf("open event journal: %v", err)
	}
	defer func() { _ = journal.Close() }()

	curveParams, err := cfg.Pool.Curve.Params()
	if err != nil {
		log.Fatalf("parse curve parameters: %v", err)
	}
	rateModel, err := pool.NewRateCurveModel(curveParams)
	if err != nil {
		log.Fatalf("construct rate model: %v", err)
	}

	book := ledger.NewLedger(db)
	poolState := state.NewPoolState(db)
	pauses := pool.NewPauseSwitch(cfg.Pool.Paused)
	routers := pool.NewRouterSet(cfg.Pool.RouterAddresses())

	engine := pool.NewEngine(pool.EngineConfig{
		PoolAddress:      addressFromConfig(cfg.Pool.PoolAddress),
		LoanDesk:         addressFromConfig(cfg.Pool.LoanDesk),
		Underlying:       cfg.Pool.Underlying,
		DebtToken:        cfg.Pool.DebtToken,
		ReserveFactorBps: cfg.Pool.ReserveFactorBps,
	}, rateModel)
	engine.SetState(poolState)
	engine.SetVault(book)
	engine.SetShareToken(book)
	engine.SetAccess(routers)
	engine.SetPauses(pauses)

	metrics := observability.PoolMetrics()
	engine.SetEmitter(func(event *types.Event) {
		if event == nil {
			return
		}
		metrics.ObserveEvent(event.Type)
		if err := journal.Append(event); err != nil {
			logger.Error("journal append failed", "type", event.Type, "error", err)
		}
	})

	rpcServer := rpc.NewServer(engine, journal, pauses, rpcToken, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RealIP)
	router.Mount("/rpc", rpcServer.Router())
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendpoold listening", "address", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func addressFromConfig(value string) common.Address {
	return common.HexToAddress(strings.TrimSpace(value))
}
