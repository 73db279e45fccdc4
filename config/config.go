package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"lendpool/pool"
)

// Config captures the runtime settings for lendpoold.
type Config struct {
	ListenAddress string     `toml:"ListenAddress"`
	DataDir       string     `toml:"DataDir"`
	LogEnv        string     `toml:"LogEnv"`
	LogFile       string     `toml:"LogFile,omitempty"`
	RPCToken      string     `toml:"RPCToken,omitempty"`
	Pool          PoolConfig `toml:"pool"`
}

// PoolConfig describes the pool identities and curve parameters.
type PoolConfig struct {
	Underlying       string      `toml:"Underlying"`
	DebtToken        string      `toml:"DebtToken"`
	PoolAddress      string      `toml:"PoolAddress"`
	LoanDesk         string      `toml:"LoanDesk"`
	Routers          []string    `toml:"Routers"`
	ReserveFactorBps uint64      `toml:"ReserveFactorBps"`
	Paused           bool        `toml:"Paused"`
	Curve            CurveConfig `toml:"curve"`
}

// CurveConfig holds the two-slope curve parameters as decimal ratio strings,
// e.g. an 80% optimal usage ratio is "0.8".
type CurveConfig struct {
	OptimalUsageRatio             string `toml:"OptimalUsageRatio"`
	BaseVariableRate              string `toml:"BaseVariableRate"`
	VariableSlope1                string `toml:"VariableSlope1"`
	VariableSlope2                string `toml:"VariableSlope2"`
	BaseStableRateOffset          string `toml:"BaseStableRateOffset"`
	StableRateExcessOffset        string `toml:"StableRateExcessOffset"`
	OptimalStableToTotalDebtRatio string `toml:"OptimalStableToTotalDebtRatio"`
}

const (
	defaultListenAddress = "127.0.0.1:8645"
	defaultDataDir       = "./lendpool-data"
	defaultUnderlying    = "ASSET"
	defaultDebtToken     = "DEBT"
)

// Load reads the TOML configuration from path and applies defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Pool.Underlying) == "" {
		cfg.Pool.Underlying = defaultUnderlying
	}
	if strings.TrimSpace(cfg.Pool.DebtToken) == "" {
		cfg.Pool.DebtToken = defaultDebtToken
	}
}

// Validate ensures the configuration is internally consistent.
func (cfg *Config) Validate() error {
	if !common.IsHexAddress(strings.TrimSpace(cfg.Pool.PoolAddress)) {
		return fmt.Errorf("pool address %q is not a valid hex address", cfg.Pool.PoolAddress)
	}
	if !common.IsHexAddress(strings.TrimSpace(cfg.Pool.LoanDesk)) {
		return fmt.Errorf("loan desk address %q is not a valid hex address", cfg.Pool.LoanDesk)
	}
	if len(cfg.Pool.Routers) == 0 {
		return fmt.Errorf("at least one router address is required")
	}
	for _, router := range cfg.Pool.Routers {
		if !common.IsHexAddress(strings.TrimSpace(router)) {
			return fmt.Errorf("router address %q is not a valid hex address", router)
		}
	}
	if cfg.Pool.ReserveFactorBps > 10_000 {
		return fmt.Errorf("reserve factor must not exceed 10000 bps")
	}
	if _, err := cfg.Pool.Curve.Params(); err != nil {
		return fmt.Errorf("curve parameters: %w", err)
	}
	return nil
}

// Params converts the decimal curve strings into validated ray parameters.
func (c CurveConfig) Params() (pool.RateCurveParams, error) {
	var params pool.RateCurveParams
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"OptimalUsageRatio", c.OptimalUsageRatio, &params.OptimalUsageRatio},
		{"BaseVariableRate", c.BaseVariableRate, &params.BaseVariableRate},
		{"VariableSlope1", c.VariableSlope1, &params.VariableSlope1},
		{"VariableSlope2", c.VariableSlope2, &params.VariableSlope2},
		{"BaseStableRateOffset", c.BaseStableRateOffset, &params.BaseStableRateOffset},
		{"StableRateExcessOffset", c.StableRateExcessOffset, &params.StableRateExcessOffset},
		{"OptimalStableToTotalDebtRatio", c.OptimalStableToTotalDebtRatio, &params.OptimalStableToTotalDebtRatio},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(field.value)
		if trimmed == "" {
			return pool.RateCurveParams{}, fmt.Errorf("%s is required", field.name)
		}
		rayValue, err := pool.RayFromDecimal(trimmed)
		if err != nil {
			return pool.RateCurveParams{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = rayValue
	}
	if err := params.Validate(); err != nil {
		return pool.RateCurveParams{}, err
	}
	return params, nil
}

// RouterAddresses parses the configured router list.
func (p PoolConfig) RouterAddresses() []common.Address {
	routers := make([]common.Address, 0, len(p.Routers))
	for _, router := range p.Routers {
		trimmed := strings.TrimSpace(router)
		if common.IsHexAddress(trimmed) {
			routers = append(routers, common.HexToAddress(trimmed))
		}
	}
	return routers
}
