package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"bollar/core/types"
)

// Config is the daemon configuration, persisted as TOML.
type Config struct {
	Node    NodeConfig           `toml:"node"`
	Risk    types.RiskParameters `toml:"risk"`
	Oracle  OracleConfig         `toml:"oracle"`
	StateTx StateTxConfig        `toml:"statetx"`
}

// NodeConfig covers the process-level settings.
type NodeConfig struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	LogFile    string `toml:"LogFile"`
	Env        string `toml:"Env"`
}

// OracleConfig bounds price acceptance and feed polling.
type OracleConfig struct {
	MinConfidencePct    uint8  `toml:"MinConfidencePct"`
	MaxChangePct        uint64 `toml:"MaxChangePct"`
	TTLSeconds          int64  `toml:"TTLSeconds"`
	FeedEndpoint        string `toml:"FeedEndpoint"`
	FeedConfidencePct   uint8  `toml:"FeedConfidencePct"`
	PollIntervalSeconds int64  `toml:"PollIntervalSeconds"`
}

// TTL returns the cache validity window as a duration.
func (o OracleConfig) TTL() time.Duration {
	return time.Duration(o.TTLSeconds) * time.Second
}

// PollInterval returns the feed polling cadence as a duration.
func (o OracleConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalSeconds) * time.Second
}

// StateTxConfig bounds the transaction audit history.
type StateTxConfig struct {
	HistoryCap int `toml:"HistoryCap"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Node.RPCAddress) == "" {
		cfg.Node.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.Node.DataDir) == "" {
		cfg.Node.DataDir = "./bollar-data"
	}
	if cfg.Oracle.MinConfidencePct == 0 {
		cfg.Oracle.MinConfidencePct = 80
	}
	if cfg.Oracle.MaxChangePct == 0 {
		cfg.Oracle.MaxChangePct = 20
	}
	if cfg.Oracle.TTLSeconds <= 0 {
		cfg.Oracle.TTLSeconds = 300
	}
	if cfg.Oracle.FeedConfidencePct == 0 {
		cfg.Oracle.FeedConfidencePct = 95
	}
	if cfg.Oracle.PollIntervalSeconds <= 0 {
		cfg.Oracle.PollIntervalSeconds = 60
	}
	if cfg.StateTx.HistoryCap <= 0 {
		cfg.StateTx.HistoryCap = 64
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Node: NodeConfig{
			RPCAddress: ":8080",
			DataDir:    "./bollar-data",
		},
		Risk: types.RiskParameters{
			MaxLTVBps:               9000,
			LiquidationThresholdBps: 8500,
			LiquidationPenaltyBps:   500,
			LiquidatorRewardBps:     500,
			ClosureFeeBps:           100,
			MintFeeBps:              0,
			MinCollateralSatoshis:   100_000,
			MaxCollateralSatoshis:   1_000_000_000_000,
			MinMintCents:            100,
		},
		Oracle: OracleConfig{
			MinConfidencePct:    80,
			MaxChangePct:        20,
			TTLSeconds:          300,
			FeedConfidencePct:   95,
			PollIntervalSeconds: 60,
		},
		StateTx: StateTxConfig{HistoryCap: 64},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
