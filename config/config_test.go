package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.Risk.MaxLTVBps != 9000 || cfg.Risk.LiquidationThresholdBps != 8500 {
		t.Fatalf("unexpected default risk parameters: %+v", cfg.Risk)
	}
	if cfg.Oracle.TTL().Seconds() != 300 {
		t.Fatalf("unexpected default TTL: %v", cfg.Oracle.TTL())
	}
	if cfg.StateTx.HistoryCap != 64 {
		t.Fatalf("unexpected default history cap: %d", cfg.StateTx.HistoryCap)
	}

	// Loading the file back reproduces the defaults.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("reloaded config differs: %+v != %+v", reloaded, cfg)
	}
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	sparse := `
[node]
RPCAddress = ":9090"

[risk]
MaxLTVBps = 8000
LiquidationThresholdBps = 9000
MinCollateralSatoshis = 50000
MaxCollateralSatoshis = 1000000000
MinMintCents = 100
`
	if err := os.WriteFile(path, []byte(sparse), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Node.RPCAddress != ":9090" {
		t.Fatalf("explicit value overridden: %s", cfg.Node.RPCAddress)
	}
	if cfg.Oracle.MinConfidencePct != 80 || cfg.StateTx.HistoryCap != 64 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateRejectsUnsoundParameters(t *testing.T) {
	base := func() *Config {
		cfg, err := createDefault(filepath.Join(t.TempDir(), "config.toml"))
		if err != nil {
			t.Fatalf("default: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "zero max ltv",
			mutate:  func(c *Config) { c.Risk.MaxLTVBps = 0 },
			wantMsg: "MaxLTVBps",
		},
		{
			name:    "ltv at 100 percent",
			mutate:  func(c *Config) { c.Risk.MaxLTVBps = 10_000 },
			wantMsg: "MaxLTVBps",
		},
		{
			name:    "threshold too low",
			mutate:  func(c *Config) { c.Risk.LiquidationThresholdBps = 5000 },
			wantMsg: "LiquidationThresholdBps",
		},
		{
			name: "ltv admits liquidatable mints",
			mutate: func(c *Config) {
				c.Risk.MaxLTVBps = 9900
				c.Risk.LiquidationThresholdBps = 10_200
			},
			wantMsg: "below the liquidation threshold",
		},
		{
			name:    "zero min collateral",
			mutate:  func(c *Config) { c.Risk.MinCollateralSatoshis = 0 },
			wantMsg: "MinCollateralSatoshis",
		},
		{
			name: "max below min collateral",
			mutate: func(c *Config) {
				c.Risk.MinCollateralSatoshis = 100
				c.Risk.MaxCollateralSatoshis = 50
			},
			wantMsg: "MaxCollateralSatoshis",
		},
		{
			name:    "zero min mint",
			mutate:  func(c *Config) { c.Risk.MinMintCents = 0 },
			wantMsg: "MinMintCents",
		},
		{
			name:    "confidence above 100",
			mutate:  func(c *Config) { c.Oracle.MinConfidencePct = 101 },
			wantMsg: "MinConfidencePct",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation failure")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in error, got %v", tc.wantMsg, err)
			}
		})
	}
}
