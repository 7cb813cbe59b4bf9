package config

import (
	"fmt"
)

// Validate rejects parameter combinations that would make the protocol
// unsound before the daemon starts serving.
func (c *Config) Validate() error {
	risk := c.Risk
	if risk.MaxLTVBps == 0 || risk.MaxLTVBps >= 10_000 {
		return fmt.Errorf("config: MaxLTVBps must be in (0, 10000), got %d", risk.MaxLTVBps)
	}
	if risk.LiquidationThresholdBps <= 10_000/2 {
		return fmt.Errorf("config: LiquidationThresholdBps implausibly low: %d", risk.LiquidationThresholdBps)
	}
	// MaxLTV is debt/value while the threshold is value/debt; soundness
	// requires the mint ceiling to imply a ratio above the threshold:
	// 10000*10000/MaxLTVBps > LiquidationThresholdBps.
	impliedRatio := 10_000 * 10_000 / risk.MaxLTVBps
	if impliedRatio <= risk.LiquidationThresholdBps {
		return fmt.Errorf("config: MaxLTVBps %d admits positions below the liquidation threshold %d",
			risk.MaxLTVBps, risk.LiquidationThresholdBps)
	}
	if risk.LiquidationPenaltyBps >= 10_000 {
		return fmt.Errorf("config: LiquidationPenaltyBps must be below 10000, got %d", risk.LiquidationPenaltyBps)
	}
	if risk.LiquidatorRewardBps >= 10_000 {
		return fmt.Errorf("config: LiquidatorRewardBps must be below 10000, got %d", risk.LiquidatorRewardBps)
	}
	if risk.ClosureFeeBps >= 10_000 {
		return fmt.Errorf("config: ClosureFeeBps must be below 10000, got %d", risk.ClosureFeeBps)
	}
	if risk.MintFeeBps >= 10_000 {
		return fmt.Errorf("config: MintFeeBps must be below 10000, got %d", risk.MintFeeBps)
	}
	if risk.MinCollateralSatoshis == 0 {
		return fmt.Errorf("config: MinCollateralSatoshis must be positive")
	}
	if risk.MaxCollateralSatoshis > 0 && risk.MaxCollateralSatoshis < risk.MinCollateralSatoshis {
		return fmt.Errorf("config: MaxCollateralSatoshis %d below MinCollateralSatoshis %d",
			risk.MaxCollateralSatoshis, risk.MinCollateralSatoshis)
	}
	if risk.MinMintCents == 0 {
		return fmt.Errorf("config: MinMintCents must be positive")
	}
	if c.Oracle.MinConfidencePct > 100 {
		return fmt.Errorf("config: MinConfidencePct must be at most 100, got %d", c.Oracle.MinConfidencePct)
	}
	return nil
}
