package cdp

import (
	protoerr "bollar/core/errors"
	"bollar/core/types"
)

// Eligible reports whether a position may be forcibly liquidated at the given
// price. The comparison is a literal ratio < threshold; positions sitting
// exactly on the threshold are safe.
func Eligible(record *types.CDP, priceCents, thresholdBps uint64) (bool, error) {
	if record == nil {
		return false, protoerr.ErrCDPNotFound
	}
	if record.State.Terminal() {
		return false, nil
	}
	ratio, err := CollateralizationRatioBps(record, priceCents)
	if err != nil {
		return false, err
	}
	return ratio < thresholdBps, nil
}

// Amounts computes the liquidation economics for a position. The penalty is
// charged on debt while the liquidator reward is carved from collateral; the
// two deliberately use different bases.
func Amounts(record *types.CDP, priceCents, penaltyBps, rewardBps uint64) (*types.LiquidationAmounts, error) {
	if record == nil {
		return nil, protoerr.ErrCDPNotFound
	}
	penalty, err := bpsShare(record.MintedCents, penaltyBps)
	if err != nil {
		return nil, err
	}
	totalRepayment, err := checkedAdd(record.MintedCents, penalty)
	if err != nil {
		return nil, err
	}
	reward, err := bpsShare(record.CollateralSatoshis, rewardBps)
	if err != nil {
		return nil, err
	}
	ratio, err := CollateralizationRatioBps(record, priceCents)
	if err != nil {
		return nil, err
	}
	return &types.LiquidationAmounts{
		CDPID:                       record.ID,
		DebtCents:                   record.MintedCents,
		PenaltyCents:                penalty,
		TotalRepaymentCents:         totalRepayment,
		LiquidatorRewardSatoshis:    reward,
		RemainingCollateralSatoshis: saturatingSub(record.CollateralSatoshis, reward),
		CurrentRatioBps:             ratio,
	}, nil
}

// Liquidate force-closes an undercollateralized position. Permissionless by
// design: the reward substitutes for an authorization gate, so the caller is
// never checked against the owner. The unwind always covers the full debt.
func (e *Engine) Liquidate(id uint64, priceCents uint64) (*types.LiquidationAmounts, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	record, err := e.state.GetCDP(id)
	if err != nil {
		return nil, err
	}
	if record.State != types.CDPStateActive {
		return nil, protoerr.ErrCDPAlreadyLiquidated
	}
	ratio, err := CollateralizationRatioBps(record, priceCents)
	if err != nil {
		return nil, err
	}
	if ratio >= e.params.LiquidationThresholdBps {
		return nil, &protoerr.NotUndercollateralizedError{
			CurrentRatioBps: ratio,
			ThresholdBps:    e.params.LiquidationThresholdBps,
		}
	}
	amounts, err := Amounts(record, priceCents, e.params.LiquidationPenaltyBps, e.params.LiquidatorRewardBps)
	if err != nil {
		return nil, err
	}

	record.State = types.CDPStateLiquidated
	record.UpdatedAt = e.now()
	if err := e.state.PutCDP(record); err != nil {
		return nil, err
	}
	fees, err := e.state.FeeAccrual()
	if err != nil {
		return nil, err
	}
	fees.LiquidationPenaltyCents, err = checkedAdd(fees.LiquidationPenaltyCents, amounts.PenaltyCents)
	if err != nil {
		return nil, err
	}
	if err := e.state.PutFeeAccrual(fees); err != nil {
		return nil, err
	}
	return amounts, nil
}

// Scan walks every position in id order and reports per-position health at
// the given price. Read-only; callers drive liquidation off the eligible set.
func (e *Engine) Scan(priceCents uint64) ([]types.PositionHealth, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var (
		report  []types.PositionHealth
		scanErr error
	)
	err := e.state.IterateCDPs(func(record *types.CDP) bool {
		ratio, err := CollateralizationRatioBps(record, priceCents)
		if err != nil {
			scanErr = err
			return false
		}
		report = append(report, types.PositionHealth{
			CDPID:       record.ID,
			Owner:       record.Owner,
			State:       record.State,
			RatioBps:    ratio,
			Eligible:    record.State == types.CDPStateActive && ratio < e.params.LiquidationThresholdBps,
			MintedCents: record.MintedCents,
		})
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
