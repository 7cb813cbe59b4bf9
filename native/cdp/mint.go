package cdp

import (
	protoerr "bollar/core/errors"
	"bollar/core/types"
)

// MaxMintable returns the total-debt ceiling for a position at the given
// price. This caps the aggregate minted amount, not a single increment.
func MaxMintable(record *types.CDP, priceCents, maxLTVBps uint64) (uint64, error) {
	if record == nil {
		return 0, protoerr.ErrCDPNotFound
	}
	value, err := collateralValueCents(record.CollateralSatoshis, priceCents)
	if err != nil {
		return 0, err
	}
	return mulDiv(value, maxLTVBps, basisPoints)
}

// PreviewMint computes the outcome of a prospective mint without mutating the
// position. Pure function of (CDP, price, params).
func PreviewMint(record *types.CDP, requestedCents, priceCents uint64, params types.RiskParameters) (*types.MintPreview, error) {
	if record == nil {
		return nil, protoerr.ErrCDPNotFound
	}
	if record.State.Terminal() {
		return nil, protoerr.ErrCDPAlreadyLiquidated
	}
	if requestedCents == 0 {
		return nil, protoerr.ErrInvalidAmount
	}
	if requestedCents < params.MinMintCents {
		return nil, &protoerr.AmountTooSmallError{
			Actual: requestedCents,
			Min:    params.MinMintCents,
			Unit:   "cents",
		}
	}

	newTotal, err := checkedAdd(record.MintedCents, requestedCents)
	if err != nil {
		return nil, err
	}
	value, err := collateralValueCents(record.CollateralSatoshis, priceCents)
	if err != nil {
		return nil, err
	}
	ceiling, err := mulDiv(value, params.MaxLTVBps, basisPoints)
	if err != nil {
		return nil, err
	}
	ratio, err := mulDiv(value, basisPoints, newTotal)
	if err != nil {
		return nil, err
	}
	if newTotal > ceiling {
		return nil, &protoerr.InsufficientCollateralError{
			RequiredRatioBps: params.LiquidationThresholdBps,
			ActualRatioBps:   ratio,
		}
	}
	// Defense in depth: the LTV gate above should already keep the
	// position clear of the liquidation threshold, but the two ratios use
	// different bases so both are checked.
	if ratio < params.LiquidationThresholdBps {
		return nil, &protoerr.InsufficientCollateralError{
			RequiredRatioBps: params.LiquidationThresholdBps,
			ActualRatioBps:   ratio,
		}
	}

	fee := uint64(0)
	if params.MintFeeBps > 0 {
		fee, err = bpsShare(requestedCents, params.MintFeeBps)
		if err != nil {
			return nil, err
		}
	}
	return &types.MintPreview{
		CDPID:                record.ID,
		RequestedCents:       requestedCents,
		FeeCents:             fee,
		CreditedCents:        requestedCents - fee,
		NewTotalMintedCents:  newTotal,
		MaxMintableCents:     ceiling,
		ResultingRatioBps:    ratio,
		CollateralValueCents: value,
	}, nil
}

// Mint increases a position's debt by the requested amount. The recorded debt
// is always the full requested total; the optional protocol fee is carved out
// of the credited proceeds, never out of the recorded debt.
func (e *Engine) Mint(id uint64, caller string, requestedCents, priceCents uint64) (*types.MintPreview, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	record, err := e.loadActive(id)
	if err != nil {
		return nil, err
	}
	if record.Owner != caller {
		return nil, protoerr.ErrUnauthorizedAccess
	}
	preview, err := PreviewMint(record, requestedCents, priceCents, e.params)
	if err != nil {
		return nil, err
	}

	record.MintedCents = preview.NewTotalMintedCents
	record.UpdatedAt = e.now()
	if err := e.state.PutCDP(record); err != nil {
		return nil, err
	}
	if preview.FeeCents > 0 {
		fees, err := e.state.FeeAccrual()
		if err != nil {
			return nil, err
		}
		fees.MintFeesCents, err = checkedAdd(fees.MintFeesCents, preview.FeeCents)
		if err != nil {
			return nil, err
		}
		if err := e.state.PutFeeAccrual(fees); err != nil {
			return nil, err
		}
	}
	return preview, nil
}
