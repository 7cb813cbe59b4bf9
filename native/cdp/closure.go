package cdp

import (
	protoerr "bollar/core/errors"
	"bollar/core/types"
)

// ValidateClosure checks a voluntary closure request. Only the owner may
// close, only active positions can be closed, and the repayment must equal
// the outstanding debt exactly; partial closure is unsupported.
func ValidateClosure(record *types.CDP, caller string, repaymentCents uint64) error {
	if record == nil {
		return protoerr.ErrCDPNotFound
	}
	if record.Owner != caller {
		return protoerr.ErrUnauthorizedAccess
	}
	if record.State != types.CDPStateActive {
		return protoerr.ErrCDPAlreadyLiquidated
	}
	if repaymentCents != record.MintedCents {
		return &protoerr.InvalidRepaymentError{
			ExpectedCents: record.MintedCents,
			ActualCents:   repaymentCents,
		}
	}
	return nil
}

// RedemptionAmount returns the collateral handed back at closure after the
// flat percentage fee. Price-independent by design.
func RedemptionAmount(record *types.CDP, feeBps uint64) (uint64, error) {
	if record == nil {
		return 0, protoerr.ErrCDPNotFound
	}
	fee, err := bpsShare(record.CollateralSatoshis, feeBps)
	if err != nil {
		return 0, err
	}
	return saturatingSub(record.CollateralSatoshis, fee), nil
}

// PreviewClosure computes the redemption breakdown without mutating state.
func PreviewClosure(record *types.CDP, caller string, repaymentCents, feeBps uint64) (*types.ClosurePreview, error) {
	if err := ValidateClosure(record, caller, repaymentCents); err != nil {
		return nil, err
	}
	redemption, err := RedemptionAmount(record, feeBps)
	if err != nil {
		return nil, err
	}
	return &types.ClosurePreview{
		CDPID:              record.ID,
		RepaymentCents:     repaymentCents,
		RedemptionSatoshis: redemption,
		ClosureFeeSatoshis: record.CollateralSatoshis - redemption,
	}, nil
}

// Close executes a validated full repayment and marks the position closed.
// Terminal: the record becomes immutable afterwards.
func (e *Engine) Close(id uint64, caller string, repaymentCents uint64) (*types.ClosurePreview, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	record, err := e.state.GetCDP(id)
	if err != nil {
		return nil, err
	}
	preview, err := PreviewClosure(record, caller, repaymentCents, e.params.ClosureFeeBps)
	if err != nil {
		return nil, err
	}

	record.State = types.CDPStateClosed
	record.UpdatedAt = e.now()
	if err := e.state.PutCDP(record); err != nil {
		return nil, err
	}
	if preview.ClosureFeeSatoshis > 0 {
		fees, err := e.state.FeeAccrual()
		if err != nil {
			return nil, err
		}
		fees.ClosureFeeSatoshis, err = checkedAdd(fees.ClosureFeeSatoshis, preview.ClosureFeeSatoshis)
		if err != nil {
			return nil, err
		}
		if err := e.state.PutFeeAccrual(fees); err != nil {
			return nil, err
		}
	}
	return preview, nil
}
