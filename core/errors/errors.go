package errors

import (
	"fmt"

	stderrors "errors"
)

// Sentinel errors for conditions carrying no extra context.
var (
	ErrCDPNotFound          = stderrors.New("cdp: position not found")
	ErrCDPAlreadyLiquidated = stderrors.New("cdp: position already terminal")
	ErrInvalidAmount        = stderrors.New("cdp: invalid amount")
	ErrInvalidOwner         = stderrors.New("cdp: owner must be non-empty")
	ErrUnauthorizedAccess   = stderrors.New("cdp: caller is not the position owner")
	ErrOraclePrice          = stderrors.New("oracle: no price available")
	ErrInvalidAddress       = stderrors.New("btc: invalid address")
	ErrMathOverflow         = stderrors.New("math: integer overflow")
	ErrInvalidState         = stderrors.New("cdp: invalid state transition")
)

// InsufficientCollateralError reports a mint rejected because the resulting
// debt would breach the collateral limits. Ratios are collateralization
// (value/debt) in basis points.
type InsufficientCollateralError struct {
	RequiredRatioBps uint64
	ActualRatioBps   uint64
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("cdp: insufficient collateral: resulting ratio %d bps below required %d bps",
		e.ActualRatioBps, e.RequiredRatioBps)
}

// NotUndercollateralizedError reports a liquidation attempt against a healthy
// position.
type NotUndercollateralizedError struct {
	CurrentRatioBps uint64
	ThresholdBps    uint64
}

func (e *NotUndercollateralizedError) Error() string {
	return fmt.Sprintf("cdp: not undercollateralized: ratio %d bps at threshold %d bps",
		e.CurrentRatioBps, e.ThresholdBps)
}

// AmountTooSmallError reports an amount below a configured minimum. Unit
// names the denomination for operators reading logs.
type AmountTooSmallError struct {
	Actual uint64
	Min    uint64
	Unit   string
}

func (e *AmountTooSmallError) Error() string {
	return fmt.Sprintf("cdp: amount too small: %d %s below minimum %d", e.Actual, e.Unit, e.Min)
}

// InvalidRepaymentError reports a closure attempt that does not repay the
// outstanding debt exactly. Partial closure is not supported.
type InvalidRepaymentError struct {
	ExpectedCents uint64
	ActualCents   uint64
}

func (e *InvalidRepaymentError) Error() string {
	return fmt.Sprintf("cdp: invalid repayment: expected %d cents, got %d", e.ExpectedCents, e.ActualCents)
}
