package cdp

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	protoerr "bollar/core/errors"
	"bollar/core/types"
)

var errNilState = errors.New("cdp engine: state not configured")

// ErrModulePaused rejects every mutating operation while the emergency pause
// is engaged. Queries stay available.
var ErrModulePaused = errors.New("cdp engine: module paused")

// ratioSentinelBps is reported for positions with no outstanding debt. Such
// positions are never liquidatable.
const ratioSentinelBps = math.MaxUint64

// engineState is the persistence surface the engine mutates. The registry is
// the production implementation; tests may substitute their own.
type engineState interface {
	NextID() (uint64, error)
	GetCDP(id uint64) (*types.CDP, error)
	PutCDP(record *types.CDP) error
	AppendOwner(owner string, id uint64) error
	IterateCDPs(fn func(*types.CDP) bool) error
	FeeAccrual() (*types.FeeAccrual, error)
	PutFeeAccrual(fees *types.FeeAccrual) error
}

// Engine orchestrates the CDP lifecycle: creation, minting, liquidation, and
// closure. Liquidation policy is always-full: eligible positions are unwound
// for their entire debt in one step.
type Engine struct {
	state  engineState
	params types.RiskParameters
	now    func() time.Time
	paused atomic.Bool
}

// NewEngine constructs an engine with the supplied risk parameters.
func NewEngine(params types.RiskParameters) *Engine {
	return &Engine{
		params: params,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetClock overrides the time source. Tests use this for deterministic
// timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

// SetPaused engages or releases the emergency pause.
func (e *Engine) SetPaused(paused bool) {
	if e == nil {
		return
	}
	e.paused.Store(paused)
}

// Paused reports whether the emergency pause is engaged.
func (e *Engine) Paused() bool {
	if e == nil {
		return false
	}
	return e.paused.Load()
}

// Params returns the configured risk parameters.
func (e *Engine) Params() types.RiskParameters {
	if e == nil {
		return types.RiskParameters{}
	}
	return e.params
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.paused.Load() {
		return ErrModulePaused
	}
	return nil
}

// Create validates a collateral deposit and opens a new active position with
// zero debt. The backing BTC transaction has already been authenticated by
// the verifier before this call; only economic bounds are enforced here.
func (e *Engine) Create(owner string, collateralSatoshis, priceCents uint64) (*types.CDP, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(owner)
	if trimmed == "" {
		return nil, protoerr.ErrInvalidOwner
	}
	if collateralSatoshis < e.params.MinCollateralSatoshis {
		return nil, &protoerr.AmountTooSmallError{
			Actual: collateralSatoshis,
			Min:    e.params.MinCollateralSatoshis,
			Unit:   "satoshis",
		}
	}
	if e.params.MaxCollateralSatoshis > 0 && collateralSatoshis > e.params.MaxCollateralSatoshis {
		return nil, protoerr.ErrInvalidAmount
	}
	if priceCents == 0 {
		return nil, protoerr.ErrOraclePrice
	}

	value, err := collateralValueCents(collateralSatoshis, priceCents)
	if err != nil {
		return nil, err
	}
	ceiling, err := bpsShare(value, e.params.MaxLTVBps)
	if err != nil {
		return nil, err
	}
	// Dust protection: a position whose ceiling cannot clear the minimum
	// mint would be permanently unusable.
	if ceiling < e.params.MinMintCents {
		return nil, &protoerr.AmountTooSmallError{
			Actual: ceiling,
			Min:    e.params.MinMintCents,
			Unit:   "cents",
		}
	}

	id, err := e.state.NextID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	record := &types.CDP{
		ID:                 id,
		Owner:              trimmed,
		CollateralSatoshis: collateralSatoshis,
		MintedCents:        0,
		CreatedAt:          now,
		UpdatedAt:          now,
		State:              types.CDPStateActive,
	}
	if err := e.state.PutCDP(record); err != nil {
		return nil, err
	}
	if err := e.state.AppendOwner(trimmed, id); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// CollateralizationRatioBps returns value/debt in basis points, or the
// sentinel maximum for debt-free positions.
func CollateralizationRatioBps(record *types.CDP, priceCents uint64) (uint64, error) {
	if record == nil {
		return 0, protoerr.ErrCDPNotFound
	}
	if record.MintedCents == 0 {
		return ratioSentinelBps, nil
	}
	value, err := collateralValueCents(record.CollateralSatoshis, priceCents)
	if err != nil {
		return 0, err
	}
	return mulDiv(value, basisPoints, record.MintedCents)
}

func (e *Engine) loadActive(id uint64) (*types.CDP, error) {
	record, err := e.state.GetCDP(id)
	if err != nil {
		return nil, err
	}
	if record.State.Terminal() {
		return nil, protoerr.ErrCDPAlreadyLiquidated
	}
	return record, nil
}
