package modules

import (
	"errors"
	"net/http"
	"time"

	protoerr "bollar/core/errors"
	"bollar/core/statetx"
	"bollar/core/types"
	"bollar/gateway/btcverify"
	"bollar/gateway/psbt"
	"bollar/native/cdp"
	"bollar/native/oracle"
	"bollar/observability"
)

// CDPModule bridges the RPC surface to the engines. Every mutating operation
// runs inside exactly one state transaction and holds the per-subject guard
// for its duration; read-only queries touch neither lock.
type CDPModule struct {
	engine   *cdp.Engine
	registry *cdp.Registry
	oracle   *oracle.Oracle
	txmgr    *statetx.Manager
	guard    *statetx.SubjectGuard
	verifier *btcverify.Verifier
}

// NewCDPModule wires the module to its collaborators.
func NewCDPModule(engine *cdp.Engine, registry *cdp.Registry, priceOracle *oracle.Oracle, txmgr *statetx.Manager) *CDPModule {
	return &CDPModule{
		engine:   engine,
		registry: registry,
		oracle:   priceOracle,
		txmgr:    txmgr,
		guard:    statetx.NewSubjectGuard(),
		verifier: btcverify.NewVerifier(),
	}
}

// DepositProof carries the facts about the collateral deposit transaction
// reported by the upstream Bitcoin watcher.
type DepositProof struct {
	TxHash        string    `json:"txHash"`
	Address       string    `json:"address"`
	Confirmations uint32    `json:"confirmations"`
	ObservedAt    time.Time `json:"observedAt"`
}

// createSubjectID is the guard id used for creation, which has no position
// id yet; one in-flight create per owner.
const createSubjectID = 0

// Create verifies the backing deposit and opens a new position against it.
func (m *CDPModule) Create(owner string, collateralSats uint64, deposit DepositProof) (*types.CDP, *ModuleError) {
	if _, err := m.verifier.Verify(deposit.TxHash, collateralSats, deposit.Address, deposit.Confirmations, deposit.ObservedAt); err != nil {
		m.record("cdp_create", "error")
		return nil, toModuleError(err)
	}
	price, merr := m.price()
	if merr != nil {
		m.record("cdp_create", "error")
		return nil, merr
	}
	if err := m.guard.Acquire(owner, createSubjectID); err != nil {
		m.record("cdp_create", "busy")
		return nil, toModuleError(err)
	}
	defer m.guard.Release(owner, createSubjectID)

	var created *types.CDP
	err := m.txmgr.Run("cdp_create", func() error {
		record, err := m.engine.Create(owner, collateralSats, price)
		if err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		m.record("cdp_create", "error")
		return nil, toModuleError(err)
	}
	m.record("cdp_create", "ok")
	return created, nil
}

// Mint raises a position's debt.
func (m *CDPModule) Mint(owner string, id, amountCents uint64) (*types.MintPreview, *ModuleError) {
	price, merr := m.price()
	if merr != nil {
		m.record("cdp_mint", "error")
		return nil, merr
	}
	if err := m.guard.Acquire(owner, id); err != nil {
		m.record("cdp_mint", "busy")
		return nil, toModuleError(err)
	}
	defer m.guard.Release(owner, id)

	var result *types.MintPreview
	err := m.txmgr.Run("cdp_mint", func() error {
		preview, err := m.engine.Mint(id, owner, amountCents, price)
		if err != nil {
			return err
		}
		result = preview
		return nil
	})
	if err != nil {
		m.record("cdp_mint", "error")
		return nil, toModuleError(err)
	}
	m.record("cdp_mint", "ok")
	return result, nil
}

// Liquidate force-closes an undercollateralized position. Permissionless;
// the caller identity is not checked.
func (m *CDPModule) Liquidate(id uint64) (*types.LiquidationAmounts, *ModuleError) {
	price, merr := m.price()
	if merr != nil {
		m.record("cdp_liquidate", "error")
		return nil, merr
	}
	record, err := m.registry.GetCDP(id)
	if err != nil {
		m.record("cdp_liquidate", "error")
		return nil, toModuleError(err)
	}
	if err := m.guard.Acquire(record.Owner, id); err != nil {
		m.record("cdp_liquidate", "busy")
		return nil, toModuleError(err)
	}
	defer m.guard.Release(record.Owner, id)

	var result *types.LiquidationAmounts
	err = m.txmgr.Run("cdp_liquidate", func() error {
		amounts, err := m.engine.Liquidate(id, price)
		if err != nil {
			return err
		}
		result = amounts
		return nil
	})
	if err != nil {
		m.record("cdp_liquidate", "error")
		return nil, toModuleError(err)
	}
	observability.Metrics().Liquidations.Inc()
	m.record("cdp_liquidate", "ok")
	return result, nil
}

// Close executes a voluntary full repayment.
func (m *CDPModule) Close(owner string, id, repaymentCents uint64) (*types.ClosurePreview, *ModuleError) {
	if err := m.guard.Acquire(owner, id); err != nil {
		m.record("cdp_close", "busy")
		return nil, toModuleError(err)
	}
	defer m.guard.Release(owner, id)

	var result *types.ClosurePreview
	err := m.txmgr.Run("cdp_close", func() error {
		preview, err := m.engine.Close(id, owner, repaymentCents)
		if err != nil {
			return err
		}
		result = preview
		return nil
	})
	if err != nil {
		m.record("cdp_close", "error")
		return nil, toModuleError(err)
	}
	m.record("cdp_close", "ok")
	return result, nil
}

// Get returns one position. Read-only, lock-free.
func (m *CDPModule) Get(id uint64) (*types.CDP, *ModuleError) {
	record, err := m.registry.GetCDP(id)
	if err != nil {
		return nil, toModuleError(err)
	}
	return record.Clone(), nil
}

// List returns every position recorded for an owner.
func (m *CDPModule) List(owner string) ([]*types.CDP, *ModuleError) {
	ids, err := m.registry.OwnerPositions(owner)
	if err != nil {
		return nil, toModuleError(err)
	}
	records := make([]*types.CDP, 0, len(ids))
	for _, id := range ids {
		record, err := m.registry.GetCDP(id)
		if err != nil {
			return nil, toModuleError(err)
		}
		records = append(records, record.Clone())
	}
	return records, nil
}

// PreviewMint computes a prospective mint without mutating state.
func (m *CDPModule) PreviewMint(id, amountCents uint64) (*types.MintPreview, *ModuleError) {
	price, merr := m.price()
	if merr != nil {
		return nil, merr
	}
	record, err := m.registry.GetCDP(id)
	if err != nil {
		return nil, toModuleError(err)
	}
	preview, err := cdp.PreviewMint(record, amountCents, price, m.engine.Params())
	if err != nil {
		return nil, toModuleError(err)
	}
	return preview, nil
}

// PreviewClosure computes the redemption breakdown without mutating state.
func (m *CDPModule) PreviewClosure(owner string, id, repaymentCents uint64) (*types.ClosurePreview, *ModuleError) {
	record, err := m.registry.GetCDP(id)
	if err != nil {
		return nil, toModuleError(err)
	}
	preview, err := cdp.PreviewClosure(record, owner, repaymentCents, m.engine.Params().ClosureFeeBps)
	if err != nil {
		return nil, toModuleError(err)
	}
	return preview, nil
}

// Scan reports per-position health at the current price.
func (m *CDPModule) Scan() ([]types.PositionHealth, *ModuleError) {
	price, merr := m.price()
	if merr != nil {
		return nil, merr
	}
	report, err := m.engine.Scan(price)
	if err != nil {
		return nil, toModuleError(err)
	}
	return report, nil
}

// OracleUpdate pushes a manual price observation through the oracle's
// acceptance rules.
func (m *CDPModule) OracleUpdate(priceCents uint64, source string, confidencePct uint8) *ModuleError {
	if err := m.oracle.Update(priceCents, source, confidencePct); err != nil {
		observability.Metrics().OracleUpdates.WithLabelValues("rejected").Inc()
		return toModuleError(err)
	}
	observability.Metrics().OracleUpdates.WithLabelValues("accepted").Inc()
	observability.Metrics().PriceCents.Set(float64(priceCents))
	return nil
}

// OracleStatusResult reports the cache entry and its health.
type OracleStatusResult struct {
	Price  *types.PriceCache `json:"price,omitempty"`
	Status oracle.Status     `json:"status"`
}

// OracleGet returns the current cache entry and staleness classification.
func (m *CDPModule) OracleGet() (*OracleStatusResult, *ModuleError) {
	cache, status, ok := m.oracle.Snapshot()
	result := &OracleStatusResult{Status: status}
	if ok {
		result.Price = &cache
	}
	return result, nil
}

// SystemStatusResult reports the emergency-pause state.
type SystemStatusResult struct {
	Paused bool `json:"paused"`
}

// Pause engages the emergency pause: every mutating engine operation is
// rejected until resumed. Queries stay available.
func (m *CDPModule) Pause() (*SystemStatusResult, *ModuleError) {
	m.engine.SetPaused(true)
	return &SystemStatusResult{Paused: true}, nil
}

// Resume releases the emergency pause.
func (m *CDPModule) Resume() (*SystemStatusResult, *ModuleError) {
	m.engine.SetPaused(false)
	return &SystemStatusResult{Paused: false}, nil
}

// ValidatePSBT checks a signed redemption transaction summary against the
// unsigned template handed out at closure.
func (m *CDPModule) ValidatePSBT(unsigned, signed psbt.TxSummary) *ModuleError {
	if err := psbt.ValidateSigned(unsigned, signed); err != nil {
		return toModuleError(err)
	}
	return nil
}

// History returns the retained state transactions, oldest first.
func (m *CDPModule) History() ([]types.StateTransaction, *ModuleError) {
	return m.txmgr.History(), nil
}

// Fees returns the accrued protocol revenue.
func (m *CDPModule) Fees() (*types.FeeAccrual, *ModuleError) {
	fees, err := m.registry.FeeAccrual()
	if err != nil {
		return nil, toModuleError(err)
	}
	return fees, nil
}

func (m *CDPModule) price() (uint64, *ModuleError) {
	price, err := m.oracle.Price()
	if err != nil {
		return 0, toModuleError(err)
	}
	return price, nil
}

func (m *CDPModule) record(method, outcome string) {
	observability.Metrics().Operations.WithLabelValues(method, outcome).Inc()
}

// toModuleError maps core errors onto RPC statuses and codes. Structured
// errors surface their fields in the data payload.
func toModuleError(err error) *ModuleError {
	if err == nil {
		return nil
	}

	var insufficient *protoerr.InsufficientCollateralError
	if errors.As(err, &insufficient) {
		return &ModuleError{
			HTTPStatus: http.StatusUnprocessableEntity,
			Code:       codeRejected,
			Message:    insufficient.Error(),
			Data: map[string]uint64{
				"requiredRatioBps": insufficient.RequiredRatioBps,
				"actualRatioBps":   insufficient.ActualRatioBps,
			},
		}
	}
	var healthy *protoerr.NotUndercollateralizedError
	if errors.As(err, &healthy) {
		return &ModuleError{
			HTTPStatus: http.StatusUnprocessableEntity,
			Code:       codeRejected,
			Message:    healthy.Error(),
			Data: map[string]uint64{
				"currentRatioBps": healthy.CurrentRatioBps,
				"thresholdBps":    healthy.ThresholdBps,
			},
		}
	}
	var tooSmall *protoerr.AmountTooSmallError
	if errors.As(err, &tooSmall) {
		return &ModuleError{
			HTTPStatus: http.StatusBadRequest,
			Code:       codeInvalidParams,
			Message:    tooSmall.Error(),
			Data: map[string]interface{}{
				"actual": tooSmall.Actual,
				"min":    tooSmall.Min,
				"unit":   tooSmall.Unit,
			},
		}
	}
	var repayment *protoerr.InvalidRepaymentError
	if errors.As(err, &repayment) {
		return &ModuleError{
			HTTPStatus: http.StatusUnprocessableEntity,
			Code:       codeRejected,
			Message:    repayment.Error(),
			Data: map[string]uint64{
				"expectedCents": repayment.ExpectedCents,
				"actualCents":   repayment.ActualCents,
			},
		}
	}

	switch {
	case errors.Is(err, protoerr.ErrCDPNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, protoerr.ErrUnauthorizedAccess):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, protoerr.ErrCDPAlreadyLiquidated),
		errors.Is(err, protoerr.ErrInvalidState):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeConflict, Message: err.Error()}
	case errors.Is(err, statetx.ErrSubjectBusy),
		errors.Is(err, statetx.ErrLocked):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeConflict, Message: err.Error()}
	case errors.Is(err, cdp.ErrModulePaused):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeConflict, Message: err.Error()}
	case errors.Is(err, protoerr.ErrInvalidAmount),
		errors.Is(err, protoerr.ErrInvalidOwner),
		errors.Is(err, protoerr.ErrMathOverflow),
		errors.Is(err, protoerr.ErrInvalidAddress),
		errors.Is(err, btcverify.ErrInvalidTxHash):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, btcverify.ErrInsufficientConfirmations),
		errors.Is(err, btcverify.ErrTxTooOld):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: codeRejected, Message: err.Error()}
	case errors.Is(err, psbt.ErrInputCountMismatch),
		errors.Is(err, psbt.ErrOutputCountMismatch),
		errors.Is(err, psbt.ErrMissingUTXORef),
		errors.Is(err, psbt.ErrValueNotCovered),
		errors.Is(err, psbt.ErrFeeTooHigh):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: codeRejected, Message: err.Error()}
	case errors.Is(err, protoerr.ErrOraclePrice),
		errors.Is(err, oracle.ErrLowConfidence),
		errors.Is(err, oracle.ErrPriceDeviation):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: codeRejected, Message: err.Error()}
	}
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
}
