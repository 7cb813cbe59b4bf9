package types

import (
	"time"
)

// CDPState tags the lifecycle stage of a position. The tag replaces a single
// liquidated flag so that forced liquidation and voluntary closure remain
// distinguishable in reporting.
type CDPState string

const (
	// CDPStateActive marks a live position that may mint, close, or be
	// liquidated.
	CDPStateActive CDPState = "active"
	// CDPStateLiquidated marks a position forcibly unwound by a third party.
	CDPStateLiquidated CDPState = "liquidated"
	// CDPStateClosed marks a position voluntarily repaid by its owner.
	CDPStateClosed CDPState = "closed"
)

// Terminal reports whether the state permits no further mutation.
func (s CDPState) Terminal() bool {
	return s == CDPStateLiquidated || s == CDPStateClosed
}

// CDP is a collateralized debt position: locked BTC collateral against a
// minted stable balance. Records are never deleted; terminal positions are
// retained for audit.
type CDP struct {
	// ID is allocated monotonically and never reused.
	ID uint64 `json:"id"`
	// Owner is an opaque account identifier; ownership gates closure only.
	Owner string `json:"owner"`
	// CollateralSatoshis is the locked collateral, always positive while
	// the position is active.
	CollateralSatoshis uint64 `json:"collateralSatoshis"`
	// MintedCents is the outstanding debt denominated in stable cents.
	MintedCents uint64    `json:"mintedCents"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	State       CDPState  `json:"state"`
}

// Clone returns a deep copy so callers cannot mutate registry-held records.
func (c *CDP) Clone() *CDP {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// RiskParameters groups the protocol safety limits governing position
// lifecycle, expressed in basis points and base units.
type RiskParameters struct {
	// MaxLTVBps caps debt/collateral-value at mint time.
	MaxLTVBps uint64 `toml:"MaxLTVBps" json:"maxLtvBps"`
	// LiquidationThresholdBps is the collateral-value/debt ratio below
	// which forced liquidation becomes eligible. Note the inverse sense of
	// MaxLTVBps; the two are never compared directly.
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps" json:"liquidationThresholdBps"`
	// LiquidationPenaltyBps is charged on outstanding debt at liquidation.
	LiquidationPenaltyBps uint64 `toml:"LiquidationPenaltyBps" json:"liquidationPenaltyBps"`
	// LiquidatorRewardBps is carved from collateral for the liquidator.
	LiquidatorRewardBps uint64 `toml:"LiquidatorRewardBps" json:"liquidatorRewardBps"`
	// ClosureFeeBps is the flat collateral fee retained at voluntary closure.
	ClosureFeeBps uint64 `toml:"ClosureFeeBps" json:"closureFeeBps"`
	// MintFeeBps is the optional protocol fee on minted amounts; zero
	// disables it.
	MintFeeBps            uint64 `toml:"MintFeeBps" json:"mintFeeBps"`
	MinCollateralSatoshis uint64 `toml:"MinCollateralSatoshis" json:"minCollateralSatoshis"`
	MaxCollateralSatoshis uint64 `toml:"MaxCollateralSatoshis" json:"maxCollateralSatoshis"`
	MinMintCents          uint64 `toml:"MinMintCents" json:"minMintCents"`
}

// PriceCache is the confidence-scored BTC/USD observation served to every
// engine. Replaced wholesale on each accepted update, never partially mutated.
type PriceCache struct {
	PriceCents    uint64    `json:"priceCents"`
	Source        string    `json:"source"`
	ConfidencePct uint8     `json:"confidencePct"`
	ObservedAt    time.Time `json:"observedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Valid reports whether the cache entry may be served as fresh.
func (p *PriceCache) Valid(now time.Time, minConfidence uint8) bool {
	if p == nil {
		return false
	}
	return now.Before(p.ExpiresAt) && p.ConfidencePct >= minConfidence
}

// MintPreview is the derived outcome of a prospective mint. Pure function of
// (CDP, price, params); never persisted.
type MintPreview struct {
	CDPID                uint64 `json:"cdpId"`
	RequestedCents       uint64 `json:"requestedCents"`
	FeeCents             uint64 `json:"feeCents"`
	CreditedCents        uint64 `json:"creditedCents"`
	NewTotalMintedCents  uint64 `json:"newTotalMintedCents"`
	MaxMintableCents     uint64 `json:"maxMintableCents"`
	ResultingRatioBps    uint64 `json:"resultingRatioBps"`
	CollateralValueCents uint64 `json:"collateralValueCents"`
}

// LiquidationAmounts breaks down the economics of a forced unwind. The
// penalty is debt-denominated while the reward is collateral-denominated;
// the differing bases are deliberate.
type LiquidationAmounts struct {
	CDPID                       uint64 `json:"cdpId"`
	DebtCents                   uint64 `json:"debtCents"`
	PenaltyCents                uint64 `json:"penaltyCents"`
	TotalRepaymentCents         uint64 `json:"totalRepaymentCents"`
	LiquidatorRewardSatoshis    uint64 `json:"liquidatorRewardSatoshis"`
	RemainingCollateralSatoshis uint64 `json:"remainingCollateralSatoshis"`
	CurrentRatioBps             uint64 `json:"currentRatioBps"`
}

// ClosurePreview is the derived outcome of a voluntary closure.
type ClosurePreview struct {
	CDPID              uint64 `json:"cdpId"`
	RepaymentCents     uint64 `json:"repaymentCents"`
	RedemptionSatoshis uint64 `json:"redemptionSatoshis"`
	ClosureFeeSatoshis uint64 `json:"closureFeeSatoshis"`
}

// PositionHealth summarises one position during a liquidation scan.
type PositionHealth struct {
	CDPID       uint64   `json:"cdpId"`
	Owner       string   `json:"owner"`
	State       CDPState `json:"state"`
	RatioBps    uint64   `json:"ratioBps"`
	Eligible    bool     `json:"eligible"`
	MintedCents uint64   `json:"mintedCents"`
}

// FeeAccrual tracks protocol revenue across operations.
type FeeAccrual struct {
	MintFeesCents           uint64 `json:"mintFeesCents"`
	LiquidationPenaltyCents uint64 `json:"liquidationPenaltyCents"`
	ClosureFeeSatoshis      uint64 `json:"closureFeeSatoshis"`
}

// StateSnapshot is a point-in-time copy of the full registry taken at a
// transaction boundary.
type StateSnapshot struct {
	Operation string     `json:"operation"`
	TakenAt   time.Time  `json:"takenAt"`
	NextID    uint64     `json:"nextId"`
	CDPs      []CDP      `json:"cdps"`
	Fees      FeeAccrual `json:"fees"`
}

// TransactionStatus records the terminal outcome of a state transaction.
type TransactionStatus string

const (
	TransactionStatusOpen       TransactionStatus = "open"
	TransactionStatusCommitted  TransactionStatus = "committed"
	TransactionStatusRolledBack TransactionStatus = "rolled_back"
)

// StateTransaction links the before and after snapshots of one mutating
// operation together with its outcome.
type StateTransaction struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt,omitempty"`
	Status    TransactionStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Before    *StateSnapshot    `json:"before,omitempty"`
	After     *StateSnapshot    `json:"after,omitempty"`
}
