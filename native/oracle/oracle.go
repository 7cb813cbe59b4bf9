package oracle

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"

	protoerr "bollar/core/errors"
	"bollar/core/types"
)

// Status classifies the health of the served price.
type Status string

const (
	// StatusOK means the cached observation is inside its validity window.
	StatusOK Status = "ok"
	// StatusStale means the cache expired and the last-known price is
	// being served instead. Availability is favoured over freshness.
	StatusStale Status = "stale"
)

var (
	// ErrLowConfidence rejects updates below the configured confidence floor.
	ErrLowConfidence = errors.New("oracle: confidence below minimum")
	// ErrPriceDeviation rejects updates tripping the circuit breaker.
	ErrPriceDeviation = errors.New("oracle: price change exceeds circuit breaker")
)

// Config bounds what the oracle will accept and how long it trusts a quote.
type Config struct {
	// MinConfidencePct is the lowest confidence score an update may carry.
	MinConfidencePct uint8
	// MaxChangePct trips the circuit breaker when an update moves more
	// than this percentage from the last accepted price.
	MaxChangePct uint64
	// TTL bounds how long an accepted observation is served as fresh.
	TTL time.Duration
}

// Oracle maintains the time-bounded, confidence-scored BTC/USD price cache.
// It is the sole price source for every engine. Reads never fail once a
// first price has been accepted: a stale cache falls back to the last-known
// price rather than erroring.
type Oracle struct {
	mu        sync.RWMutex
	cfg       Config
	cache     *types.PriceCache
	lastKnown uint64
	now       func() time.Time
}

// New constructs an oracle with the supplied bounds.
func New(cfg Config) *Oracle {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Oracle{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (o *Oracle) SetClock(now func() time.Time) {
	if o == nil || now == nil {
		return
	}
	o.mu.Lock()
	o.now = now
	o.mu.Unlock()
}

// Update validates and installs a fresh observation, replacing the cache
// wholesale. Low-confidence quotes and moves beyond the circuit breaker are
// rejected without touching existing state. No internal retries; callers
// decide how to respond.
func (o *Oracle) Update(priceCents uint64, source string, confidencePct uint8) error {
	if o == nil {
		return protoerr.ErrOraclePrice
	}
	if priceCents == 0 {
		return fmt.Errorf("oracle: price must be positive")
	}
	if confidencePct < o.cfg.MinConfidencePct {
		return fmt.Errorf("%w: %d%% < %d%%", ErrLowConfidence, confidencePct, o.cfg.MinConfidencePct)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lastKnown > 0 && o.cfg.MaxChangePct > 0 {
		if exceedsChange(priceCents, o.lastKnown, o.cfg.MaxChangePct) {
			return fmt.Errorf("%w: %d cents against last %d exceeds %d%%",
				ErrPriceDeviation, priceCents, o.lastKnown, o.cfg.MaxChangePct)
		}
	}

	now := o.now()
	o.cache = &types.PriceCache{
		PriceCents:    priceCents,
		Source:        source,
		ConfidencePct: confidencePct,
		ObservedAt:    now,
		ExpiresAt:     now.Add(o.cfg.TTL),
	}
	o.lastKnown = priceCents
	return nil
}

// Price returns the cached price when valid, falling back to the last-known
// price otherwise. Errors only before the first accepted update.
func (o *Oracle) Price() (uint64, error) {
	if o == nil {
		return 0, protoerr.ErrOraclePrice
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cache != nil && o.cache.Valid(o.now(), o.cfg.MinConfidencePct) {
		return o.cache.PriceCents, nil
	}
	if o.lastKnown > 0 {
		return o.lastKnown, nil
	}
	return 0, protoerr.ErrOraclePrice
}

// Snapshot returns a copy of the current cache entry and its health status.
// The second return is false before the first accepted update.
func (o *Oracle) Snapshot() (types.PriceCache, Status, bool) {
	if o == nil {
		return types.PriceCache{}, StatusStale, false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cache == nil {
		return types.PriceCache{}, StatusStale, false
	}
	status := StatusStale
	if o.cache.Valid(o.now(), o.cfg.MinConfidencePct) {
		status = StatusOK
	}
	return *o.cache, status, true
}

// exceedsChange reports whether |a-b|/b*100 > maxPct. Compared as
// |a-b|*100 > maxPct*b with 128-bit products so fractional percentages are
// never truncated away and the products never wrap.
func exceedsChange(a, b, maxPct uint64) bool {
	diff := a - b
	if b > a {
		diff = b - a
	}
	hiDiff, loDiff := bits.Mul64(diff, 100)
	hiMax, loMax := bits.Mul64(maxPct, b)
	if hiDiff != hiMax {
		return hiDiff > hiMax
	}
	return loDiff > loMax
}
