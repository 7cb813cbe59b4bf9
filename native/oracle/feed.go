package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Observation is a single upstream price report before it enters the cache.
type Observation struct {
	PriceCents    uint64
	Source        string
	ConfidencePct uint8
	ObservedAt    time.Time
}

// Feed resolves the current BTC/USD price from an upstream source.
type Feed interface {
	Fetch(ctx context.Context) (Observation, error)
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ManualFeed is an in-memory feed used in tests and for manual overrides
// during incident response.
type ManualFeed struct {
	mu  sync.RWMutex
	obs *Observation
}

// NewManualFeed constructs an empty manual feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// Set stores the observation returned by subsequent fetches.
func (m *ManualFeed) Set(priceCents uint64, confidencePct uint8, ts time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.obs = &Observation{
		PriceCents:    priceCents,
		Source:        "manual",
		ConfidencePct: confidencePct,
		ObservedAt:    ts,
	}
	m.mu.Unlock()
}

func (m *ManualFeed) Fetch(_ context.Context) (Observation, error) {
	if m == nil {
		return Observation{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.obs == nil {
		return Observation{}, fmt.Errorf("manual feed: no observation set")
	}
	return *m.obs, nil
}

// CoinGeckoFeed adapts the public CoinGecko simple price API for BTC/USD.
type CoinGeckoFeed struct {
	client        HTTPDoer
	endpoint      string
	confidencePct uint8
}

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// NewCoinGeckoFeed constructs the adapter. When client is nil
// http.DefaultClient is used. confidencePct is the score attached to every
// observation; the API itself reports none.
func NewCoinGeckoFeed(client HTTPDoer, endpoint string, confidencePct uint8) *CoinGeckoFeed {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultCoinGeckoEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CoinGeckoFeed{client: client, endpoint: ep, confidencePct: confidencePct}
}

func (f *CoinGeckoFeed) Fetch(ctx context.Context) (Observation, error) {
	if f == nil {
		return Observation{}, fmt.Errorf("coingecko feed not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Observation{}, err
	}
	values := url.Values{}
	values.Set("ids", "bitcoin")
	values.Set("vs_currencies", "usd")
	values.Set("include_last_updated_at", "true")
	req.URL.RawQuery = values.Encode()
	resp, err := f.client.Do(req)
	if err != nil {
		return Observation{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Observation{}, fmt.Errorf("coingecko feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Bitcoin struct {
			USD           float64 `json:"usd"`
			LastUpdatedAt int64   `json:"last_updated_at"`
		} `json:"bitcoin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Observation{}, fmt.Errorf("coingecko feed: decode: %w", err)
	}
	if payload.Bitcoin.USD <= 0 {
		return Observation{}, fmt.Errorf("coingecko feed: empty price")
	}
	cents := payload.Bitcoin.USD * 100
	if cents >= math.MaxUint64 {
		return Observation{}, fmt.Errorf("coingecko feed: price out of range")
	}
	ts := time.Now().UTC()
	if payload.Bitcoin.LastUpdatedAt > 0 {
		ts = time.Unix(payload.Bitcoin.LastUpdatedAt, 0).UTC()
	}
	return Observation{
		PriceCents:    uint64(cents),
		Source:        "coingecko",
		ConfidencePct: f.confidencePct,
		ObservedAt:    ts,
	}, nil
}

// Poller periodically fetches from a feed and pushes the observation into
// the oracle. Rejected updates are logged and skipped; the oracle keeps
// serving its last-known price.
type Poller struct {
	oracle   *Oracle
	feed     Feed
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller wires a feed to the oracle.
func NewPoller(o *Oracle, feed Feed, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{oracle: o, feed: feed, interval: interval, logger: logger}
}

// Run polls until the context is cancelled. It performs one immediate fetch
// so the oracle is primed before the first tick.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.oracle == nil || p.feed == nil {
		return
	}
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	obs, err := p.feed.Fetch(ctx)
	if err != nil {
		p.logger.Warn("price fetch failed", slog.Any("error", err))
		return
	}
	if err := p.oracle.Update(obs.PriceCents, obs.Source, obs.ConfidencePct); err != nil {
		p.logger.Warn("price update rejected",
			slog.String("source", obs.Source),
			slog.Uint64("priceCents", obs.PriceCents),
			slog.Any("error", err))
	}
}
