// Package market fetches normalized token market data from public DEX
// aggregator APIs with a configurable fallback ladder and a last-good
// snapshot cache.
package market

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Quote is a normalized market data record. Pointer fields are absent when
// the source does not report them.
type Quote struct {
	PriceUSD       float64  `json:"price_usd"`
	Change24hPct   *float64 `json:"change_24h_pct,omitempty"`
	Volume24hUSD   *float64 `json:"volume_24h_usd,omitempty"`
	LiquidityUSD   *float64 `json:"liquidity_usd,omitempty"`
	FDVUSD         *float64 `json:"fdv_usd,omitempty"`
	Source         string   `json:"source"`
	UpdatedAtEpoch int64    `json:"updated_at_epoch"`
}

// Age returns how old the quote is relative to now.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(q.UpdatedAtEpoch, 0))
}

// Known source names for Config.Order.
const (
	SourceDexscreenerPair  = "dexscreener_pair"
	SourceDexscreenerToken = "dexscreener_token"
	SourceBirdeye          = "birdeye"
	SourceGeckoTerminal    = "geckoterminal"
)

// Config holds fetcher settings. URL templates contain {PAIR} or {MINT}
// placeholders substituted per request.
type Config struct {
	TokenMint   string
	PairAddress string

	DexscreenerPairURL  string
	DexscreenerTokenURL string
	BirdeyeURL          string
	GeckoTerminalURL    string
	BirdeyeAPIKey       string

	// Order is the fallback ladder; the first source that yields a quote
	// wins.
	Order []string

	Timeout    time.Duration
	MaxRetries int
}

// Fetcher pulls quotes from the configured sources.
type Fetcher struct {
	cfg    Config
	client *http.Client
	snap   *Snapshot
	log    zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// NewFetcher creates a fetcher. snap may be nil to disable the snapshot
// cache.
func NewFetcher(cfg Config, snap *Snapshot, log zerolog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.Order) == 0 {
		cfg.Order = []string{SourceDexscreenerPair, SourceDexscreenerToken, SourceGeckoTerminal}
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		snap:   snap,
		log:    log,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Fetch walks the fallback ladder and returns the first quote obtained.
// It returns an error only when every source failed or yielded nothing.
func (f *Fetcher) Fetch(ctx context.Context) (*Quote, error) {
	for _, name := range f.cfg.Order {
		var (
			q   *Quote
			err error
		)
		switch name {
		case SourceDexscreenerPair:
			q, err = f.fetchDexscreenerPair(ctx)
		case SourceDexscreenerToken:
			q, err = f.fetchDexscreenerToken(ctx)
		case SourceBirdeye:
			q, err = f.fetchBirdeye(ctx)
		case SourceGeckoTerminal:
			q, err = f.fetchGeckoTerminal(ctx)
		default:
			f.log.Warn().Str("source", name).Msg("unknown source in fallback order")
			continue
		}
		if err != nil {
			f.log.Warn().Err(err).Str("source", name).Msg("source failed")
			continue
		}
		if q == nil {
			continue
		}
		f.log.Debug().Str("source", name).Float64("price_usd", q.PriceUSD).Msg("quote fetched")
		if f.snap != nil {
			if err := f.snap.Save(q); err != nil {
				f.log.Warn().Err(err).Msg("failed to save snapshot")
			}
		}
		return q, nil
	}
	return nil, fmt.Errorf("market: all sources failed")
}

// FetchWithCache fetches a fresh quote, falling back to the snapshot cache
// when every live source fails. The returned duration is how stale the
// quote is (zero for fresh data). Returns (nil, 0) when neither live data
// nor a snapshot is available.
func (f *Fetcher) FetchWithCache(ctx context.Context) (*Quote, time.Duration) {
	q, err := f.Fetch(ctx)
	if err == nil {
		return q, 0
	}
	if f.snap == nil {
		return nil, 0
	}
	cached, err := f.snap.Load()
	if err != nil || cached == nil {
		return nil, 0
	}
	stale := cached.Age(f.now())
	f.log.Info().Dur("stale", stale).Msg("using cached quote")
	return cached, stale
}

// getJSON issues a GET with per-attempt retries and exponential backoff,
// decoding the response into dst.
func (f *Fetcher) getJSON(ctx context.Context, url string, headers map[string]string, dst interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.sleep(500 * time.Millisecond << uint(attempt-1))
		}
		lastErr = f.getJSONOnce(ctx, url, headers, dst)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (f *Fetcher) getJSONOnce(ctx context.Context, url string, headers map[string]string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market: %s returned %s", url, resp.Status)
	}
	return decodeJSON(resp.Body, dst)
}
