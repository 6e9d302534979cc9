package market

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// looseFloat tolerates the aggregator APIs' habit of returning numbers as
// either JSON numbers or strings. An empty or unparsable value decodes to
// nil, matching the "absent" semantics of Quote pointer fields; a literal
// zero is kept (a flat 24h change is real data, not absence).
type looseFloat struct {
	v *float64
}

func (l *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	l.v = &f
	return nil
}

func decodeJSON(r io.Reader, dst interface{}) error {
	return json.NewDecoder(r).Decode(dst)
}

// dsPair is the subset of a Dexscreener pair object we consume.
type dsPair struct {
	PriceUSD    looseFloat `json:"priceUsd"`
	PriceChange struct {
		H24 looseFloat `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 looseFloat `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD looseFloat `json:"usd"`
	} `json:"liquidity"`
	FDV looseFloat `json:"fdv"`
}

func (p *dsPair) quote(source string, epoch int64) *Quote {
	// A missing or zero price means the pair is dead or the API is
	// degraded; either way there is nothing worth rendering.
	if p.PriceUSD.v == nil || *p.PriceUSD.v <= 0 {
		return nil
	}
	return &Quote{
		PriceUSD:       *p.PriceUSD.v,
		Change24hPct:   p.PriceChange.H24.v,
		Volume24hUSD:   p.Volume.H24.v,
		LiquidityUSD:   p.Liquidity.USD.v,
		FDVUSD:         p.FDV.v,
		Source:         source,
		UpdatedAtEpoch: epoch,
	}
}

func (f *Fetcher) fetchDexscreenerPair(ctx context.Context) (*Quote, error) {
	if f.cfg.PairAddress == "" {
		return nil, nil
	}
	url := strings.ReplaceAll(f.cfg.DexscreenerPairURL, "{PAIR}", f.cfg.PairAddress)

	var body struct {
		Pair *dsPair `json:"pair"`
	}
	if err := f.getJSON(ctx, url, nil, &body); err != nil {
		return nil, err
	}
	if body.Pair == nil {
		return nil, nil
	}
	return body.Pair.quote(SourceDexscreenerPair, f.now().Unix()), nil
}

func (f *Fetcher) fetchDexscreenerToken(ctx context.Context) (*Quote, error) {
	if f.cfg.TokenMint == "" {
		return nil, nil
	}
	url := strings.ReplaceAll(f.cfg.DexscreenerTokenURL, "{MINT}", f.cfg.TokenMint)

	var body struct {
		Pairs []dsPair `json:"pairs"`
	}
	if err := f.getJSON(ctx, url, nil, &body); err != nil {
		return nil, err
	}

	// Pick the pair with the deepest liquidity.
	var best *dsPair
	for i := range body.Pairs {
		p := &body.Pairs[i]
		if best == nil || liq(p) > liq(best) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.quote(SourceDexscreenerToken, f.now().Unix()), nil
}

func liq(p *dsPair) float64 {
	if p.Liquidity.USD.v == nil {
		return 0
	}
	return *p.Liquidity.USD.v
}

// fetchBirdeye uses Birdeye's basic price endpoint, which reports price
// only; the 24h stats are not available without a paid plan.
func (f *Fetcher) fetchBirdeye(ctx context.Context) (*Quote, error) {
	if f.cfg.BirdeyeAPIKey == "" || f.cfg.TokenMint == "" {
		return nil, nil
	}
	url := strings.ReplaceAll(f.cfg.BirdeyeURL, "{MINT}", f.cfg.TokenMint)

	var body struct {
		Data struct {
			Value looseFloat `json:"value"`
		} `json:"data"`
	}
	headers := map[string]string{"x-api-key": f.cfg.BirdeyeAPIKey}
	if err := f.getJSON(ctx, url, headers, &body); err != nil {
		return nil, err
	}
	if body.Data.Value.v == nil || *body.Data.Value.v <= 0 {
		return nil, nil
	}
	return &Quote{
		PriceUSD:       *body.Data.Value.v,
		Source:         SourceBirdeye,
		UpdatedAtEpoch: f.now().Unix(),
	}, nil
}

func (f *Fetcher) fetchGeckoTerminal(ctx context.Context) (*Quote, error) {
	if f.cfg.TokenMint == "" {
		return nil, nil
	}
	url := strings.ReplaceAll(f.cfg.GeckoTerminalURL, "{MINT}", f.cfg.TokenMint)

	var body struct {
		Data struct {
			Attributes struct {
				PriceUSD              looseFloat `json:"price_usd"`
				PriceChangePercentage struct {
					H24 looseFloat `json:"24h"`
				} `json:"price_change_percentage"`
				VolumeUSD struct {
					H24 looseFloat `json:"h24"`
				} `json:"volume_usd"`
				FDVUSD looseFloat `json:"fdv_usd"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := f.getJSON(ctx, url, nil, &body); err != nil {
		return nil, err
	}
	attrs := body.Data.Attributes
	if attrs.PriceUSD.v == nil || *attrs.PriceUSD.v <= 0 {
		return nil, nil
	}
	return &Quote{
		PriceUSD:       *attrs.PriceUSD.v,
		Change24hPct:   attrs.PriceChangePercentage.H24.v,
		Volume24hUSD:   attrs.VolumeUSD.H24.v,
		FDVUSD:         attrs.FDVUSD.v,
		Source:         SourceGeckoTerminal,
		UpdatedAtEpoch: f.now().Unix(),
	}, nil
}
