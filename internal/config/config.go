// Package config loads the epdticker TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the resolved application configuration.
type Config struct {
	Token   Token
	Display Display
	Refresh Refresh
	Sources Sources

	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	CachePath      string
}

// Token identifies what is being tracked.
type Token struct {
	Symbol string
	Chain  string
	Mint   string
	Pair   string
}

// Display holds panel geometry and pin roles. Width/Height is the logical
// landscape canvas; PanelWidth/PanelHeight is the controller RAM geometry.
// The two carry the same byte payload (ceil(W/8)*H).
type Display struct {
	Width       int
	Height      int
	PanelWidth  int
	PanelHeight int

	SPIDev  string
	DCPin   string
	RSTPin  string
	BusyPin string

	BusyIterations int
}

// Refresh tunes the full-vs-partial refresh policy.
type Refresh struct {
	// FullEvery forces a full refresh after this much time since the
	// last one.
	FullEvery time.Duration
	// FullAfterPartials forces a full refresh after this many
	// consecutive partial updates.
	FullAfterPartials int
}

// Sources holds market data source URL templates and the fallback order.
type Sources struct {
	DexscreenerPair  string
	DexscreenerToken string
	Birdeye          string
	GeckoTerminal    string
	BirdeyeAPIKey    string
	Order            []string
}

// Default returns the configuration matching the shipped 2.7" V2 HAT
// deployment.
func Default() Config {
	return Config{
		Token: Token{
			Symbol: "TETSUO",
			Chain:  "SOL",
		},
		Display: Display{
			Width:          264,
			Height:         176,
			PanelWidth:     176,
			PanelHeight:    264,
			SPIDev:         "",
			DCPin:          "GPIO25",
			RSTPin:         "GPIO17",
			BusyPin:        "GPIO24",
			BusyIterations: 50,
		},
		Refresh: Refresh{
			FullEvery:         45 * time.Minute,
			FullAfterPartials: 60,
		},
		Sources: Sources{
			DexscreenerPair:  "https://api.dexscreener.com/latest/dex/pairs/solana/{PAIR}",
			DexscreenerToken: "https://api.dexscreener.com/latest/dex/tokens/{MINT}",
			Birdeye:          "https://public-api.birdeye.so/defi/price?address={MINT}",
			GeckoTerminal:    "https://api.geckoterminal.com/api/v2/networks/solana/tokens/{MINT}",
			BirdeyeAPIKey:    os.Getenv("BIRDEYE_API_KEY"),
			Order:            []string{"dexscreener_pair", "dexscreener_token", "geckoterminal"},
		},
		PollInterval:   45 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     1,
		CachePath:      "./data/last_snapshot.json",
	}
}

// fileConfig mirrors Config but uses strings for durations to keep the
// TOML surface friendly.
type fileConfig struct {
	Token struct {
		Symbol string `toml:"symbol"`
		Chain  string `toml:"chain"`
		Mint   string `toml:"mint"`
		Pair   string `toml:"pair"`
	} `toml:"token"`
	Display struct {
		Width       int    `toml:"width"`
		Height      int    `toml:"height"`
		PanelWidth  int    `toml:"panel_width"`
		PanelHeight int    `toml:"panel_height"`
		SPI         string `toml:"spi"`
		GPIO        struct {
			DC   string `toml:"dc_pin"`
			RST  string `toml:"rst_pin"`
			Busy string `toml:"busy_pin"`
		} `toml:"gpio"`
		BusyIterations int `toml:"busy_iterations"`
	} `toml:"display"`
	Refresh struct {
		FullEvery         string `toml:"full_every"`
		FullAfterPartials int    `toml:"full_after_partials"`
	} `toml:"refresh"`
	Poll struct {
		Interval string `toml:"interval"`
	} `toml:"poll"`
	Timeouts struct {
		Request string `toml:"request"`
	} `toml:"timeouts"`
	Retries struct {
		Max int `toml:"max"`
	} `toml:"retries"`
	Cache struct {
		Path string `toml:"path"`
	} `toml:"cache"`
	Sources struct {
		DexscreenerPair  string   `toml:"dexscreener_pair"`
		DexscreenerToken string   `toml:"dexscreener_token"`
		Birdeye          string   `toml:"birdeye"`
		GeckoTerminal    string   `toml:"geckoterminal"`
		Order            []string `toml:"order"`
	} `toml:"sources"`
}

// Load reads path and applies it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := apply(&cfg, fc); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func apply(cfg *Config, fc fileConfig) error {
	setString(&cfg.Token.Symbol, fc.Token.Symbol)
	setString(&cfg.Token.Chain, fc.Token.Chain)
	setString(&cfg.Token.Mint, fc.Token.Mint)
	setString(&cfg.Token.Pair, fc.Token.Pair)

	setInt(&cfg.Display.Width, fc.Display.Width)
	setInt(&cfg.Display.Height, fc.Display.Height)
	setInt(&cfg.Display.PanelWidth, fc.Display.PanelWidth)
	setInt(&cfg.Display.PanelHeight, fc.Display.PanelHeight)
	setString(&cfg.Display.SPIDev, fc.Display.SPI)
	setString(&cfg.Display.DCPin, fc.Display.GPIO.DC)
	setString(&cfg.Display.RSTPin, fc.Display.GPIO.RST)
	setString(&cfg.Display.BusyPin, fc.Display.GPIO.Busy)
	setInt(&cfg.Display.BusyIterations, fc.Display.BusyIterations)

	setInt(&cfg.Refresh.FullAfterPartials, fc.Refresh.FullAfterPartials)
	setInt(&cfg.MaxRetries, fc.Retries.Max)
	setString(&cfg.CachePath, fc.Cache.Path)

	setString(&cfg.Sources.DexscreenerPair, fc.Sources.DexscreenerPair)
	setString(&cfg.Sources.DexscreenerToken, fc.Sources.DexscreenerToken)
	setString(&cfg.Sources.Birdeye, fc.Sources.Birdeye)
	setString(&cfg.Sources.GeckoTerminal, fc.Sources.GeckoTerminal)
	if len(fc.Sources.Order) > 0 {
		cfg.Sources.Order = fc.Sources.Order
	}

	if err := setDuration(&cfg.Refresh.FullEvery, fc.Refresh.FullEvery); err != nil {
		return fmt.Errorf("refresh.full_every: %w", err)
	}
	if err := setDuration(&cfg.PollInterval, fc.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if err := setDuration(&cfg.RequestTimeout, fc.Timeouts.Request); err != nil {
		return fmt.Errorf("timeouts.request: %w", err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate rejects configurations the renderer or driver would fail on.
func (c Config) Validate() error {
	d := c.Display
	if d.Width <= 0 || d.Height <= 0 || d.PanelWidth <= 0 || d.PanelHeight <= 0 {
		return fmt.Errorf("config: display dimensions must be positive")
	}
	if (d.Width+7)/8*d.Height != (d.PanelWidth+7)/8*d.PanelHeight {
		return fmt.Errorf("config: canvas %dx%d and panel %dx%d disagree on frame payload size",
			d.Width, d.Height, d.PanelWidth, d.PanelHeight)
	}
	if d.DCPin == "" || d.RSTPin == "" || d.BusyPin == "" {
		return fmt.Errorf("config: dc_pin, rst_pin and busy_pin must all be set")
	}
	if c.Refresh.FullEvery <= 0 {
		return fmt.Errorf("config: refresh.full_every must be positive")
	}
	if c.Refresh.FullAfterPartials <= 0 {
		return fmt.Errorf("config: refresh.full_after_partials must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll.interval must be positive")
	}
	return nil
}
