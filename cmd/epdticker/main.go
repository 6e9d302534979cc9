// Command epdticker drives a token price ticker on a Waveshare 2.7" V2
// e-paper HAT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tetsuolabs/epdticker/epd2in7"
	"github.com/tetsuolabs/epdticker/internal/app"
	"github.com/tetsuolabs/epdticker/internal/config"
	"github.com/tetsuolabs/epdticker/internal/market"
	"github.com/tetsuolabs/epdticker/internal/render"
)

var (
	flagConfig  string
	flagSim     bool
	flagOnce    bool
	flagVerbose bool
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig reads the config file, tolerating a missing file at the
// default location (defaults apply) but not at an explicit --config path.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return cfg, err
}

// openDisplay builds the device handle, either against real hardware or
// the simulated transport.
func openDisplay(cfg config.Config, log zerolog.Logger) (*epd2in7.Dev, error) {
	opts := &epd2in7.Opts{
		W:              cfg.Display.PanelWidth,
		H:              cfg.Display.PanelHeight,
		BusyIterations: cfg.Display.BusyIterations,
		Logger:         &log,
	}
	if flagSim {
		log.Info().Msg("running against simulated panel")
		return epd2in7.NewSim(opts)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host: %w", err)
	}
	port, err := spireg.Open(cfg.Display.SPIDev)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.Display.SPIDev, err)
	}
	dc := gpioreg.ByName(cfg.Display.DCPin)
	rst := gpioreg.ByName(cfg.Display.RSTPin)
	busy := gpioreg.ByName(cfg.Display.BusyPin)
	if dc == nil || rst == nil || busy == nil {
		return nil, fmt.Errorf("unknown GPIO pin among dc=%q rst=%q busy=%q",
			cfg.Display.DCPin, cfg.Display.RSTPin, cfg.Display.BusyPin)
	}
	return epd2in7.NewSPI(port, dc, rst, busy, opts)
}

func newRenderer(cfg config.Config, dev *epd2in7.Dev, log zerolog.Logger) (*render.Renderer, *render.Scheduler) {
	sched := render.NewScheduler(cfg.Refresh.FullEvery, cfg.Refresh.FullAfterPartials)
	r := render.New(dev, sched, render.Options{
		Width:  cfg.Display.Width,
		Height: cfg.Display.Height,
		Symbol: cfg.Token.Symbol,
		Chain:  cfg.Token.Chain,
	}, log)
	return r, sched
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	log := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dev, err := openDisplay(cfg, log)
	if err != nil {
		return err
	}
	renderer, sched := newRenderer(cfg, dev, log)

	snap, err := market.NewSnapshot(cfg.CachePath)
	if err != nil {
		return err
	}
	fetcher := market.NewFetcher(market.Config{
		TokenMint:           cfg.Token.Mint,
		PairAddress:         cfg.Token.Pair,
		DexscreenerPairURL:  cfg.Sources.DexscreenerPair,
		DexscreenerTokenURL: cfg.Sources.DexscreenerToken,
		BirdeyeURL:          cfg.Sources.Birdeye,
		GeckoTerminalURL:    cfg.Sources.GeckoTerminal,
		BirdeyeAPIKey:       cfg.Sources.BirdeyeAPIKey,
		Order:               cfg.Sources.Order,
		Timeout:             cfg.RequestTimeout,
		MaxRetries:          cfg.MaxRetries,
	}, snap, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, fetcher, renderer, sched, log)
	a.Once = flagOnce
	if !flagOnce {
		if reload, err := app.WatchConfig(ctx, flagConfig, log); err == nil {
			a.SetReload(reload)
		} else {
			log.Warn().Err(err).Msg("config hot-reload disabled")
		}
	}

	runErr := a.Run(ctx)

	// Leave the panel in deep sleep; e-paper keeps its image unpowered.
	if err := dev.Sleep(); err != nil {
		log.Warn().Err(err).Msg("failed to sleep panel on shutdown")
	}
	return runErr
}

func main() {
	root := &cobra.Command{
		Use:           "epdticker",
		Short:         "Token price ticker for a 2.7\" e-paper HAT",
		Long:          "epdticker polls DEX aggregators for token market data and renders it\non a Waveshare 2.7\" V2 e-paper display, balancing fast partial updates\nagainst periodic ghost-clearing full refreshes.",
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDaemon,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.toml", "path to TOML config file")
	root.PersistentFlags().BoolVar(&flagSim, "sim", false, "run against a simulated panel (no hardware)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.Flags().BoolVar(&flagOnce, "once", false, "render once and exit")

	root.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the panel to white and sleep it",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDisplay(cmd, func(dev *epd2in7.Dev, _ config.Config, _ zerolog.Logger) error {
					return dev.Clear()
				})
			},
		},
		&cobra.Command{
			Use:   "pattern",
			Short: "Render the zone-layout test pattern",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDisplay(cmd, func(dev *epd2in7.Dev, cfg config.Config, log zerolog.Logger) error {
					renderer, _ := newRenderer(cfg, dev, log)
					return renderer.RenderTestPattern()
				})
			},
		},
		&cobra.Command{
			Use:   "sleep",
			Short: "Put the panel into deep sleep",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDisplay(cmd, func(*epd2in7.Dev, config.Config, zerolog.Logger) error {
					// withDisplay sleeps the panel on the way out.
					return nil
				})
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDisplay opens and initializes the display, runs fn, and leaves the
// panel in deep sleep.
func withDisplay(cmd *cobra.Command, fn func(*epd2in7.Dev, config.Config, zerolog.Logger) error) error {
	log := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dev, err := openDisplay(cfg, log)
	if err != nil {
		return err
	}
	if err := dev.Init(); err != nil {
		return err
	}
	fnErr := fn(dev, cfg, log)
	if err := dev.Sleep(); fnErr == nil && err != nil {
		fnErr = err
	}
	return fnErr
}
