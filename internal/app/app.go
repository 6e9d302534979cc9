// Package app runs the epdticker poll-and-render loop.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tetsuolabs/epdticker/internal/config"
	"github.com/tetsuolabs/epdticker/internal/market"
	"github.com/tetsuolabs/epdticker/internal/render"
)

// QuoteProvider is the market side of the loop.
type QuoteProvider interface {
	FetchWithCache(ctx context.Context) (*market.Quote, time.Duration)
}

// FrameRenderer is the display side of the loop.
type FrameRenderer interface {
	Render(q *market.Quote, stale time.Duration) error
}

// App wires the fetcher and renderer into a single synchronous loop. One
// render is in flight at a time; config reloads are applied between
// renders.
type App struct {
	cfg      config.Config
	provider QuoteProvider
	renderer FrameRenderer
	sched    *render.Scheduler
	log      zerolog.Logger

	// reload delivers re-read configurations from the config watcher.
	// Nil disables hot reload.
	reload <-chan config.Config

	// Once makes Run exit after the first render (CLI --once).
	Once bool
}

// New creates the application loop.
func New(cfg config.Config, provider QuoteProvider, renderer FrameRenderer, sched *render.Scheduler, log zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		provider: provider,
		renderer: renderer,
		sched:    sched,
		log:      log,
	}
}

// SetReload attaches a config reload channel (see WatchConfig).
func (a *App) SetReload(ch <-chan config.Config) {
	a.reload = ch
}

// Run fetches and renders until ctx is cancelled. Transport-fatal display
// errors abort the loop and propagate; fetch failures degrade to cached or
// absent data and back off.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().
		Str("token", a.cfg.Token.Symbol).
		Dur("poll", a.cfg.PollInterval).
		Dur("full_every", a.cfg.Refresh.FullEvery).
		Int("full_after_partials", a.cfg.Refresh.FullAfterPartials).
		Msg("starting display loop")

	// Show whatever we have immediately; a stale snapshot beats a blank
	// panel.
	if _, err := a.renderOnce(ctx); err != nil {
		return err
	}
	if a.Once {
		return nil
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	bo := newBackoff(defaultBackoffInitial, defaultBackoffMax)

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("display loop stopped")
			return nil

		case cfg, ok := <-a.reload:
			if !ok {
				// Watcher shut down; a nil channel never fires again.
				a.reload = nil
				continue
			}
			a.applyReload(cfg, ticker)

		case <-ticker.C:
			haveData, err := a.renderOnce(ctx)
			if err != nil {
				return err
			}
			if haveData {
				bo.Reset()
				ticker.Reset(a.cfg.PollInterval)
			} else {
				// Every source is down and there is no snapshot;
				// stop hammering the APIs.
				d := bo.Next()
				ticker.Reset(d)
				a.log.Warn().Dur("retry_in", d).Msg("no market data from any source")
			}
		}
	}
}

// renderOnce fetches the freshest quote available and renders it. A
// missing quote still renders (placeholder layout) so the panel never
// silently freezes.
func (a *App) renderOnce(ctx context.Context) (haveData bool, err error) {
	q, stale := a.provider.FetchWithCache(ctx)
	if err := a.renderer.Render(q, stale); err != nil {
		a.log.Error().Err(err).Msg("display transmit failed")
		return false, err
	}
	return q != nil, nil
}

// applyReload applies the runtime-tunable parts of a re-read config: the
// poll cadence and the refresh policy. Hardware geometry and pins require
// a restart.
func (a *App) applyReload(cfg config.Config, ticker *time.Ticker) {
	if cfg.PollInterval != a.cfg.PollInterval {
		ticker.Reset(cfg.PollInterval)
	}
	if cfg.Refresh != a.cfg.Refresh {
		a.sched.SetPolicy(cfg.Refresh.FullEvery, cfg.Refresh.FullAfterPartials)
		// Start the new policy from a ghost-free panel.
		a.sched.ForceFull()
	}
	a.cfg.PollInterval = cfg.PollInterval
	a.cfg.Refresh = cfg.Refresh
	a.log.Info().
		Dur("poll", cfg.PollInterval).
		Dur("full_every", cfg.Refresh.FullEvery).
		Int("full_after_partials", cfg.Refresh.FullAfterPartials).
		Msg("config reloaded")
}
