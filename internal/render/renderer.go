// Package render composes token quotes into 1-bit frames and drives the
// e-paper panel with a refresh policy that balances update latency against
// ghost accumulation.
package render

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"

	"github.com/tetsuolabs/epdticker/epd2in7"
	"github.com/tetsuolabs/epdticker/image1bit"
	"github.com/tetsuolabs/epdticker/internal/market"
)

// Display is the driver surface the renderer needs. *epd2in7.Dev
// implements it.
type Display interface {
	Init() error
	WriteFrame(buf []byte) error
	Activate(mode epd2in7.UpdateMode) error
	BufferLen() int
}

// Options configures the renderer.
type Options struct {
	// Width and Height of the logical landscape canvas.
	Width  int
	Height int

	// Symbol and Chain shown in the header.
	Symbol string
	Chain  string
}

// Renderer owns frame composition and the refresh policy. It keeps the
// last frame actually transmitted to hardware so partial updates can
// composite dynamic zones onto it.
//
// Renderer is not safe for concurrent use; calls to Render must be
// serialized by the caller.
type Renderer struct {
	disp  Display
	sched *Scheduler
	fonts *fontSet
	log   zerolog.Logger

	w, h   int
	header string

	// retained is the last successfully transmitted frame, nil before
	// the first successful render.
	retained *image1bit.Image

	now func() time.Time
}

// New creates a renderer around a display and a refresh scheduler.
func New(disp Display, sched *Scheduler, opts Options, log zerolog.Logger) *Renderer {
	return &Renderer{
		disp:   disp,
		sched:  sched,
		fonts:  loadFonts(),
		log:    log,
		w:      opts.Width,
		h:      opts.Height,
		header: fmt.Sprintf("%s/%s", opts.Symbol, strings.ToUpper(opts.Chain)),
		now:    time.Now,
	}
}

// Render draws the quote and pushes it to the panel. stale is how old the
// quote is (zero for fresh data); q may be nil when no data is available
// at all.
//
// Driver errors propagate unchanged; the renderer performs no retries and
// leaves the retained frame untouched when a transmit fails.
func (r *Renderer) Render(q *market.Quote, stale time.Duration) error {
	now := r.now()
	mode := r.sched.Decide(now)
	if mode == ModePartial && r.retained == nil {
		// Nothing to composite onto yet.
		mode = ModeFull
	}

	var frame *image1bit.Image
	if mode == ModeFull {
		frame = r.composeFull(q, stale)
	} else {
		frame = r.composePartial(q, stale)
	}
	return r.transmit(frame, mode, now)
}

// transmit packs and sends a composed frame, then records the decision and
// retains the frame. The payload length is checked before any bus traffic.
func (r *Renderer) transmit(frame *image1bit.Image, mode Mode, now time.Time) error {
	buf := frame.Pack()
	if len(buf) != r.disp.BufferLen() {
		return fmt.Errorf("render: %dx%d canvas packs to %d bytes, display wants %d",
			r.w, r.h, len(buf), r.disp.BufferLen())
	}

	if mode == ModeFull {
		if err := r.disp.Init(); err != nil {
			return err
		}
		if err := r.disp.WriteFrame(buf); err != nil {
			return err
		}
		if err := r.disp.Activate(epd2in7.UpdateFull); err != nil {
			return err
		}
		r.sched.RecordFull(now)
	} else {
		if err := r.disp.WriteFrame(buf); err != nil {
			return err
		}
		if err := r.disp.Activate(epd2in7.UpdatePartial); err != nil {
			return err
		}
		r.sched.RecordPartial()
	}

	r.retained = frame
	r.log.Debug().
		Stringer("mode", mode).
		Int("partials", r.sched.Partials()).
		Msg("frame rendered")
	return nil
}

// composeFull builds a complete frame from scratch: white background, all
// zones.
func (r *Renderer) composeFull(q *market.Quote, stale time.Duration) *image1bit.Image {
	dc := gg.NewContext(r.w, r.h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	r.drawHeader(dc)
	r.drawDynamic(dc, q, stale)
	return r.snapshot(dc)
}

// composePartial clones the retained frame and redraws only the dynamic
// zones; static zones stay pixel-identical.
func (r *Renderer) composePartial(q *market.Quote, stale time.Duration) *image1bit.Image {
	dc := gg.NewContextForImage(r.retained)
	for _, z := range dynamicZones {
		clearRect(dc, z.Rect())
	}
	r.drawDynamic(dc, q, stale)
	return r.snapshot(dc)
}

func (r *Renderer) drawDynamic(dc *gg.Context, q *market.Quote, stale time.Duration) {
	r.drawPrice(dc, q)
	r.drawChange(dc, q)
	r.drawStats(dc, q)
	r.drawFooter(dc, stale)
}

func clearRect(dc *gg.Context, rect image.Rectangle) {
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
	dc.Fill()
}

func (r *Renderer) drawHeader(dc *gg.Context) {
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(r.fonts.medium)
	dc.DrawStringAnchored(r.header, 10, 5, 0, 1)

	rect := ZoneHeader.Rect()
	dc.SetLineWidth(1)
	dc.DrawLine(10, float64(rect.Max.Y-1), float64(r.w-10), float64(rect.Max.Y-1))
	dc.Stroke()
}

func (r *Renderer) drawPrice(dc *gg.Context, q *market.Quote) {
	text := "-.------"
	if q != nil {
		text = formatPrice(q.PriceUSD)
	}
	rect := ZonePrice.Rect()
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(r.fonts.xlarge)
	dc.DrawStringAnchored(text, float64(rect.Min.X), float64(rect.Min.Y+10), 0, 1)
}

func (r *Renderer) drawChange(dc *gg.Context, q *market.Quote) {
	rect := ZoneChange.Rect()
	dc.SetRGB(0, 0, 0)

	if q == nil || q.Change24hPct == nil {
		dc.SetFontFace(r.fonts.medium)
		dc.DrawStringAnchored("N/A", float64(rect.Min.X+5), float64(rect.Min.Y+40), 0, 1)
		return
	}

	arrow, text := formatChange(*q.Change24hPct)
	dc.SetFontFace(r.fonts.large)
	dc.DrawStringAnchored(arrow, float64(rect.Min.X+5), float64(rect.Min.Y+5), 0, 1)
	dc.SetFontFace(r.fonts.medium)
	dc.DrawStringAnchored(text, float64(rect.Min.X+5), float64(rect.Min.Y+40), 0, 1)
}

func (r *Renderer) drawStats(dc *gg.Context, q *market.Quote) {
	vol := "Vol: N/A"
	liq := "Liq: N/A"
	if q != nil {
		if q.Volume24hUSD != nil {
			vol = "Vol: $" + formatCompact(*q.Volume24hUSD)
		}
		// Liquidity preferred, FDV as the stand-in when a source does
		// not report pool depth.
		switch {
		case q.LiquidityUSD != nil:
			liq = "Liq: $" + formatCompact(*q.LiquidityUSD)
		case q.FDVUSD != nil:
			liq = "FDV: $" + formatCompact(*q.FDVUSD)
		}
	}

	rect := ZoneStats.Rect()
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(r.fonts.medium)
	dc.DrawStringAnchored(vol, float64(rect.Min.X), float64(rect.Min.Y+5), 0, 1)
	dc.DrawStringAnchored(liq, float64(rect.Min.X), float64(rect.Min.Y+28), 0, 1)

	dc.SetLineWidth(1)
	dc.DrawLine(10, float64(rect.Max.Y-1), float64(r.w-10), float64(rect.Max.Y-1))
	dc.Stroke()
}

func (r *Renderer) drawFooter(dc *gg.Context, stale time.Duration) {
	rect := ZoneFooter.Rect()
	dc.SetRGB(0, 0, 0)

	dc.SetFontFace(r.fonts.small)
	dc.DrawStringAnchored(r.now().Format("15:04"), float64(rect.Min.X+10), float64(rect.Min.Y+3), 0, 1)

	status := formatStatus(stale)
	dc.SetFontFace(r.fonts.tiny)
	sw, _ := dc.MeasureString(status)
	dc.DrawStringAnchored(status, float64(rect.Max.X)-sw-10, float64(rect.Min.Y+4), 0, 1)
}

// snapshot thresholds the drawn canvas into a 1-bit frame.
func (r *Renderer) snapshot(dc *gg.Context) *image1bit.Image {
	src := dc.Image()
	min := src.Bounds().Min
	frame := image1bit.New(image.Rect(0, 0, r.w, r.h))
	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			frame.SetBit(x, y, image1bit.BitModel.Convert(src.At(min.X+x, min.Y+y)).(image1bit.Bit))
		}
	}
	return frame
}

// RenderTestPattern draws the zone layout with sample data and pushes it
// with a full refresh. Useful for verifying wiring and orientation.
func (r *Renderer) RenderTestPattern() error {
	dc := gg.NewContext(r.w, r.h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(0, 0, float64(r.w), float64(r.h))
	dc.Stroke()

	dc.SetLineWidth(1)
	for z := Zone(0); z < zoneCount; z++ {
		rect := z.Rect()
		dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
		dc.Stroke()
	}

	change := -10.75
	volume := 11223.17
	liquidity := 597312.54
	sample := &market.Quote{
		PriceUSD:       0.001555,
		Change24hPct:   &change,
		Volume24hUSD:   &volume,
		LiquidityUSD:   &liquidity,
		Source:         "test",
		UpdatedAtEpoch: r.now().Unix(),
	}
	r.drawHeader(dc)
	r.drawDynamic(dc, sample, 0)

	return r.transmit(r.snapshot(dc), ModeFull, r.now())
}
