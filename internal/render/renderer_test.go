package render

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tetsuolabs/epdticker/epd2in7"
	"github.com/tetsuolabs/epdticker/image1bit"
	"github.com/tetsuolabs/epdticker/internal/market"
)

const (
	canvasW = 264
	canvasH = 176
)

type fakeDisplay struct {
	inits    int
	writes   [][]byte
	modes    []epd2in7.UpdateMode
	writeErr error
	buflen   int
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{buflen: image1bit.PackedLen(canvasW, canvasH)}
}

func (f *fakeDisplay) Init() error {
	f.inits++
	return nil
}

func (f *fakeDisplay) WriteFrame(buf []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeDisplay) Activate(mode epd2in7.UpdateMode) error {
	f.modes = append(f.modes, mode)
	return nil
}

func (f *fakeDisplay) BufferLen() int { return f.buflen }

func newTestRenderer(disp Display, sched *Scheduler) *Renderer {
	r := New(disp, sched, Options{
		Width:  canvasW,
		Height: canvasH,
		Symbol: "TETSUO",
		Chain:  "sol",
	}, zerolog.Nop())
	r.now = func() time.Time { return t0 }
	return r
}

func sampleQuote(price float64) *market.Quote {
	change := 5.23
	volume := 1234567.89
	liquidity := 456789.12
	return &market.Quote{
		PriceUSD:       price,
		Change24hPct:   &change,
		Volume24hUSD:   &volume,
		LiquidityUSD:   &liquidity,
		Source:         "test",
		UpdatedAtEpoch: t0.Unix(),
	}
}

func TestFirstRenderIsAlwaysFull(t *testing.T) {
	disp := newFakeDisplay()
	sched := NewScheduler(time.Hour, 1000)
	// Make the scheduler prefer partial so only the missing retained
	// frame can force the full path.
	sched.RecordFull(t0)

	r := newTestRenderer(disp, sched)
	if err := r.Render(sampleQuote(0.0042), 0); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if disp.inits != 1 {
		t.Errorf("inits = %d, want 1 (full path re-initializes)", disp.inits)
	}
	if len(disp.modes) != 1 || disp.modes[0] != epd2in7.UpdateFull {
		t.Errorf("modes = %v, want [full]", disp.modes)
	}
}

func TestRenderSequenceOneFullThenPartials(t *testing.T) {
	disp := newFakeDisplay()
	sched := NewScheduler(time.Hour, 1000)
	r := newTestRenderer(disp, sched)

	prices := []float64{0.0042, 0.0043, 0.0041, 0.0045}
	for _, p := range prices {
		if err := r.Render(sampleQuote(p), 0); err != nil {
			t.Fatalf("Render(%v): %v", p, err)
		}
	}

	if disp.inits != 1 {
		t.Errorf("inits = %d, want 1 (partials must not re-initialize)", disp.inits)
	}
	wantModes := []epd2in7.UpdateMode{
		epd2in7.UpdateFull, epd2in7.UpdatePartial, epd2in7.UpdatePartial, epd2in7.UpdatePartial,
	}
	if len(disp.modes) != len(wantModes) {
		t.Fatalf("got %d updates, want %d", len(disp.modes), len(wantModes))
	}
	for i, m := range wantModes {
		if disp.modes[i] != m {
			t.Errorf("update %d mode = %v, want %v", i, disp.modes[i], m)
		}
	}

	// Every partial frame must keep the static header zone
	// pixel-identical to the previous frame.
	frames := make([]*image1bit.Image, len(disp.writes))
	for i, buf := range disp.writes {
		frame, err := image1bit.Unpack(buf, canvasW, canvasH)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		frames[i] = frame
	}
	for i := 1; i < len(frames); i++ {
		if !sameRegion(frames[i-1], frames[i], ZoneHeader.Rect()) {
			t.Errorf("header zone changed between frame %d and %d", i-1, i)
		}
	}

	// The price zone should actually differ when the price changes.
	if sameRegion(frames[0], frames[1], ZonePrice.Rect()) {
		t.Error("price zone identical across a price change")
	}
}

func sameRegion(a, b *image1bit.Image, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if a.BitAt(x, y) != b.BitAt(x, y) {
				return false
			}
		}
	}
	return true
}

func TestFullRefreshAfterMaxPartials(t *testing.T) {
	disp := newFakeDisplay()
	sched := NewScheduler(time.Hour, 2)
	r := newTestRenderer(disp, sched)

	for i := 0; i < 4; i++ {
		if err := r.Render(sampleQuote(0.004), 0); err != nil {
			t.Fatalf("Render %d: %v", i, err)
		}
	}

	wantModes := []epd2in7.UpdateMode{
		epd2in7.UpdateFull, epd2in7.UpdatePartial, epd2in7.UpdatePartial, epd2in7.UpdateFull,
	}
	for i, m := range wantModes {
		if disp.modes[i] != m {
			t.Errorf("update %d mode = %v, want %v", i, disp.modes[i], m)
		}
	}
}

func TestTimeBasedFullRefresh(t *testing.T) {
	disp := newFakeDisplay()
	sched := NewScheduler(time.Minute, 1000)
	r := newTestRenderer(disp, sched)

	now := t0
	r.now = func() time.Time { return now }

	if err := r.Render(sampleQuote(0.004), 0); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if err := r.Render(sampleQuote(0.004), 0); err != nil {
		t.Fatal(err)
	}
	now = now.Add(31 * time.Second)
	if err := r.Render(sampleQuote(0.004), 0); err != nil {
		t.Fatal(err)
	}

	wantModes := []epd2in7.UpdateMode{
		epd2in7.UpdateFull, epd2in7.UpdatePartial, epd2in7.UpdateFull,
	}
	for i, m := range wantModes {
		if disp.modes[i] != m {
			t.Errorf("update %d mode = %v, want %v", i, disp.modes[i], m)
		}
	}
}

func TestWriteErrorPropagatesAndRetainsNothing(t *testing.T) {
	disp := newFakeDisplay()
	wantErr := errors.New("spi: bus gone")
	disp.writeErr = wantErr

	sched := NewScheduler(time.Hour, 1000)
	r := newTestRenderer(disp, sched)

	if err := r.Render(sampleQuote(0.004), 0); !errors.Is(err, wantErr) {
		t.Fatalf("Render error = %v, want %v", err, wantErr)
	}
	if r.retained != nil {
		t.Error("retained frame must not be set after a failed transmit")
	}

	// Recovery: the next render has no retained frame and goes full.
	disp.writeErr = nil
	if err := r.Render(sampleQuote(0.004), 0); err != nil {
		t.Fatalf("Render after recovery: %v", err)
	}
	if got := disp.modes[len(disp.modes)-1]; got != epd2in7.UpdateFull {
		t.Errorf("recovery mode = %v, want full", got)
	}
}

func TestBufferLenMismatchFailsBeforeBusTraffic(t *testing.T) {
	disp := newFakeDisplay()
	disp.buflen = 5807 // disagrees with the 264x176 canvas

	r := newTestRenderer(disp, NewScheduler(time.Hour, 1000))
	if err := r.Render(sampleQuote(0.004), 0); err == nil {
		t.Fatal("Render should fail on payload size mismatch")
	}
	if len(disp.writes) != 0 {
		t.Error("no frame may reach the bus on a precondition violation")
	}
}

func TestRenderNilQuote(t *testing.T) {
	disp := newFakeDisplay()
	r := newTestRenderer(disp, NewScheduler(time.Hour, 1000))

	if err := r.Render(nil, 0); err != nil {
		t.Fatalf("Render(nil): %v", err)
	}
	if len(disp.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(disp.writes))
	}
}

func TestStaleQuoteRenders(t *testing.T) {
	disp := newFakeDisplay()
	r := newTestRenderer(disp, NewScheduler(time.Hour, 1000))

	if err := r.Render(sampleQuote(0.004), 5*time.Minute); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestRenderTestPattern(t *testing.T) {
	disp := newFakeDisplay()
	sched := NewScheduler(time.Hour, 1000)
	r := newTestRenderer(disp, sched)

	if err := r.RenderTestPattern(); err != nil {
		t.Fatalf("RenderTestPattern: %v", err)
	}
	if disp.modes[0] != epd2in7.UpdateFull {
		t.Errorf("test pattern mode = %v, want full", disp.modes[0])
	}
	if r.retained == nil {
		t.Error("test pattern should become the retained frame")
	}
}
