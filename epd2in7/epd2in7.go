package epd2in7

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/tetsuolabs/epdticker/image1bit"
)

// Panel geometry limits of the controller family (sources x gates).
const (
	maxWidth  = 176
	maxHeight = 296
)

// state tracks the controller protocol phase.
type state int

const (
	stateUninitialized state = iota
	stateResetting
	stateConfiguring
	stateReady
	stateUpdating
	stateSleeping
)

// String returns a human-readable representation of the state.
func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateResetting:
		return "resetting"
	case stateConfiguring:
		return "configuring"
	case stateReady:
		return "ready"
	case stateUpdating:
		return "updating"
	case stateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Opts is the configuration for the e-paper panel.
type Opts struct {
	// Display dimensions in pixels.
	W int // Width (default: 176, must be <=176)
	H int // Height (default: 264, must be <=296)

	// BusyIterations is the busy-poll budget per wait, sampled every
	// 100ms. Default: 50 (5s), which bounds a full refresh cycle with
	// margin per the panel datasheet.
	BusyIterations int

	// Logger receives warning-level timing advisories. Defaults to a
	// no-op logger.
	Logger *zerolog.Logger
}

func (o *Opts) setDefaults() error {
	if o.W == 0 {
		o.W = 176
	}
	if o.H == 0 {
		o.H = 264
	}
	if o.BusyIterations == 0 {
		o.BusyIterations = 50
	}
	if o.W <= 0 || o.W > maxWidth {
		return fmt.Errorf("epd2in7: width must be between 1 and %d", maxWidth)
	}
	if o.H <= 0 || o.H > maxHeight {
		return fmt.Errorf("epd2in7: height must be between 1 and %d", maxHeight)
	}
	if o.BusyIterations < 0 {
		return errors.New("epd2in7: busy iterations must be positive")
	}
	return nil
}

// Dev is the device handle for the e-paper panel.
//
// Dev has no internal locking; only one operation may be in flight at a
// time and callers must serialize access externally.
type Dev struct {
	t transport

	rect      image.Rectangle
	busyIters int
	log       zerolog.Logger

	st           state
	busyTimeouts int
}

// NewSPI creates a device handle for a panel connected via SPI.
//
// The SPI port is configured for 4MHz, Mode0, 8-bit transfers. dc, rst and
// busy are the HAT's data/command select, reset and busy GPIO lines.
//
// opts can be nil to use defaults (176x264 panel).
func NewSPI(p spi.Port, dc gpio.PinOut, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	c, err := p.Connect(4*1000*1000, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd2in7: failed to connect SPI: %w", err)
	}
	t := &spiTransport{c: c, dc: dc, rst: rst, busy: busy, sleep: time.Sleep}
	return newDev(t, opts)
}

// NewSim creates a device handle backed by a simulated, always-idle panel.
// All bus traffic is recorded and discarded. Useful for running the
// application off-hardware.
func NewSim(opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	return newDev(&simTransport{idle: true}, opts)
}

func newDev(t transport, opts *Opts) (*Dev, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Dev{
		t:         t,
		rect:      image.Rect(0, 0, opts.W, opts.H),
		busyIters: opts.BusyIterations,
		log:       log,
		st:        stateUninitialized,
	}, nil
}

// Bounds returns the panel bounds.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// BufferLen returns the exact frame payload length in bytes.
func (d *Dev) BufferLen() int {
	return image1bit.PackedLen(d.rect.Dx(), d.rect.Dy())
}

// BusyTimeouts returns how many busy waits have expired without the panel
// reporting idle. Non-zero values indicate the panel is slower than the
// configured budget, not a failure.
func (d *Dev) BusyTimeouts() int {
	return d.busyTimeouts
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("epd2in7.Dev{%dx%d %s}", d.rect.Dx(), d.rect.Dy(), d.st)
}

// waitIdle blocks until the panel releases the BUSY line or the iteration
// budget expires. Expiry is a timing advisory: the panel is assumed to
// finish asynchronously and the protocol advances.
func (d *Dev) waitIdle() {
	if d.t.pollBusy(d.busyIters) {
		return
	}
	d.busyTimeouts++
	d.log.Warn().
		Int("budget", d.busyIters).
		Dur("interval", busyPollInterval).
		Msg("panel BUSY did not clear within budget")
}

// cmd sends an opcode followed by its data bytes, if any.
func (d *Dev) cmd(c byte, data ...byte) error {
	if err := d.t.sendCommand(c); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return d.t.sendData(data)
}

// Reset pulses the hardware reset line and waits for the panel to settle.
// Required once before the first Init and to wake the panel from deep
// sleep.
func (d *Dev) Reset() error {
	switch d.st {
	case stateUninitialized, stateReady, stateSleeping:
	default:
		return fmt.Errorf("epd2in7: cannot reset from state %s", d.st)
	}
	if err := d.t.pulseReset(); err != nil {
		return err
	}
	d.st = stateResetting
	d.waitIdle()
	return nil
}

// Init applies the controller configuration sequence and leaves the panel
// ready for frame writes. It is idempotent: calling it again from the
// ready state re-applies the same configuration. If the panel has not been
// reset yet (or is in deep sleep), a hardware reset is performed first.
func (d *Dev) Init() error {
	switch d.st {
	case stateUninitialized, stateSleeping:
		if err := d.Reset(); err != nil {
			return err
		}
	case stateResetting, stateReady:
	default:
		return fmt.Errorf("epd2in7: cannot initialize from state %s", d.st)
	}
	d.st = stateConfiguring

	if err := d.cmd(cmdSWReset); err != nil {
		return err
	}
	d.waitIdle()

	w, h := d.rect.Dx(), d.rect.Dy()
	seq := []struct {
		cmd  byte
		data []byte
	}{
		{cmdDriverOutputControl, []byte{byte((h - 1) & 0xFF), byte((h - 1) >> 8), 0x00}},
		{cmdDataEntryMode, []byte{dataEntryIncrementXY}},
		{cmdSetRAMXRange, []byte{0x00, byte((w+7)/8 - 1)}},
		{cmdSetRAMYRange, []byte{0x00, 0x00, byte((h - 1) & 0xFF), byte((h - 1) >> 8)}},
		{cmdBorderWaveform, []byte{borderWaveformValue}},
		{cmdTempSensorControl, []byte{tempSensorInternal}},
		{cmdSetRAMXCounter, []byte{0x00}},
		{cmdSetRAMYCounter, []byte{0x00, 0x00}},
	}
	for _, s := range seq {
		if err := d.cmd(s.cmd, s.data...); err != nil {
			return err
		}
	}

	d.st = stateReady
	return nil
}

// WriteFrame streams a packed frame into the panel RAM. The payload length
// must be exactly BufferLen(); a mismatch fails before any bus traffic.
// The update is latched but not shown until Activate runs.
func (d *Dev) WriteFrame(buf []byte) error {
	if d.st != stateReady {
		return fmt.Errorf("epd2in7: cannot write frame from state %s", d.st)
	}
	if len(buf) != d.BufferLen() {
		return fmt.Errorf("epd2in7: frame payload is %d bytes, want %d", len(buf), d.BufferLen())
	}
	d.st = stateUpdating
	return d.cmd(cmdWriteRAM, buf...)
}

// Activate runs a display update cycle with the given waveform mode and
// blocks until the panel reports idle or the busy budget expires. The
// device lands in the ready state either way; expiry is best-effort.
func (d *Dev) Activate(mode UpdateMode) error {
	if d.st != stateUpdating {
		return fmt.Errorf("epd2in7: cannot activate from state %s", d.st)
	}
	if err := d.cmd(cmdDisplayUpdateControl2, byte(mode)); err != nil {
		return err
	}
	if err := d.cmd(cmdMasterActivate); err != nil {
		return err
	}
	d.waitIdle()
	d.st = stateReady
	return nil
}

// Clear whites the whole panel with a full refresh cycle.
func (d *Dev) Clear() error {
	white := make([]byte, d.BufferLen())
	for i := range white {
		white[i] = 0xFF
	}
	if err := d.WriteFrame(white); err != nil {
		return err
	}
	return d.Activate(UpdateFull)
}

// Sleep puts the panel into deep sleep. A hardware reset is required to
// use the panel again.
func (d *Dev) Sleep() error {
	if d.st != stateReady {
		return fmt.Errorf("epd2in7: cannot sleep from state %s", d.st)
	}
	if err := d.cmd(cmdDeepSleep, deepSleepMode1); err != nil {
		return err
	}
	d.st = stateSleeping
	return nil
}
