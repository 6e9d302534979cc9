package epd2in7

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// busyPollInterval is how often the BUSY line is sampled while waiting for
// the panel to finish an internal update.
const busyPollInterval = 100 * time.Millisecond

// transport is the capability boundary to the physical link: a
// command/data select line, a reset line, a busy input and a byte-oriented
// serial write. It is chosen once at construction; nothing above it
// branches on hardware presence.
type transport interface {
	// sendCommand selects command mode and writes one opcode byte.
	sendCommand(cmd byte) error
	// sendData selects data mode and writes one or more bytes.
	sendData(data []byte) error
	// pulseReset drives the reset line high, low (>=2ms), high, with
	// ~200ms settle on each edge.
	pulseReset() error
	// pollBusy samples the BUSY line at busyPollInterval until idle or
	// the iteration budget runs out. It reports whether the panel became
	// idle; it never fails on timeout.
	pollBusy(iterations int) bool
}

// spiTransport drives the real panel over SPI plus DC/RST/BUSY GPIO lines.
type spiTransport struct {
	c     conn.Conn
	dc    gpio.PinOut
	rst   gpio.PinOut
	busy  gpio.PinIn
	sleep func(time.Duration)
}

func (t *spiTransport) sendCommand(cmd byte) error {
	if err := t.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd2in7: failed to select command mode: %w", err)
	}
	return t.c.Tx([]byte{cmd}, nil)
}

func (t *spiTransport) sendData(data []byte) error {
	if err := t.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("epd2in7: failed to select data mode: %w", err)
	}
	return t.c.Tx(data, nil)
}

func (t *spiTransport) pulseReset() error {
	if err := t.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("epd2in7: failed to drive RST high: %w", err)
	}
	t.sleep(200 * time.Millisecond)

	if err := t.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd2in7: failed to drive RST low: %w", err)
	}
	t.sleep(2 * time.Millisecond)

	if err := t.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("epd2in7: failed to drive RST high: %w", err)
	}
	t.sleep(200 * time.Millisecond)
	return nil
}

func (t *spiTransport) pollBusy(iterations int) bool {
	for i := 0; i < iterations; i++ {
		if t.busy.Read() == gpio.Low {
			return true
		}
		t.sleep(busyPollInterval)
	}
	return false
}

// simTransport records bus traffic and reports an always-idle panel. It
// backs off-hardware runs and the package tests.
type simTransport struct {
	cmds []simOp
	// idle is the result pollBusy reports. Defaults to true via NewSim.
	idle   bool
	resets int
	polls  int
}

// simOp is one command with the data bytes that followed it.
type simOp struct {
	cmd  byte
	data []byte
}

func (t *simTransport) sendCommand(cmd byte) error {
	t.cmds = append(t.cmds, simOp{cmd: cmd})
	return nil
}

func (t *simTransport) sendData(data []byte) error {
	if len(t.cmds) == 0 {
		t.cmds = append(t.cmds, simOp{})
	}
	last := &t.cmds[len(t.cmds)-1]
	last.data = append(last.data, data...)
	return nil
}

func (t *simTransport) pulseReset() error {
	t.resets++
	return nil
}

func (t *simTransport) pollBusy(int) bool {
	t.polls++
	return t.idle
}
