// Package epd2in7 controls the Waveshare 2.7" V2 e-paper HAT via SPI.
//
// The V2 HAT carries an SSD1680-family controller driving a 176×264
// bistable monochrome panel. The panel keeps its image without power; an
// update cycle is explicit and slow (hundreds of milliseconds to a few
// seconds), signalled by the BUSY line.
//
// # Hardware Connection
//
// The HAT plugs onto the Raspberry Pi header. Discrete wiring:
//
//	Display Pin → System Pin
//	VCC         → 3.3V
//	GND         → GND
//	DIN         → SPI MOSI
//	CLK         → SPI SCLK
//	CS          → SPI CE0
//	DC          → GPIO25
//	RST         → GPIO17
//	BUSY        → GPIO24
//
// # Basic Usage
//
//	host.Init()
//	port, _ := spireg.Open("")
//	dev, _ := epd2in7.NewSPI(port,
//		gpioreg.ByName("GPIO25"), // DC
//		gpioreg.ByName("GPIO17"), // RST
//		gpioreg.ByName("GPIO24"), // BUSY
//		nil)
//
//	dev.Init()
//	frame := image1bit.NewFilled(dev.Bounds(), image1bit.White)
//	// ... draw on frame ...
//	dev.WriteFrame(frame.Pack())
//	dev.Activate(epd2in7.UpdateFull)
//	dev.Sleep()
//
// # Update Modes
//
// UpdateFull runs the flicker cycle and clears ghosting; UpdatePartial is
// fast but accumulates ghosting over repeated use; UpdateFast trades some
// ghost clearing for speed. Long-running applications should interleave
// partial updates with periodic full refreshes.
//
// # Concurrency
//
// The device is synchronous and has no internal locking. Only one
// operation may be in flight at a time; callers embedding the device in a
// multi-threaded host must serialize access themselves.
//
// # Failure Semantics
//
// Transport-level I/O errors are fatal and propagate to the caller. A BUSY
// wait that exhausts its budget is a timing advisory: it is logged at
// warning level, counted via BusyTimeouts, and the protocol advances on
// the assumption the panel finishes asynchronously.
package epd2in7
