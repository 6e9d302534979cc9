package epd2in7

// Command opcodes for the SSD1680-family controller used by the 2.7" V2
// panel. The V2 HAT uses a different command set than the V1 (UC8159) HAT.
const (
	cmdDriverOutputControl   = 0x01
	cmdDeepSleep             = 0x10
	cmdDataEntryMode         = 0x11
	cmdSWReset               = 0x12
	cmdTempSensorControl     = 0x18
	cmdMasterActivate        = 0x20
	cmdDisplayUpdateControl2 = 0x22
	cmdWriteRAM              = 0x24
	cmdBorderWaveform        = 0x3C
	cmdSetRAMXRange          = 0x44
	cmdSetRAMYRange          = 0x45
	cmdSetRAMXCounter        = 0x4E
	cmdSetRAMYCounter        = 0x4F
)

// Fixed data payloads of the init sequence.
const (
	dataEntryIncrementXY = 0x03 // X and Y both incrementing
	borderWaveformValue  = 0x05
	tempSensorInternal   = 0x80
	deepSleepMode1       = 0x01
)

// UpdateMode selects the waveform used by a display update cycle.
type UpdateMode byte

const (
	// UpdateFull redraws the whole panel and clears residual ghosting.
	// Slow and visibly flickers.
	UpdateFull UpdateMode = 0xF7
	// UpdateFast is a quicker full-screen waveform with weaker ghost
	// clearing.
	UpdateFast UpdateMode = 0xC7
	// UpdatePartial updates without the flicker cycle. Ghosting
	// accumulates over repeated use.
	UpdatePartial UpdateMode = 0xFF
)

// String returns a human-readable name for the update mode.
func (m UpdateMode) String() string {
	switch m {
	case UpdateFull:
		return "full"
	case UpdateFast:
		return "fast"
	case UpdatePartial:
		return "partial"
	default:
		return "unknown"
	}
}
