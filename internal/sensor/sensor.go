// Package sensor provides temperature input with hardware abstraction.
// The real implementation reads a MAX31855 thermocouple amplifier over
// bit-banged SPI on the Linux GPIO character device.
// The fake and slider implementations allow running without hardware.
package sensor

import (
	"math"
	"strings"
)

// Reader reads temperature samples.
type Reader interface {
	// Read returns the current sample. A sensor fault is reported in
	// Sample.Fault, not as an error; errors mean the read itself failed.
	Read() (Sample, error)

	// Close releases hardware resources.
	Close() error
}

// Sample is a single thermocouple reading.
type Sample struct {
	TempC float64 // NaN when Fault is set
	Fault Fault
}

// Faulted reports whether the sample carries a sensor fault.
func (s Sample) Faulted() bool {
	return s.Fault != FaultNone
}

// Fault is the MAX31855 fault bitmask.
type Fault uint8

const (
	FaultNone        Fault = 0
	FaultOpenCircuit Fault = 1 << 0 // thermocouple not connected
	FaultShortGND    Fault = 1 << 1 // thermocouple shorted to GND
	FaultShortVCC    Fault = 1 << 2 // thermocouple shorted to VCC
)

func (f Fault) String() string {
	if f == FaultNone {
		return "NONE"
	}
	var parts []string
	if f&FaultOpenCircuit != 0 {
		parts = append(parts, "OPEN_CIRCUIT")
	}
	if f&FaultShortGND != 0 {
		parts = append(parts, "SHORT_GND")
	}
	if f&FaultShortVCC != 0 {
		parts = append(parts, "SHORT_VCC")
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, "|")
}

// Pin definitions (BCM numbering)
const (
	DefaultPinCS   = 8  // SPI0 CE0
	DefaultPinSCK  = 11 // SPI0 SCLK
	DefaultPinMISO = 9  // SPI0 MISO
)

// DecodeMAX31855 decodes a raw 32-bit MAX31855 frame.
//
// Bits 31..18 hold the signed 14-bit thermocouple temperature in 0.25 C
// steps, bit 16 is the fault flag and bits 2..0 name the fault.
func DecodeMAX31855(frame uint32) Sample {
	if frame&(1<<16) != 0 {
		f := Fault(frame & 0x7)
		if f == FaultNone {
			// Fault flag without detail bits; report it as open circuit
			// rather than dropping it.
			f = FaultOpenCircuit
		}
		return Sample{TempC: math.NaN(), Fault: f}
	}

	// Arithmetic shift keeps the sign of the 14-bit value.
	raw := int32(frame) >> 18
	return Sample{TempC: float64(raw) * 0.25}
}
