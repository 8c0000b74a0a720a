//go:build linux

package sensor

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// bitDelay is the half-period of the software SPI clock.
const bitDelay = 10 * time.Microsecond

// RealReader reads a MAX31855 from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip *gpiocdev.Chip
	cs   *gpiocdev.Line
	sck  *gpiocdev.Line
	miso *gpiocdev.Line
}

// NewRealReader requests the CS, SCK and MISO lines on gpiochip0.
func NewRealReader(pinCS, pinSCK, pinMISO int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0", gpiocdev.WithConsumer("water-heater"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// CS idles high (deselected), SCK idles low.
	cs, err := chip.RequestLine(pinCS, gpiocdev.AsOutput(1))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request CS pin %d: %w", pinCS, err)
	}

	sck, err := chip.RequestLine(pinSCK, gpiocdev.AsOutput(0))
	if err != nil {
		cs.Close()
		chip.Close()
		return nil, fmt.Errorf("request SCK pin %d: %w", pinSCK, err)
	}

	miso, err := chip.RequestLine(pinMISO, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		sck.Close()
		cs.Close()
		chip.Close()
		return nil, fmt.Errorf("request MISO pin %d: %w", pinMISO, err)
	}

	return &RealReader{
		chip: chip,
		cs:   cs,
		sck:  sck,
		miso: miso,
	}, nil
}

// Read clocks one frame out of the MAX31855 and decodes it.
func (r *RealReader) Read() (Sample, error) {
	frame, err := readFrame(r.cs, r.sck, r.miso, func() { time.Sleep(bitDelay) })
	if err != nil {
		return Sample{}, fmt.Errorf("read max31855: %w", err)
	}
	return DecodeMAX31855(frame), nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{
		{"CS", r.cs},
		{"SCK", r.sck},
		{"MISO", r.miso},
	} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
