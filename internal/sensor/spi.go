package sensor

import "fmt"

// pin is the subset of a GPIO line used by the software SPI reader.
// *gpiocdev.Line satisfies it.
type pin interface {
	Value() (int, error)
	SetValue(value int) error
}

// readFrame clocks a 32-bit frame out of the MAX31855, MSB first.
// CS is active low; data is sampled while SCK is low, as the part
// shifts out on the falling edge.
func readFrame(cs, sck, miso pin, delay func()) (frame uint32, err error) {
	if err := sck.SetValue(0); err != nil {
		return 0, fmt.Errorf("set SCK low: %w", err)
	}
	if err := cs.SetValue(0); err != nil {
		return 0, fmt.Errorf("assert CS: %w", err)
	}
	defer func() {
		if cerr := cs.SetValue(1); cerr != nil && err == nil {
			err = fmt.Errorf("release CS: %w", cerr)
		}
	}()
	delay()

	for i := 31; i >= 0; i-- {
		if err := sck.SetValue(0); err != nil {
			return 0, fmt.Errorf("clock low bit %d: %w", i, err)
		}
		delay()
		v, err := miso.Value()
		if err != nil {
			return 0, fmt.Errorf("read MISO bit %d: %w", i, err)
		}
		if v != 0 {
			frame |= 1 << uint(i)
		}
		if err := sck.SetValue(1); err != nil {
			return 0, fmt.Errorf("clock high bit %d: %w", i, err)
		}
		delay()
	}

	return frame, nil
}
