//go:build tinygo

package main

import (
	"machine"
	"machine/usb/hid/joystick"
	"time"

	"github.com/itohio/gopedal/pkg/record"
)

// analogInputs reads potentiometers by configured pin number. ADCs are
// configured on first use so a SET of a pin takes effect immediately.
type analogInputs struct {
	adcs []*machine.ADC
}

func newAnalogInputs() *analogInputs {
	return &analogInputs{adcs: make([]*machine.ADC, len(analogPins))}
}

func (a *analogInputs) ReadAnalog(pin uint8) int32 {
	if int(pin) >= len(analogPins) {
		return 0
	}
	adc := a.adcs[pin]
	if adc == nil {
		adc = &machine.ADC{Pin: analogPins[pin]}
		adc.Configure(machine.ADCConfig{
			Reference:  ADC_REFERENCE_MV,
			Resolution: ADC_RESOLUTION,
		})
		a.adcs[pin] = adc
	}
	// Get is left-aligned to 16 bits
	return int32(adc.Get() >> 6)
}

// loadCell is a bit-banged HX711 reader on channel A, gain 128.
type loadCell struct {
	data  machine.Pin
	clock machine.Pin
	valid bool
}

func (c *loadCell) Init(dataPin, clockPin uint8) {
	c.valid = int(dataPin) < len(digitalPins) && int(clockPin) < len(digitalPins) && dataPin != clockPin
	if !c.valid {
		return
	}
	c.data = digitalPins[dataPin]
	c.clock = digitalPins[clockPin]
	c.data.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	c.clock.Configure(machine.PinConfig{Mode: machine.PinOutput})
	c.clock.Low()
}

// IsReady reports whether a conversion is waiting. The HX711 pulls data
// low when one is.
func (c *loadCell) IsReady() bool {
	return c.valid && !c.data.Get()
}

// Read clocks out one 24-bit two's complement sample.
func (c *loadCell) Read() int32 {
	var v uint32
	for range 24 {
		c.pulse()
		v <<= 1
		if c.data.Get() {
			v |= 1
		}
	}
	for range LOADCELL_GAIN_128 {
		c.pulse()
	}
	// sign-extend from 24 bits
	return int32(v<<8) >> 8
}

func (c *loadCell) pulse() {
	c.clock.High()
	time.Sleep(LOADCELL_PULSE_US * time.Microsecond)
	c.clock.Low()
	time.Sleep(LOADCELL_PULSE_US * time.Microsecond)
}

// flashMedium stores the configuration record in on-chip flash. Erased
// flash reads as 0xFF, which the store treats as uninitialized.
type flashMedium struct {
	offset int64
}

func newFlashMedium(offset int64) *flashMedium {
	return &flashMedium{offset: offset}
}

func (m *flashMedium) ReadAt(p []byte, off int64) (int, error) {
	return machine.Flash.ReadAt(p, m.offset+off)
}

// WriteAt erases the blocks covering the write before programming them.
func (m *flashMedium) WriteAt(p []byte, off int64) (int, error) {
	blockSize := machine.Flash.EraseBlockSize()
	start := (m.offset + off) / blockSize
	end := (m.offset + off + int64(len(p)) + blockSize - 1) / blockSize
	if err := machine.Flash.EraseBlocks(start, end-start); err != nil {
		return 0, err
	}
	return machine.Flash.WriteAt(p, m.offset+off)
}

// hidJoystick reports the three pedals on the first three joystick axes.
type hidJoystick struct {
	js *joystick.Joystick
}

func newJoystick(js *joystick.Joystick) *hidJoystick {
	return &hidJoystick{js: js}
}

// axis scales 0..OutputMax to the signed 16-bit HID axis range.
func axis(v int) int {
	return v*65534/record.OutputMax - 32767
}

func (j *hidJoystick) SetClutch(v int) {
	j.js.SetAxis(0, axis(v))
}

func (j *hidJoystick) SetThrottle(v int) {
	j.js.SetAxis(1, axis(v))
}

// SetBrake is the last output of a cycle, so it also sends the report.
func (j *hidJoystick) SetBrake(v int) {
	j.js.SetAxis(2, axis(v))
	j.js.SendState()
}
