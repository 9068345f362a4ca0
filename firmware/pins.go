//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Serial configuration
	// Telemetry is at most "-8388608,-8388608,-8388608,1023,1023,1023\n" = 42 bytes
	// every 20ms, 2,100 bytes/sec. USB CDC ignores the rate, it only matters
	// when the protocol is routed to a hardware UART.
	UART_BAUD_RATE = 115200

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 10   // Calibration bounds are in 10-bit counts (0-1023)

	// Cycle pacing; acquisition and telemetry are gated by the controller
	CYCLE_PERIOD = time.Millisecond

	// Durable configuration lives at the start of the flash data area
	CONFIG_FLASH_OFFSET = 0

	// HX711 timing
	LOADCELL_PULSE_US = 1 // Clock high/low time in microseconds
	LOADCELL_GAIN_128 = 1 // Extra clock pulses selecting channel A, gain 128
)

// analogPins maps configured analog pin numbers to board pins.
var analogPins = []machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
	machine.A3,
	machine.A4,
	machine.A5,
	machine.A6,
	machine.A7,
	machine.A8,
	machine.A9,
	machine.A10,
}

// digitalPins maps configured digital pin numbers to board pins.
var digitalPins = []machine.Pin{
	machine.D0,
	machine.D1,
	machine.D2,
	machine.D3,
	machine.D4,
	machine.D5,
	machine.D6,
	machine.D7,
	machine.D8,
	machine.D9,
	machine.D10,
}
