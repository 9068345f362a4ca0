//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"machine/usb/hid/joystick"
	"time"

	"github.com/itohio/gopedal/pkg/pedal"
	"github.com/itohio/gopedal/pkg/record"
)

var (
	serial = machine.Serial

	// Live configuration, owned by the control loop
	cfg record.Record
)

func main() {
	serial.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})
	machine.InitADC()

	storage := newFlashMedium(CONFIG_FLASH_OFFSET)
	hw := pedal.Hardware{
		Analog:   newAnalogInputs(),
		LoadCell: &loadCell{},
		Output:   newJoystick(joystick.Port()),
	}

	ctrl := pedal.New(&cfg, record.NewStore(storage, 0, serial), hw,
		pedal.NewSerialLines(serial, pedal.DefaultMaxLine), serial)
	if err := ctrl.Init(); err != nil {
		println("ERR init:", err.Error())
	}

	start := time.Now()
	for {
		ctrl.Cycle(uint32(time.Since(start).Milliseconds()))
		time.Sleep(CYCLE_PERIOD)
	}
}
