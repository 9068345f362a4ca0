package command

import (
	"fmt"
	"math"
	"strconv"

	"github.com/itohio/gopedal/pkg/record"
)

// Key is a SET-able field of the configuration record.
type Key struct {
	Name        string
	Description string

	// loadCell marks keys whose change re-initializes the load-cell driver.
	loadCell bool
	decimal  bool
	apply    func(r *record.Record, value string) error
}

// IsFloat reports whether the key takes a decimal value.
func (k Key) IsFloat() bool {
	return k.decimal
}

var keys = []Key{
	boundKey("clutchMin", record.Clutch, false),
	boundKey("clutchMax", record.Clutch, true),
	boundKey("throttleMin", record.Throttle, false),
	boundKey("throttleMax", record.Throttle, true),
	boundKey("brakeMin", record.Brake, false),
	boundKey("brakeMax", record.Brake, true),
	{
		Name:        "deadzone",
		Description: "Deadzone width in output units (0-1023).",
		apply: func(r *record.Record, value string) error {
			v, err := parseInt(value, math.MinInt16, math.MaxInt16)
			if err != nil {
				return err
			}
			r.Deadzone = int16(v)
			return nil
		},
	},
	pinKey("clutchPin", "Analog input for the clutch potentiometer.", false, func(r *record.Record) *uint8 { return &r.Pins.Clutch }),
	pinKey("throttlePin", "Analog input for the throttle potentiometer.", false, func(r *record.Record) *uint8 { return &r.Pins.Throttle }),
	pinKey("loadCellDataPin", "Load-cell data line.", true, func(r *record.Record) *uint8 { return &r.Pins.LoadCellData }),
	pinKey("loadCellClockPin", "Load-cell clock line.", true, func(r *record.Record) *uint8 { return &r.Pins.LoadCellClock }),
	smoothingKey("clutchSmoothing", record.Clutch),
	smoothingKey("throttleSmoothing", record.Throttle),
	smoothingKey("brakeSmoothing", record.Brake),
	{
		Name:        "debug",
		Description: "Emit DBG diagnostics with each telemetry line (0 or 1).",
		apply: func(r *record.Record, value string) error {
			v, err := parseInt(value, 0, 1)
			if err != nil {
				return err
			}
			r.Debug = v == 1
			return nil
		},
	},
}

var keyIndex = func() map[string]*Key {
	m := make(map[string]*Key, len(keys))
	for i := range keys {
		m[keys[i].Name] = &keys[i]
	}
	return m
}()

// Keys returns the SET-able keys in display order.
func Keys() []Key {
	return append([]Key(nil), keys...)
}

// Value returns the current value of the named key in r, formatted as a SET
// argument.
func Value(r record.Record, name string) (string, bool) {
	switch name {
	case "clutchMin":
		return itoa(int64(r.Bounds[record.Clutch].Min)), true
	case "clutchMax":
		return itoa(int64(r.Bounds[record.Clutch].Max)), true
	case "throttleMin":
		return itoa(int64(r.Bounds[record.Throttle].Min)), true
	case "throttleMax":
		return itoa(int64(r.Bounds[record.Throttle].Max)), true
	case "brakeMin":
		return itoa(int64(r.Bounds[record.Brake].Min)), true
	case "brakeMax":
		return itoa(int64(r.Bounds[record.Brake].Max)), true
	case "deadzone":
		return itoa(int64(r.Deadzone)), true
	case "clutchPin":
		return itoa(int64(r.Pins.Clutch)), true
	case "throttlePin":
		return itoa(int64(r.Pins.Throttle)), true
	case "loadCellDataPin":
		return itoa(int64(r.Pins.LoadCellData)), true
	case "loadCellClockPin":
		return itoa(int64(r.Pins.LoadCellClock)), true
	case "clutchSmoothing":
		return ftoa(r.Smoothing[record.Clutch]), true
	case "throttleSmoothing":
		return ftoa(r.Smoothing[record.Throttle]), true
	case "brakeSmoothing":
		return ftoa(r.Smoothing[record.Brake]), true
	case "debug":
		if r.Debug {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

func boundKey(name string, ch record.Channel, upper bool) Key {
	lo, hi := int64(math.MinInt16), int64(math.MaxInt16)
	if ch == record.Brake {
		lo, hi = math.MinInt32, math.MaxInt32
	}
	end := "lower"
	if upper {
		end = "upper"
	}
	return Key{
		Name:        name,
		Description: fmt.Sprintf("Raw %s calibration %s bound (%d..%d).", ch, end, lo, hi),
		apply: func(r *record.Record, value string) error {
			v, err := parseInt(value, lo, hi)
			if err != nil {
				return err
			}
			if upper {
				r.Bounds[ch].Max = int32(v)
			} else {
				r.Bounds[ch].Min = int32(v)
			}
			return nil
		},
	}
}

func pinKey(name, description string, loadCell bool, field func(r *record.Record) *uint8) Key {
	return Key{
		Name:        name,
		Description: description,
		loadCell:    loadCell,
		apply: func(r *record.Record, value string) error {
			v, err := parseInt(value, 0, math.MaxUint8)
			if err != nil {
				return err
			}
			*field(r) = uint8(v)
			return nil
		},
	}
}

func smoothingKey(name string, ch record.Channel) Key {
	return Key{
		Name:        name,
		Description: fmt.Sprintf("Exponential smoothing factor for %s (0..1, 1 = no smoothing).", ch),
		decimal:     true,
		apply: func(r *record.Record, value string) error {
			v, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return fmt.Errorf("%w: %q is not a decimal", ErrInvalidValue, value)
			}
			r.Smoothing[ch] = float32(v)
			return nil
		},
	}
}

func parseInt(value string, lo, hi int64) (int64, error) {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, value)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %d outside %d..%d", ErrInvalidValue, v, lo, hi)
	}
	return v, nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func ftoa(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
