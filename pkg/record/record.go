package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Channel identifies one pedal axis.
type Channel int

const (
	Clutch Channel = iota
	Throttle
	Brake

	// NumChannels is the number of pedal channels handled by the pipeline.
	NumChannels = 3
)

// OutputMax is the upper end of the canonical output range [0, OutputMax].
const OutputMax = 1023

// ErrInvalidRecord is returned when a record violates one of its invariants.
var ErrInvalidRecord = errors.New("invalid record")

var channelNames = [NumChannels]string{"clutch", "throttle", "brake"}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return "channel(" + strconv.Itoa(int(c)) + ")"
	}
	return channelNames[c]
}

// Bounds are the raw-sample calibration bounds of a channel.
type Bounds struct {
	Min int32
	Max int32
}

// Pins is the physical line assignment of the sensors.
type Pins struct {
	Clutch        uint8
	Throttle      uint8
	LoadCellData  uint8
	LoadCellClock uint8
}

// Record is the persisted pedal configuration.
type Record struct {
	Bounds    [NumChannels]Bounds
	Deadzone  int16
	Pins      Pins
	Smoothing [NumChannels]float32
	Debug     bool
}

// Default returns the compiled-in configuration.
func Default() Record {
	return Record{
		Bounds: [NumChannels]Bounds{
			Clutch:   {Min: 579, Max: 693},
			Throttle: {Min: 619, Max: 804},
			Brake:    {Min: 0, Max: 400000},
		},
		Deadzone: 20,
		Pins: Pins{
			Clutch:        0,
			Throttle:      1,
			LoadCellData:  3,
			LoadCellClock: 2,
		},
		Smoothing: [NumChannels]float32{0.5, 0.5, 0.5},
		Debug:     false,
	}
}

// Validate checks the record invariants. Clutch and throttle bounds must fit
// the 16-bit fields of the persisted image.
func (r Record) Validate() error {
	for ch := Channel(0); ch < NumChannels; ch++ {
		b := r.Bounds[ch]
		if b.Min >= b.Max {
			return fmt.Errorf("%w: %s min %d must be below max %d", ErrInvalidRecord, ch, b.Min, b.Max)
		}
		if ch != Brake && (b.Min < math.MinInt16 || b.Max > math.MaxInt16) {
			return fmt.Errorf("%w: %s bounds %d..%d exceed 16 bits", ErrInvalidRecord, ch, b.Min, b.Max)
		}
		a := r.Smoothing[ch]
		if math.IsNaN(float64(a)) || a < 0 || a > 1 {
			return fmt.Errorf("%w: %s smoothing %v outside [0,1]", ErrInvalidRecord, ch, a)
		}
	}
	if r.Deadzone < 0 || r.Deadzone > OutputMax {
		return fmt.Errorf("%w: deadzone %d outside [0,%d]", ErrInvalidRecord, r.Deadzone, OutputMax)
	}
	return nil
}

// String renders the record as a CFG status line:
//
//	CFG,cMin,cMax,tMin,tMax,bMin,bMax,deadzone,cPin,tPin,dataPin,clockPin,cAlpha,tAlpha,bAlpha,debug
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteString(statusPrefix)
	for _, b := range r.Bounds {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(int64(b.Min), 10))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(int64(b.Max), 10))
	}
	sb.WriteByte(',')
	sb.WriteString(strconv.Itoa(int(r.Deadzone)))
	for _, p := range []uint8{r.Pins.Clutch, r.Pins.Throttle, r.Pins.LoadCellData, r.Pins.LoadCellClock} {
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(int(p)))
	}
	for _, a := range r.Smoothing {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(float64(a), 'f', -1, 32))
	}
	sb.WriteByte(',')
	if r.Debug {
		sb.WriteByte('1')
	} else {
		sb.WriteByte('0')
	}
	return sb.String()
}

const (
	statusPrefix = "CFG"
	statusFields = 16
)

// IsStatus reports whether line is a CFG status line.
func IsStatus(line string) bool {
	return strings.HasPrefix(line, statusPrefix+",")
}

// ParseStatus parses a line produced by Record.String.
func ParseStatus(line string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != statusFields || parts[0] != statusPrefix {
		return Record{}, fmt.Errorf("invalid status line: expected %d comma-separated fields, got %d", statusFields, len(parts))
	}

	var r Record
	for i := range NumChannels {
		lo, err := strconv.ParseInt(parts[1+2*i], 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s min: %w", Channel(i), err)
		}
		hi, err := strconv.ParseInt(parts[2+2*i], 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s max: %w", Channel(i), err)
		}
		r.Bounds[i] = Bounds{Min: int32(lo), Max: int32(hi)}
	}

	dz, err := strconv.ParseInt(parts[7], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("invalid deadzone: %w", err)
	}
	r.Deadzone = int16(dz)

	pins := [4]*uint8{&r.Pins.Clutch, &r.Pins.Throttle, &r.Pins.LoadCellData, &r.Pins.LoadCellClock}
	for i, p := range pins {
		v, err := strconv.ParseUint(parts[8+i], 10, 8)
		if err != nil {
			return Record{}, fmt.Errorf("invalid pin %d: %w", i, err)
		}
		*p = uint8(v)
	}

	for i := range NumChannels {
		a, err := strconv.ParseFloat(parts[12+i], 32)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s smoothing: %w", Channel(i), err)
		}
		r.Smoothing[i] = float32(a)
	}

	switch parts[15] {
	case "0":
	case "1":
		r.Debug = true
	default:
		return Record{}, fmt.Errorf("invalid debug flag %q", parts[15])
	}

	return r, nil
}
