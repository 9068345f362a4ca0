package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// image is the fixed-size binary form of a Record. Field order and widths are
// the persisted format; changing them requires a new Version.
type image struct {
	ClutchMin     int16
	ClutchMax     int16
	ThrottleMin   int16
	ThrottleMax   int16
	BrakeMin      int32
	BrakeMax      int32
	Deadzone      int16
	ClutchPin     uint8
	ThrottlePin   uint8
	LoadCellData  uint8
	LoadCellClock uint8
	Smoothing     [NumChannels]float32
	Debug         uint8
}

// ImageSize is the size of the encoded record in bytes.
var ImageSize = binary.Size(image{})

func toImage(r Record) image {
	img := image{
		ClutchMin:     int16(r.Bounds[Clutch].Min),
		ClutchMax:     int16(r.Bounds[Clutch].Max),
		ThrottleMin:   int16(r.Bounds[Throttle].Min),
		ThrottleMax:   int16(r.Bounds[Throttle].Max),
		BrakeMin:      r.Bounds[Brake].Min,
		BrakeMax:      r.Bounds[Brake].Max,
		Deadzone:      r.Deadzone,
		ClutchPin:     r.Pins.Clutch,
		ThrottlePin:   r.Pins.Throttle,
		LoadCellData:  r.Pins.LoadCellData,
		LoadCellClock: r.Pins.LoadCellClock,
		Smoothing:     r.Smoothing,
	}
	if r.Debug {
		img.Debug = 1
	}
	return img
}

func (img image) record() Record {
	return Record{
		Bounds: [NumChannels]Bounds{
			Clutch:   {Min: int32(img.ClutchMin), Max: int32(img.ClutchMax)},
			Throttle: {Min: int32(img.ThrottleMin), Max: int32(img.ThrottleMax)},
			Brake:    {Min: img.BrakeMin, Max: img.BrakeMax},
		},
		Deadzone: img.Deadzone,
		Pins: Pins{
			Clutch:        img.ClutchPin,
			Throttle:      img.ThrottlePin,
			LoadCellData:  img.LoadCellData,
			LoadCellClock: img.LoadCellClock,
		},
		Smoothing: img.Smoothing,
		Debug:     img.Debug != 0,
	}
}

// MarshalBinary encodes the record into its fixed-size little-endian image.
func (r Record) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(ImageSize)
	if err := binary.Write(&buf, binary.LittleEndian, toImage(r)); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an image produced by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != ImageSize {
		return fmt.Errorf("invalid image size: expected %d bytes, got %d", ImageSize, len(data))
	}
	var img image
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &img); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	*r = img.record()
	return nil
}
