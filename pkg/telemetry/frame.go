// Package telemetry defines the comma-separated telemetry line emitted by the
// pedal controller.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gopedal/pkg/record"
)

// Frame is one telemetry emission: raw samples and processed outputs for
// clutch, throttle and brake.
type Frame struct {
	Time time.Time // host receive time; not part of the wire format
	Raw  [record.NumChannels]int32
	Out  [record.NumChannels]int
}

// Format renders the frame as
//
//	rawClutch,rawThrottle,rawBrake,outClutch,outThrottle,outBrake
func Format(f Frame) string {
	b := make([]byte, 0, 48)
	for _, v := range f.Raw {
		b = strconv.AppendInt(b, int64(v), 10)
		b = append(b, ',')
	}
	for i, v := range f.Out {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	return string(b)
}

// Parse parses a telemetry line produced by Format.
func Parse(line string) (Frame, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2*record.NumChannels {
		return Frame{}, fmt.Errorf("invalid telemetry line: expected %d comma-separated values, got %d", 2*record.NumChannels, len(parts))
	}

	var f Frame
	for i := range record.NumChannels {
		raw, err := strconv.ParseInt(parts[i], 10, 32)
		if err != nil {
			return Frame{}, fmt.Errorf("invalid raw %s: %w", record.Channel(i), err)
		}
		f.Raw[i] = int32(raw)
	}
	for i := range record.NumChannels {
		out, err := strconv.Atoi(parts[record.NumChannels+i])
		if err != nil {
			return Frame{}, fmt.Errorf("invalid output %s: %w", record.Channel(i), err)
		}
		if out < 0 || out > record.OutputMax {
			return Frame{}, fmt.Errorf("output %s out of range: %d (max %d)", record.Channel(i), out, record.OutputMax)
		}
		f.Out[i] = out
	}
	return f, nil
}
