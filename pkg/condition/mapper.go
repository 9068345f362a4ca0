// Package condition implements the per-sample signal conditioning stages:
// calibration mapping, exponential smoothing and the deadzone filter.
package condition

import "github.com/itohio/gopedal/pkg/record"

// OutputMax is the upper end of the canonical output range.
const OutputMax = record.OutputMax

// Map clamps raw into [lo, hi] and rescales it linearly onto [0, OutputMax].
// Degenerate bounds (hi <= lo) map everything to 0; Record.Validate keeps
// them out of the live configuration.
func Map(raw, lo, hi int32) int {
	if hi <= lo {
		return 0
	}
	if raw < lo {
		raw = lo
	} else if raw > hi {
		raw = hi
	}
	return int((int64(raw) - int64(lo)) * OutputMax / (int64(hi) - int64(lo)))
}

// MapBounds is Map with the bounds taken from a record.
func MapBounds(raw int32, b record.Bounds) int {
	return Map(raw, b.Min, b.Max)
}
