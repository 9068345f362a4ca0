// Package autocal suggests calibration bounds from recorded raw samples.
package autocal

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

var (
	ErrNotEnoughSamples = errors.New("not enough samples")
	ErrCollapsedRange   = errors.New("pedal travel too small")
)

// Options controls how bounds are derived from the raw distribution.
type Options struct {
	LowQuantile  float64 // Quantile taken as the released position
	HighQuantile float64 // Quantile taken as the fully pressed position
	Margin       float64 // Fraction of the span moved inwards at each end
	MinSamples   int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		LowQuantile:  0.02,
		HighQuantile: 0.98,
		Margin:       0.03,
		MinSamples:   50,
	}
}

// Channel is the analysis of one pedal.
type Channel struct {
	Bounds record.Bounds
	Mean   float64
	StdDev float64
}

// Suggestion holds suggested bounds for every channel.
type Suggestion struct {
	Channels [record.NumChannels]Channel
	Samples  int
}

// Suggest derives bounds from the raw values of frames. The operator is
// expected to have pressed every pedal through its full travel while the
// frames were captured.
func Suggest(frames []telemetry.Frame, opts Options) (Suggestion, error) {
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultOptions().MinSamples
	}
	if !(0 <= opts.LowQuantile && opts.LowQuantile < opts.HighQuantile && opts.HighQuantile <= 1) {
		return Suggestion{}, fmt.Errorf("invalid quantiles %v..%v", opts.LowQuantile, opts.HighQuantile)
	}
	if len(frames) < opts.MinSamples {
		return Suggestion{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughSamples, len(frames), opts.MinSamples)
	}

	s := Suggestion{Samples: len(frames)}
	values := make([]float64, len(frames))
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		for i, f := range frames {
			values[i] = float64(f.Raw[ch])
		}
		slices.Sort(values)

		lo := stat.Quantile(opts.LowQuantile, stat.Empirical, values, nil)
		hi := stat.Quantile(opts.HighQuantile, stat.Empirical, values, nil)
		inset := (hi - lo) * opts.Margin
		b := record.Bounds{
			Min: clampBound(ch, math.Ceil(lo+inset)),
			Max: clampBound(ch, math.Floor(hi-inset)),
		}
		if b.Min >= b.Max {
			return Suggestion{}, fmt.Errorf("%w: %s spans %v..%v", ErrCollapsedRange, ch, lo, hi)
		}

		mean, std := stat.MeanStdDev(values, nil)
		s.Channels[ch] = Channel{
			Bounds: b,
			Mean:   mean,
			StdDev: std,
		}
	}
	return s, nil
}

// clampBound keeps a bound inside the range the record can store.
func clampBound(ch record.Channel, v float64) int32 {
	lo, hi := float64(math.MinInt32), float64(math.MaxInt32)
	if ch != record.Brake {
		lo, hi = math.MinInt16, math.MaxInt16
	}
	return int32(max(lo, min(hi, v)))
}

// Apply returns current with the suggested bounds.
func (s Suggestion) Apply(current record.Record) record.Record {
	for ch := range s.Channels {
		current.Bounds[ch] = s.Channels[ch].Bounds
	}
	return current
}

// Commands returns the SET lines that move current to the suggested
// bounds. Per channel, the order is chosen so every intermediate record
// still has min below max.
func (s Suggestion) Commands(current record.Record) []string {
	cmds := make([]string, 0, 2*record.NumChannels)
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		b := s.Channels[ch].Bounds
		setMin := fmt.Sprintf("SET %sMin %d", ch, b.Min)
		setMax := fmt.Sprintf("SET %sMax %d", ch, b.Max)
		if b.Min < current.Bounds[ch].Max {
			cmds = append(cmds, setMin, setMax)
		} else {
			cmds = append(cmds, setMax, setMin)
		}
	}
	return cmds
}
