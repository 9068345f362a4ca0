package condition

import (
	"github.com/chewxy/math32"

	"github.com/itohio/gopedal/pkg/record"
)

// Smoother is a per-channel exponential moving average.
//
// Each channel is seeded with its first sample. Seeding is tracked with an
// explicit flag, so a channel whose filtered value settles at 0 keeps
// filtering instead of being re-seeded by the next sample.
type Smoother struct {
	value  [record.NumChannels]float32
	seeded [record.NumChannels]bool
}

// Update blends sample into the channel state:
//
//	filtered = alpha*sample + (1-alpha)*filtered
//
// and returns the filtered value rounded to the nearest integer.
func (s *Smoother) Update(ch record.Channel, sample int, alpha float32) int {
	x := float32(sample)
	if !s.seeded[ch] {
		s.value[ch] = x
		s.seeded[ch] = true
		return sample
	}
	s.value[ch] = alpha*x + (1-alpha)*s.value[ch]
	return int(math32.Round(s.value[ch]))
}

// Value returns the current filtered value of a channel and whether it has
// been seeded.
func (s *Smoother) Value(ch record.Channel) (int, bool) {
	return int(math32.Round(s.value[ch])), s.seeded[ch]
}

// Reset clears all channels; the next sample of each channel seeds it again.
func (s *Smoother) Reset() {
	*s = Smoother{}
}
