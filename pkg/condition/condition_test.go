package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/gopedal/pkg/record"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name   string
		raw    int32
		lo, hi int32
		want   int
	}{
		{"at min", 579, 579, 693, 0},
		{"at max", 693, 579, 693, 1023},
		{"below min clamps", 12, 579, 693, 0},
		{"above max clamps", 1000, 579, 693, 1023},
		{"midpoint", 636, 579, 693, 511},
		{"negative bounds", -50, -100, 100, 255},
		{"load cell range", 200000, 0, 400000, 511},
		{"full int32 range", 0, -2147483648, 2147483647, 511},
		{"degenerate bounds", 10, 5, 5, 0},
		{"inverted bounds", 10, 20, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(tt.raw, tt.lo, tt.hi))
		})
	}
}

func TestMap_RangeAndMonotonic(t *testing.T) {
	bounds := []record.Bounds{
		{Min: 579, Max: 693},
		{Min: 619, Max: 804},
		{Min: -3, Max: 2},
		{Min: 0, Max: 400000},
		{Min: -70000, Max: 12},
	}

	for _, b := range bounds {
		assert.Equal(t, 0, MapBounds(b.Min, b))
		assert.Equal(t, OutputMax, MapBounds(b.Max, b))

		step := (b.Max - b.Min) / 500
		if step == 0 {
			step = 1
		}
		prev := -1
		for raw := b.Min - 10*step; raw <= b.Max+10*step; raw += step {
			got := MapBounds(raw, b)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, OutputMax)
			assert.GreaterOrEqual(t, got, prev, "not monotonic at raw=%d bounds=%v", raw, b)
			prev = got
		}
	}
}

func TestApplyDeadzone(t *testing.T) {
	tests := []struct {
		name                 string
		value, center, width int
		want                 int
	}{
		{"inside snaps to center", 19, 0, 20, 0},
		{"edge is outside", 20, 0, 20, 20},
		{"far outside unchanged", 1023, 0, 20, 1023},
		{"negative side", -5, 0, 20, 0},
		{"non-zero center", 505, 512, 10, 512},
		{"zero width is a no-op", 0, 0, 0, 0},
		{"zero width keeps value", 3, 0, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyDeadzone(tt.value, tt.center, tt.width))
		})
	}
}

func TestApplyDeadzone_Idempotent(t *testing.T) {
	for _, width := range []int{0, 1, 20, 50, 1023} {
		for _, center := range []int{0, 100, 512} {
			for value := -50; value <= 1100; value += 7 {
				once := ApplyDeadzone(value, center, width)
				assert.Equal(t, once, ApplyDeadzone(once, center, width))
			}
		}
	}
}

func TestSmoother_FirstSampleSeeds(t *testing.T) {
	var s Smoother

	_, seeded := s.Value(record.Throttle)
	assert.False(t, seeded)

	assert.Equal(t, 800, s.Update(record.Throttle, 800, 0.1))
	v, seeded := s.Value(record.Throttle)
	assert.True(t, seeded)
	assert.Equal(t, 800, v)

	// other channels are independent
	_, seeded = s.Value(record.Brake)
	assert.False(t, seeded)
}

func TestSmoother_Blend(t *testing.T) {
	var s Smoother

	s.Update(record.Clutch, 0, 0.5)
	assert.Equal(t, 500, s.Update(record.Clutch, 1000, 0.5))
	assert.Equal(t, 750, s.Update(record.Clutch, 1000, 0.5))
	assert.Equal(t, 750, s.Update(record.Clutch, 750, 0.5))
}

func TestSmoother_AlphaLimits(t *testing.T) {
	var s Smoother

	s.Update(record.Brake, 100, 1)
	assert.Equal(t, 900, s.Update(record.Brake, 900, 1), "alpha 1 tracks input")

	s.Update(record.Clutch, 100, 0)
	assert.Equal(t, 100, s.Update(record.Clutch, 900, 0), "alpha 0 holds the seed")
}

func TestSmoother_Converges(t *testing.T) {
	tests := []struct {
		name  string
		alpha float32
	}{
		{"fast", 0.9},
		{"half", 0.5},
		{"slow", 0.1},
		{"very slow", 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Smoother
			s.Update(record.Throttle, 0, tt.alpha)

			const target = 1023
			limit := int(20 / tt.alpha)
			n := 0
			for ; n < limit; n++ {
				if s.Update(record.Throttle, target, tt.alpha) == target {
					break
				}
			}
			assert.Less(t, n, limit, "did not converge within %d iterations", limit)
		})
	}
}

func TestSmoother_SettlingAtZeroIsNotReseeded(t *testing.T) {
	var s Smoother

	s.Update(record.Clutch, 0, 0.25)
	for range 10 {
		s.Update(record.Clutch, 0, 0.25)
	}
	v, _ := s.Value(record.Clutch)
	assert.Equal(t, 0, v)

	// A re-seeding filter would jump straight to 1000.
	assert.Equal(t, 250, s.Update(record.Clutch, 1000, 0.25))
}

func TestSmoother_Reset(t *testing.T) {
	var s Smoother
	s.Update(record.Clutch, 300, 0.5)
	s.Reset()

	_, seeded := s.Value(record.Clutch)
	assert.False(t, seeded)
	assert.Equal(t, 700, s.Update(record.Clutch, 700, 0.5))
}
