package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/gopedal/pkg/record"
)

func TestSimulator_Position(t *testing.T) {
	s := newSimulator(testMockConfig(""), time.Unix(0, 0))

	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		for ms := 0; ms < 400; ms += 7 {
			p := s.position(ch, time.Duration(ms)*time.Millisecond)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}

	assert.InDelta(t, 0.0, s.position(record.Clutch, 0), 1e-9, "clutch starts released")
	assert.InDelta(t, 1.0, s.position(record.Clutch, 100*time.Millisecond), 1e-9, "fully pressed at half period")
}

func TestSimulator_ZeroPeriod(t *testing.T) {
	cfg := testMockConfig("")
	cfg.PressPeriod = 0
	s := newSimulator(cfg, time.Now())
	assert.Equal(t, 0.0, s.position(record.Throttle, time.Second))
}

func TestSimulator_SampleWithinTravel(t *testing.T) {
	start := time.Unix(0, 0)
	s := newSimulator(testMockConfig(""), start)

	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		b := simRange[ch]
		slack := int32(2)
		if ch == record.Brake {
			slack = 200
		}
		for ms := 0; ms < 400; ms += 3 {
			v := s.sample(ch, start.Add(time.Duration(ms)*time.Millisecond))
			assert.GreaterOrEqual(t, v, b.Min-slack)
			assert.LessOrEqual(t, v, b.Max+slack)
		}
	}
}

func TestSimulator_LoadCellWiring(t *testing.T) {
	s := newSimulator(testMockConfig(""), time.Now())
	assert.False(t, s.IsReady(), "not initialized")

	s.Init(simLoadCellData, simLoadCellClock)
	assert.True(t, s.IsReady())

	s.Init(7, simLoadCellClock)
	assert.False(t, s.IsReady(), "wrong data pin")
}

func TestSimulator_UnwiredAnalogPin(t *testing.T) {
	s := newSimulator(testMockConfig(""), time.Now())
	v := s.ReadAnalog(9)
	assert.GreaterOrEqual(t, v, int32(0))
	assert.LessOrEqual(t, v, int32(2))
}

func TestSimulator_Output(t *testing.T) {
	s := newSimulator(testMockConfig(""), time.Now())
	s.SetClutch(1)
	s.SetThrottle(2)
	s.SetBrake(3)
	assert.Equal(t, [record.NumChannels]int{1, 2, 3}, s.axes)
}
