package device

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/pedal"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

// mockMediumSize is the size of the in-memory EEPROM stand-in.
const mockMediumSize = 256

// Mock runs a pedal controller in-process against simulated sensors.
type Mock struct {
	cfg *config.MockConfig

	router    router
	input     *pedal.LineQueue
	file      *record.FileMedium
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}

	return &Mock{
		cfg:    cfg,
		router: newRouter(DefaultBufferSize),
	}
}

// Connect loads the stored configuration and starts the control loop.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	var medium record.Medium = record.NewMemMedium(mockMediumSize)
	if m.cfg.StoragePath != "" {
		f, err := record.OpenFile(m.cfg.StoragePath)
		if err != nil {
			return fmt.Errorf("failed to open mock storage: %w", err)
		}
		m.file = f
		medium = f
	}

	if m.done != nil {
		m.router = newRouter(DefaultBufferSize)
	}
	out := m.router
	w := &lineWriter{emit: func(line string) { out.route(line, time.Now()) }}

	sim := newSimulator(m.cfg, time.Now())
	var live record.Record
	m.input = &pedal.LineQueue{}
	ctrl := pedal.New(&live, record.NewStore(medium, 0, w), pedal.Hardware{
		Analog:   sim,
		LoadCell: sim,
		Output:   sim,
	}, m.input, w)
	if err := ctrl.Init(); err != nil {
		closeStorage(m.file)
		m.file = nil
		return err
	}

	period := m.cfg.SampleRate
	if period <= 0 {
		period = time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true

	go func(done chan<- struct{}) {
		defer close(done)
		defer out.close()
		if err := ctrl.Run(ctx, period, nil); err != nil && ctx.Err() == nil {
			log.Printf("mock controller stopped: %v", err)
		}
	}(m.done)

	return nil
}

// Close stops the control loop and closes the output channels.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}

	m.cancel()
	m.connected = false
	done, file := m.done, m.file
	m.file = nil
	m.mu.Unlock()

	<-done
	closeStorage(file)
	return nil
}

func closeStorage(f *record.FileMedium) {
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		log.Printf("error closing mock storage: %v", err)
	}
}

// Frames returns the channel for reading telemetry frames.
func (m *Mock) Frames() <-chan telemetry.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.router.frames
}

// Replies returns the channel for reading protocol replies.
func (m *Mock) Replies() <-chan string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.router.replies
}

// Send queues a command line for the controller's next cycle.
func (m *Mock) Send(cmd string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.input.Push(cmd)
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// lineWriter buffers writes and emits complete lines.
type lineWriter struct {
	buf  []byte
	emit func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Wiring of the simulated rig. Inputs on other pins float near zero.
var simAnalogPins = map[uint8]record.Channel{
	0: record.Clutch,
	1: record.Throttle,
}

const (
	simLoadCellData  uint8 = 3
	simLoadCellClock uint8 = 2
)

// simRange is the raw travel of each simulated pedal, slightly wider than
// the default calibration so clamping is exercised.
var simRange = [record.NumChannels]record.Bounds{
	record.Clutch:   {Min: 565, Max: 705},
	record.Throttle: {Min: 605, Max: 820},
	record.Brake:    {Min: -3000, Max: 410000},
}

// simulator drives all three pedals through repeated press/release cycles.
// It is used from the controller goroutine only.
type simulator struct {
	cfg   *config.MockConfig
	start time.Time

	dataPin  uint8
	clockPin uint8
	axes     [record.NumChannels]int
}

func newSimulator(cfg *config.MockConfig, start time.Time) *simulator {
	return &simulator{
		cfg:   cfg,
		start: start,
	}
}

// position returns the pedal travel in [0,1] at elapsed. Channels are
// phase-shifted so they do not move in lockstep.
func (s *simulator) position(ch record.Channel, elapsed time.Duration) float64 {
	if s.cfg.PressPeriod <= 0 {
		return 0
	}
	phase := elapsed.Seconds()/s.cfg.PressPeriod.Seconds() + float64(ch)/float64(record.NumChannels)
	return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
}

func (s *simulator) noise(elapsed time.Duration, ch record.Channel) float64 {
	n := float64(elapsed.Nanoseconds()) * 1e-6
	return (math.Sin(n*1.7+float64(ch)) + math.Cos(n*2.3)) * s.cfg.NoiseLevel * 0.5
}

func (s *simulator) sample(ch record.Channel, now time.Time) int32 {
	elapsed := now.Sub(s.start)
	b := simRange[ch]
	v := float64(b.Min) + s.position(ch, elapsed)*float64(b.Max-b.Min)
	if ch == record.Brake {
		v += s.noise(elapsed, ch) * 100
	} else {
		v += s.noise(elapsed, ch)
	}
	return int32(math.Round(v))
}

func (s *simulator) ReadAnalog(pin uint8) int32 {
	ch, ok := simAnalogPins[pin]
	if !ok {
		return int32(math.Abs(math.Round(s.noise(time.Since(s.start), 0))))
	}
	return s.sample(ch, time.Now())
}

func (s *simulator) IsReady() bool {
	return s.dataPin == simLoadCellData && s.clockPin == simLoadCellClock
}

func (s *simulator) Read() int32 {
	return s.sample(record.Brake, time.Now())
}

func (s *simulator) Init(dataPin, clockPin uint8) {
	s.dataPin = dataPin
	s.clockPin = clockPin
}

func (s *simulator) SetClutch(v int)   { s.axes[record.Clutch] = v }
func (s *simulator) SetThrottle(v int) { s.axes[record.Throttle] = v }
func (s *simulator) SetBrake(v int)    { s.axes[record.Brake] = v }
