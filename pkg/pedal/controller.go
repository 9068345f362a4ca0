// Package pedal runs the pedal conditioning cycle: it dispatches tuning
// commands, samples the sensors, conditions each channel and forwards the
// results to the output transport and the telemetry stream.
package pedal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/itohio/gopedal/pkg/command"
	"github.com/itohio/gopedal/pkg/condition"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

const (
	// LoadCellInterval is the minimum number of ticks between load-cell reads.
	LoadCellInterval = 20
	// TelemetryInterval is the minimum number of ticks between telemetry lines.
	TelemetryInterval = 20
)

// Analog samples a potentiometer input.
type Analog interface {
	ReadAnalog(pin uint8) int32
}

// LoadCell is the brake load-cell driver.
type LoadCell interface {
	IsReady() bool
	Read() int32
	Init(dataPin, clockPin uint8)
}

// Output is the axis transport, typically a HID joystick.
type Output interface {
	SetClutch(v int)
	SetThrottle(v int)
	SetBrake(v int)
}

// LineSource yields complete command lines without blocking.
type LineSource interface {
	ReadLine() (string, bool)
}

// Hardware groups the controller's sensor and output collaborators.
type Hardware struct {
	Analog   Analog
	LoadCell LoadCell
	Output   Output
}

// Controller owns the live configuration and the filter state.
type Controller struct {
	cfg     *record.Record
	store   *record.Store
	hw      Hardware
	input   LineSource
	out     io.Writer
	handler *command.Handler

	smoother   condition.Smoother
	cellGate   Interval
	reportGate Interval
	brakeRaw   int32
}

// New creates a controller for cfg. Protocol output (replies, status lines,
// telemetry) is written to out. input may be nil when no command channel
// is attached.
func New(cfg *record.Record, store *record.Store, hw Hardware, input LineSource, out io.Writer) *Controller {
	if out == nil {
		out = io.Discard
	}
	return &Controller{
		cfg:        cfg,
		store:      store,
		hw:         hw,
		input:      input,
		out:        out,
		handler:    command.New(cfg, store, hw.LoadCell, out),
		cellGate:   Interval{Period: LoadCellInterval, Immediate: true},
		reportGate: Interval{Period: TelemetryInterval},
	}
}

// Init loads the persisted configuration into the live record and
// initializes the load cell with its pins.
func (c *Controller) Init() error {
	r, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	*c.cfg = r
	c.hw.LoadCell.Init(r.Pins.LoadCellData, r.Pins.LoadCellClock)
	return nil
}

// Handle dispatches one command line immediately.
func (c *Controller) Handle(line string) error {
	return c.handler.Handle(line)
}

// Cycle runs one iteration at tick now. At most one pending command line is
// handled before the sensors are sampled. The returned frame holds this
// cycle's raw and conditioned values; reported is true when it was also
// written to the telemetry stream.
func (c *Controller) Cycle(now uint32) (frame telemetry.Frame, reported bool) {
	if c.input != nil {
		if line, ok := c.input.ReadLine(); ok {
			// rejected lines are answered on the protocol stream
			_ = c.handler.Handle(line)
		}
	}

	cfg := c.cfg
	frame.Raw[record.Clutch] = c.hw.Analog.ReadAnalog(cfg.Pins.Clutch)
	frame.Raw[record.Throttle] = c.hw.Analog.ReadAnalog(cfg.Pins.Throttle)
	if c.hw.LoadCell.IsReady() && c.cellGate.Due(now) {
		c.brakeRaw = c.hw.LoadCell.Read()
		c.cellGate.Mark(now)
	}
	frame.Raw[record.Brake] = c.brakeRaw

	var mapped, smoothed [record.NumChannels]int
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		mapped[ch] = condition.MapBounds(frame.Raw[ch], cfg.Bounds[ch])
		smoothed[ch] = c.smoother.Update(ch, mapped[ch], cfg.Smoothing[ch])
		frame.Out[ch] = condition.ApplyDeadzone(smoothed[ch], 0, int(cfg.Deadzone))
	}

	c.hw.Output.SetClutch(frame.Out[record.Clutch])
	c.hw.Output.SetThrottle(frame.Out[record.Throttle])
	c.hw.Output.SetBrake(frame.Out[record.Brake])

	if !c.reportGate.Due(now) {
		return frame, false
	}
	c.reportGate.Mark(now)

	fmt.Fprintln(c.out, telemetry.Format(frame))
	if cfg.Debug {
		fmt.Fprintf(c.out, "DBG,%d,%d,%d,%d,%d,%d\n",
			mapped[record.Clutch], mapped[record.Throttle], mapped[record.Brake],
			smoothed[record.Clutch], smoothed[record.Throttle], smoothed[record.Brake])
	}
	return frame, true
}

// Run calls Cycle every period until ctx is done, using milliseconds since
// the start as ticks. Reported frames are passed to emit, which may be nil.
func (c *Controller) Run(ctx context.Context, period time.Duration, emit func(telemetry.Frame)) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			frame, reported := c.Cycle(uint32(now.Sub(start).Milliseconds()))
			if reported && emit != nil {
				frame.Time = now
				emit(frame)
			}
		}
	}
}
