package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/history"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

// channelColors are the trace colors for clutch, throttle and brake.
var channelColors = [record.NumChannels]color.RGBA{
	{R: 100, G: 200, B: 255, A: 255}, // Light blue
	{R: 80, G: 220, B: 100, A: 255},  // Green
	{R: 255, G: 90, B: 70, A: 255},   // Red
}

// ScopeWidget plots the conditioned pedal outputs over time.
type ScopeWidget struct {
	widget.BaseWidget

	window    time.Duration
	maxPoints int

	// Data (protected by mu)
	mu      sync.RWMutex
	display []telemetry.Frame // downsampled, reused between updates
	latest  telemetry.Frame
	xMin    time.Time
	xMax    time.Time
}

// New creates a new ScopeWidget instance.
func New(cfg *config.HistoryConfig) *ScopeWidget {
	s := &ScopeWidget{
		window:    time.Duration(cfg.WindowSeconds * float64(time.Second)),
		maxPoints: cfg.MaxPoints,
		display:   make([]telemetry.Frame, 0, cfg.MaxPoints),
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the plotted frames. It should be called on the UI
// goroutine, e.g. through fyne.Do.
func (s *ScopeWidget) UpdateData(frames []telemetry.Frame) {
	s.mu.Lock()
	s.display = history.Downsample(s.display, frames, s.maxPoints)
	if len(frames) > 0 {
		s.latest = frames[len(frames)-1]
	}
	s.xMin, s.xMax = timeRange(s.display, s.window)
	s.mu.Unlock()

	s.Refresh()
}

// timeRange returns the x-axis span: the first frame to the last, at least
// window wide.
func timeRange(frames []telemetry.Frame, window time.Duration) (time.Time, time.Time) {
	if len(frames) == 0 {
		now := time.Now()
		return now, now.Add(window)
	}
	xMin := frames[0].Time
	xMax := frames[len(frames)-1].Time
	if xMax.Sub(xMin) < window {
		xMax = xMin.Add(window)
	}
	return xMin, xMax
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
