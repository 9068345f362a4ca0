// Package history keeps a sliding time window of telemetry frames for
// display.
package history

import (
	"sync"
	"time"

	"github.com/itohio/gopedal/pkg/telemetry"
)

// History is a FIFO of frames ordered oldest first. Frames older than the
// window relative to the newest frame are dropped.
type History struct {
	window time.Duration

	mu       sync.RWMutex
	frames   []telemetry.Frame
	shutdown bool

	cbMu      sync.RWMutex
	callbacks []func(frames []telemetry.Frame)
}

// New creates a history covering window.
func New(window time.Duration) *History {
	return &History{
		window: window,
	}
}

// Process adds frames from input until it is closed. Callbacks are not
// invoked after the input closes.
func (h *History) Process(input <-chan telemetry.Frame) {
	for f := range input {
		h.Add(f)
	}
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
}

// Add appends a frame, trims the window and notifies callbacks.
func (h *History) Add(f telemetry.Frame) {
	h.mu.Lock()
	h.frames = append(h.frames, f)

	cutoff := f.Time.Add(-h.window)
	i := 0
	for i < len(h.frames) && !h.frames[i].Time.After(cutoff) {
		i++
	}
	if i > 0 {
		h.frames = append(h.frames[:0], h.frames[i:]...)
	}

	notify := !h.shutdown
	h.mu.Unlock()

	if notify {
		h.notifyCallbacks()
	}
}

// Frames returns a copy of the buffered frames.
func (h *History) Frames() []telemetry.Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]telemetry.Frame, len(h.frames))
	copy(result, h.frames)
	return result
}

// Reset drops all frames and re-enables callbacks.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = h.frames[:0]
	h.shutdown = false
}

// OnUpdate registers a callback invoked with a copy of the frames after each
// Add. The callback should return quickly.
func (h *History) OnUpdate(callback func(frames []telemetry.Frame)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

func (h *History) notifyCallbacks() {
	h.cbMu.RLock()
	callbacks := make([]func([]telemetry.Frame), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.cbMu.RUnlock()

	if len(callbacks) == 0 {
		return
	}

	frames := h.Frames()
	for _, cb := range callbacks {
		if cb != nil {
			cb(frames)
		}
	}
}

// Downsample decimates frames to at most maxPoints, keeping the first frame.
// dst is reused when it has enough capacity.
func Downsample(dst []telemetry.Frame, frames []telemetry.Frame, maxPoints int) []telemetry.Frame {
	n := len(frames)
	if maxPoints <= 0 || n <= maxPoints {
		if cap(dst) < n {
			dst = make([]telemetry.Frame, n)
		}
		dst = dst[:n]
		copy(dst, frames)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]telemetry.Frame, 0, maxPoints)
	}

	step := float64(n) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, frames[int(float64(i)*step)])
	}
	return dst
}
