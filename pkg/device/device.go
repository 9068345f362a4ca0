// Package device connects the host tools to a pedal controller, either over
// a serial port or through an in-process simulation.
package device

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/itohio/gopedal/pkg/telemetry"
)

const (
	// DefaultBaudRate is the controller's serial baud rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the frame and reply channels.
	DefaultBufferSize = 100
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// Device is a pedal controller link (real or mocked).
type Device interface {
	Connect() error
	Close() error
	// Frames carries parsed telemetry lines.
	Frames() <-chan telemetry.Frame
	// Replies carries every other non-empty line: acknowledgements,
	// errors, warnings, CFG and DBG lines.
	Replies() <-chan string
	// Send writes one command line.
	Send(cmd string) error
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, p := range ports {
		desc := p.Name
		if p.IsUSB {
			desc = fmt.Sprintf("%s (%s:%s %s)", p.Name, p.VID, p.PID, p.Product)
		}
		result = append(result, Port{
			Name:        p.Name,
			Description: strings.TrimSpace(desc),
		})
	}
	return result, nil
}

// router splits controller output into telemetry frames and replies.
type router struct {
	frames  chan telemetry.Frame
	replies chan string
}

func newRouter(bufSize int) router {
	return router{
		frames:  make(chan telemetry.Frame, bufSize),
		replies: make(chan string, bufSize),
	}
}

// route never blocks; lines that do not fit are dropped.
func (r router) route(line string, now time.Time) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if frame, err := telemetry.Parse(line); err == nil {
		frame.Time = now
		select {
		case r.frames <- frame:
		default:
			log.Printf("frames channel full, dropping frame")
		}
		return
	}

	select {
	case r.replies <- line:
	default:
		log.Printf("replies channel full, dropping %q", line)
	}
}

func (r router) close() {
	close(r.frames)
	close(r.replies)
}
