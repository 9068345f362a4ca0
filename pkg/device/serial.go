package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/gopedal/pkg/telemetry"
)

// Serial represents a connection to the pedal controller's USB serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	router    router
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewSerial creates a new serial device with the specified port, baud rate,
// and buffer size.
func NewSerial(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		router:   newRouter(bufSize),
	}
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	if d.done != nil {
		// channels of the previous connection are closed
		d.router = newRouter(d.bufSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = port
	d.cancel = cancel
	d.done = make(chan struct{})
	d.connected = true

	go d.readLines(ctx, port, d.router, d.done)

	return nil
}

// Close closes the port. The frame and reply channels are closed once the
// reader has stopped.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Printf("error closing serial port: %v", err)
	}
	d.conn = nil
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

// Frames returns the channel for reading telemetry frames.
func (d *Serial) Frames() <-chan telemetry.Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.router.frames
}

// Replies returns the channel for reading protocol replies.
func (d *Serial) Replies() <-chan string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.router.replies
}

// Send writes a command line to the controller.
func (d *Serial) Send(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := io.WriteString(d.conn, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readerStopped marks the device disconnected when the reader of the current
// connection ends without Close, e.g. when the port is unplugged.
func (d *Serial) readerStopped(ctx context.Context, done chan<- struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Err() != nil || !d.connected || d.done != done {
		return
	}
	log.Printf("serial port %s closed by device", d.port)
	if d.cancel != nil {
		d.cancel()
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
}

// readLines routes lines from r until it fails or ctx is cancelled, then
// closes the output channels.
func (d *Serial) readLines(ctx context.Context, r io.Reader, out router, done chan<- struct{}) {
	defer close(done)
	defer out.close()
	defer d.readerStopped(ctx, done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		out.route(scanner.Text(), time.Now())
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("error reading from serial port: %v", err)
	}
}
