package pedal

import "sync"

// DefaultMaxLine is the longest command line LineBuffer accepts.
const DefaultMaxLine = 64

// LineBuffer assembles bytes into lines terminated by '\n' or '\r'. Empty
// lines are skipped and lines longer than the limit are dropped whole.
type LineBuffer struct {
	buf      []byte
	max      int
	overflow bool
}

// NewLineBuffer creates a buffer for lines of at most limit bytes.
func NewLineBuffer(limit int) *LineBuffer {
	if limit <= 0 {
		limit = DefaultMaxLine
	}
	return &LineBuffer{
		buf: make([]byte, 0, limit),
		max: limit,
	}
}

// Push appends one byte and returns the completed line, if any.
func (b *LineBuffer) Push(c byte) (string, bool) {
	switch c {
	case '\n', '\r':
		line := string(b.buf)
		dropped := b.overflow
		b.buf = b.buf[:0]
		b.overflow = false
		if dropped || line == "" {
			return "", false
		}
		return line, true
	}

	if len(b.buf) >= b.max {
		b.overflow = true
		return "", false
	}
	b.buf = append(b.buf, c)
	return "", false
}

// ByteSource is a non-blocking byte stream such as a UART.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// SerialLines is a LineSource over a ByteSource. ReadLine consumes only the
// bytes that are already buffered and never waits for more.
type SerialLines struct {
	src ByteSource
	buf *LineBuffer
}

var _ LineSource = (*SerialLines)(nil)

// NewSerialLines creates a line source reading from src.
func NewSerialLines(src ByteSource, maxLine int) *SerialLines {
	return &SerialLines{
		src: src,
		buf: NewLineBuffer(maxLine),
	}
}

func (s *SerialLines) ReadLine() (string, bool) {
	for s.src.Buffered() > 0 {
		c, err := s.src.ReadByte()
		if err != nil {
			return "", false
		}
		if line, ok := s.buf.Push(c); ok {
			return line, true
		}
	}
	return "", false
}

// LineQueue is a LineSource fed by other goroutines.
type LineQueue struct {
	mu    sync.Mutex
	lines []string
}

var _ LineSource = (*LineQueue)(nil)

// Push queues a line for the controller.
func (q *LineQueue) Push(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = append(q.lines, line)
}

func (q *LineQueue) ReadLine() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true
}

// Len returns the number of queued lines.
func (q *LineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}
