package main

import (
	"sync"

	"github.com/itohio/gopedal/pkg/telemetry"
)

// fanOut copies every frame from in to n branches. A slow branch applies
// backpressure to all of them. Branches close once in closes.
func fanOut(in <-chan telemetry.Frame, n int, bufSize int) []<-chan telemetry.Frame {
	outs := make([]chan telemetry.Frame, n)
	result := make([]<-chan telemetry.Frame, n)
	for i := range outs {
		outs[i] = make(chan telemetry.Frame, bufSize)
		result[i] = outs[i]
	}

	go func() {
		defer func() {
			for _, out := range outs {
				close(out)
			}
		}()
		for f := range in {
			for _, out := range outs {
				out <- f
			}
		}
	}()

	return result
}

// replyLogSize is the number of device replies kept for display.
const replyLogSize = 200

// replyLog keeps the most recent device replies.
type replyLog struct {
	mu    sync.Mutex
	size  int
	lines []string
}

func newReplyLog(size int) *replyLog {
	return &replyLog{
		size:  size,
		lines: make([]string, 0, size),
	}
}

// Add appends a line, dropping the oldest when full.
func (l *replyLog) Add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == l.size {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:l.size-1]
	}
	l.lines = append(l.lines, line)
}

// Lines returns a copy of the log, oldest first.
func (l *replyLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.lines))
	copy(result, l.lines)
	return result
}
