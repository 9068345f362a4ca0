package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopedal/pkg/config"
	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantFrame bool
		wantReply string
	}{
		{"telemetry", "579,804,152000,0,1023,389", true, ""},
		{"telemetry with cr", "579,804,152000,0,1023,389\r", true, ""},
		{"ack", "OK SAVE", false, "OK SAVE"},
		{"error", "ERR unknown key steering", false, "ERR unknown key steering"},
		{"status", "CFG,579,693,619,804,0,400000,20,0,1,3,2,0.5,0.5,0.5,0", false, "CFG,579,693,619,804,0,400000,20,0,1,3,2,0.5,0.5,0.5,0"},
		{"debug", "DBG,1,2,3,4,5,6", false, "DBG,1,2,3,4,5,6"},
		{"output out of range is not telemetry", "1,2,3,4,5,2000", false, "1,2,3,4,5,2000"},
		{"blank", "   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(4)
			now := time.Unix(1700000000, 0)
			r.route(tt.line, now)

			if tt.wantFrame {
				require.Len(t, r.frames, 1)
				f := <-r.frames
				assert.Equal(t, now, f.Time)
			} else {
				assert.Empty(t, r.frames)
			}

			if tt.wantReply != "" {
				require.Len(t, r.replies, 1)
				assert.Equal(t, tt.wantReply, <-r.replies)
			} else {
				assert.Empty(t, r.replies)
			}
		})
	}
}

func TestRouter_FullChannelsDrop(t *testing.T) {
	r := newRouter(1)
	for range 3 {
		r.route("OK SAVE", time.Now())
		r.route("1,2,3,4,5,6", time.Now())
	}
	assert.Len(t, r.frames, 1)
	assert.Len(t, r.replies, 1)
}

func TestLineWriter(t *testing.T) {
	var got []string
	w := &lineWriter{emit: func(line string) { got = append(got, line) }}

	n, err := w.Write([]byte("OK SA"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, got)

	_, _ = w.Write([]byte("VE\n1,2,3,4,5,6\nCFG"))
	assert.Equal(t, []string{"OK SAVE", "1,2,3,4,5,6"}, got)

	_, _ = w.Write([]byte(",x\n"))
	assert.Equal(t, "CFG,x", got[2])
}

func TestNewSerial(t *testing.T) {
	dev := NewSerial("COM3", 57600, 10)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.Equal(t, 10, dev.bufSize)
	assert.NotNil(t, dev.Frames())
	assert.NotNil(t, dev.Replies())
	assert.False(t, dev.IsConnected())
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_NotConnected(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.ErrorIs(t, dev.Send("PRINT"), ErrNotConnected)
	assert.NoError(t, dev.Close())
}

func TestSerial_ReadLines(t *testing.T) {
	dev := NewSerial("COM3", 0, 10)
	input := strings.NewReader("INFO config loaded from storage\r\n" +
		"579,619,0,0,0,0\r\n" +
		"\r\n" +
		"OK SET deadzone 30\r\n" +
		"693,804,400000,1023,1023,1023\r\n")

	done := make(chan struct{})
	dev.readLines(context.Background(), input, dev.router, done)
	<-done

	var replies []string
	for r := range dev.Replies() {
		replies = append(replies, r)
	}
	assert.Equal(t, []string{"INFO config loaded from storage", "OK SET deadzone 30"}, replies)

	var frames []telemetry.Frame
	for f := range dev.Frames() {
		frames = append(frames, f)
	}
	require.Len(t, frames, 2)
	assert.Equal(t, [3]int{1023, 1023, 1023}, frames[1].Out)
	assert.Equal(t, int32(400000), frames[1].Raw[record.Brake])
}

func TestSerial_ReadLinesCancelled(t *testing.T) {
	dev := NewSerial("COM3", 0, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	dev.readLines(ctx, bytes.NewBufferString("OK LOAD\nOK SAVE\n"), dev.router, done)

	assert.Empty(t, dev.router.replies)
}

func TestSerial_ReaderExitDisconnects(t *testing.T) {
	tests := []struct {
		name  string
		input io.Reader
	}{
		{"end of stream", strings.NewReader("OK LOAD\n")},
		{"read error", iotest.ErrReader(errors.New("device unplugged"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewSerial("COM3", 0, 10)
			done := make(chan struct{})
			dev.done = done
			dev.connected = true

			dev.readLines(context.Background(), tt.input, dev.router, done)
			<-done

			assert.False(t, dev.IsConnected())
			assert.ErrorIs(t, dev.Send("PRINT"), ErrNotConnected)
			assert.NoError(t, dev.Close())
		})
	}
}

func TestSerial_ReaderExitAfterCloseKeepsState(t *testing.T) {
	dev := NewSerial("COM3", 0, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	dev.done = done
	dev.connected = true
	dev.readLines(ctx, strings.NewReader(""), dev.router, done)

	assert.True(t, dev.IsConnected(), "Close owns the state once cancelled")
}

func TestSerial_StaleReaderIgnored(t *testing.T) {
	dev := NewSerial("COM3", 0, 10)
	dev.done = make(chan struct{})
	dev.connected = true

	stale := make(chan struct{})
	dev.readLines(context.Background(), strings.NewReader(""), newRouter(10), stale)

	assert.True(t, dev.IsConnected())
}

func testMockConfig(storage string) *config.MockConfig {
	return &config.MockConfig{
		SampleRate:  time.Millisecond,
		PressPeriod: 200 * time.Millisecond,
		NoiseLevel:  1,
		StoragePath: storage,
	}
}

// waitReply returns the first reply satisfying match.
func waitReply(t *testing.T, dev Device, match func(string) bool) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-dev.Replies():
			require.True(t, ok, "replies closed")
			if match(r) {
				return r
			}
		case <-timeout:
			t.Fatal("timed out waiting for reply")
			return ""
		}
	}
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	assert.NotNil(t, dev.cfg)
	assert.Equal(t, config.Default().Mock, *dev.cfg)
	assert.False(t, dev.IsConnected())
	assert.ErrorIs(t, dev.Send("PRINT"), ErrNotConnected)
}

func TestMock_Telemetry(t *testing.T) {
	dev := NewMock(testMockConfig(""))
	require.NoError(t, dev.Connect())
	defer dev.Close()

	assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected)

	boot := waitReply(t, dev, record.IsStatus)
	assert.Equal(t, record.Default().String(), boot)

	frames := dev.Frames()
	for range 5 {
		select {
		case f := <-frames:
			assert.False(t, f.Time.IsZero())
			for _, v := range f.Out {
				assert.GreaterOrEqual(t, v, 0)
				assert.LessOrEqual(t, v, record.OutputMax)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no telemetry")
		}
	}
}

func TestMock_Commands(t *testing.T) {
	dev := NewMock(testMockConfig(""))
	require.NoError(t, dev.Connect())
	defer dev.Close()

	require.NoError(t, dev.Send("SET deadzone 44"))
	assert.Equal(t, "OK SET deadzone 44", waitReply(t, dev, func(s string) bool { return strings.HasPrefix(s, "OK SET") }))

	require.NoError(t, dev.Send("PRINT"))
	line := waitReply(t, dev, record.IsStatus)
	r, err := record.ParseStatus(line)
	require.NoError(t, err)
	if r.Deadzone != 44 {
		// the boot dump may still be queued
		r, err = record.ParseStatus(waitReply(t, dev, record.IsStatus))
		require.NoError(t, err)
	}
	assert.Equal(t, int16(44), r.Deadzone)

	require.NoError(t, dev.Send("SET steering 1"))
	assert.Equal(t, "ERR unknown key steering", waitReply(t, dev, func(s string) bool { return strings.HasPrefix(s, "ERR") }))
}

func TestMock_PersistsAcrossReconnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	dev := NewMock(testMockConfig(path))
	require.NoError(t, dev.Connect())
	waitReply(t, dev, func(s string) bool { return strings.HasPrefix(s, "WARN config storage uninitialized") })

	require.NoError(t, dev.Send("SET throttleMax 777"))
	require.NoError(t, dev.Send("SAVE"))
	waitReply(t, dev, func(s string) bool { return s == "OK SAVE" })
	require.NoError(t, dev.Close())

	dev = NewMock(testMockConfig(path))
	require.NoError(t, dev.Connect())
	defer dev.Close()

	waitReply(t, dev, func(s string) bool { return s == "INFO config loaded from storage" })
	r, err := record.ParseStatus(waitReply(t, dev, record.IsStatus))
	require.NoError(t, err)
	assert.Equal(t, int32(777), r.Bounds[record.Throttle].Max)
}

func TestMock_GracefulShutdown(t *testing.T) {
	dev := NewMock(testMockConfig(""))
	require.NoError(t, dev.Connect())

	frames := dev.Frames()
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range frames {
			received++
			if received == 3 {
				go dev.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("frames channel did not close within timeout")
	}
	assert.GreaterOrEqual(t, received, 3)

	// a second connection gets fresh channels
	require.Eventually(t, func() bool { return !dev.IsConnected() }, time.Second, time.Millisecond)
	require.NoError(t, dev.Connect())
	defer dev.Close()
	select {
	case _, ok := <-dev.Frames():
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no telemetry after reconnect")
	}
}
