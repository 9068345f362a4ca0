package command

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopedal/pkg/record"
)

type fakeLoadCell struct {
	inits [][2]uint8
}

func (f *fakeLoadCell) Init(dataPin, clockPin uint8) {
	f.inits = append(f.inits, [2]uint8{dataPin, clockPin})
}

type fixture struct {
	cfg      *record.Record
	store    *record.Store
	medium   *record.MemMedium
	loadCell *fakeLoadCell
	out      *bytes.Buffer
	h        *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		medium:   record.NewMemMedium(64),
		loadCell: &fakeLoadCell{},
		out:      &bytes.Buffer{},
	}
	f.store = record.NewStore(f.medium, 0, f.out)
	cfg, err := f.store.Load()
	require.NoError(t, err)
	f.cfg = &cfg
	f.h = New(f.cfg, f.store, f.loadCell, f.out)
	f.out.Reset()
	return f
}

func (f *fixture) lines() []string {
	s := strings.TrimSuffix(f.out.String(), "\n")
	f.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestHandle_SetPrintLoad(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle("SET deadzone 50"))
	assert.Equal(t, []string{"OK SET deadzone 50"}, f.lines())
	assert.Equal(t, int16(50), f.cfg.Deadzone)

	require.NoError(t, f.h.Handle("PRINT"))
	assert.Equal(t, []string{"CFG,579,693,619,804,0,400000,50,0,1,3,2,0.5,0.5,0.5,0"}, f.lines())

	// SET is not persisted; LOAD reverts it.
	require.NoError(t, f.h.Handle("LOAD"))
	assert.Equal(t, []string{
		"INFO config loaded from storage",
		record.Default().String(),
		"OK LOAD",
	}, f.lines())
	assert.Equal(t, int16(20), f.cfg.Deadzone)
}

func TestHandle_SaveThenLoad(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle("SET throttleMax 900"))
	require.NoError(t, f.h.Handle("SET brakeSmoothing 0.125"))
	require.NoError(t, f.h.Handle("SAVE"))
	saved := *f.cfg

	*f.cfg = record.Default()
	require.NoError(t, f.h.Handle("LOAD"))
	if diff := cmp.Diff(saved, *f.cfg); diff != "" {
		t.Errorf("LOAD mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(900), f.cfg.Bounds[record.Throttle].Max)
}

func TestHandle_ResetConfig(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle("SET clutchMin 100"))
	require.NoError(t, f.h.Handle("SET debug 1"))
	require.NoError(t, f.h.Handle("SET loadCellDataPin 9"))
	require.NoError(t, f.h.Handle("SAVE"))
	f.loadCell.inits = nil
	f.out.Reset()

	require.NoError(t, f.h.Handle("RESETCONFIG"))
	lines := f.lines()
	require.NotEmpty(t, lines)
	assert.Equal(t, "OK RESETCONFIG", lines[len(lines)-1])

	if diff := cmp.Diff(record.Default(), *f.cfg); diff != "" {
		t.Errorf("RESETCONFIG mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, [][2]uint8{{3, 2}}, f.loadCell.inits)

	// defaults were persisted immediately
	r, err := record.NewStore(f.medium, 0, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, record.Default(), r)
}

func TestHandle_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		reply   string
	}{
		{"unknown command", "FLASH", ErrUnknownCommand, "ERR unknown command FLASH"},
		{"keywords are case sensitive", "print", ErrUnknownCommand, "ERR unknown command print"},
		{"unknown key", "SET steering 5", ErrUnknownKey, "ERR unknown key steering"},
		{"missing value", "SET deadzone", ErrSyntax, "ERR malformed command: usage SET <key> <value>"},
		{"extra argument", "SET deadzone 5 6", ErrSyntax, "ERR malformed command: usage SET <key> <value>"},
		{"argument to PRINT", "PRINT now", ErrSyntax, "ERR malformed command: usage PRINT"},
		{"non-numeric value", "SET deadzone abc", ErrInvalidValue, "ERR SET deadzone: invalid value: \"abc\" is not an integer"},
		{"decimal for integer key", "SET clutchPin 1.5", ErrInvalidValue, ""},
		{"pin out of range", "SET clutchPin 256", ErrInvalidValue, ""},
		{"non-numeric smoothing", "SET clutchSmoothing fast", ErrInvalidValue, ""},
		{"debug not a flag", "SET debug 2", ErrInvalidValue, ""},
		{"min above max", "SET clutchMin 800", record.ErrInvalidRecord, ""},
		{"max below min", "SET brakeMax -5", record.ErrInvalidRecord, ""},
		{"smoothing above one", "SET throttleSmoothing 1.5", record.ErrInvalidRecord, ""},
		{"negative deadzone", "SET deadzone -1", record.ErrInvalidRecord, ""},
		{"clutch bound exceeds 16 bits", "SET clutchMax 40000", ErrInvalidValue, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := *f.cfg

			err := f.h.Handle(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			lines := f.lines()
			require.Len(t, lines, 1)
			assert.True(t, strings.HasPrefix(lines[0], "ERR "), lines[0])
			if tt.reply != "" {
				assert.Equal(t, tt.reply, lines[0])
			}

			if diff := cmp.Diff(before, *f.cfg); diff != "" {
				t.Errorf("record changed by rejected line (-before +after):\n%s", diff)
			}
			assert.Empty(t, f.loadCell.inits)
		})
	}
}

func TestHandle_BlankAndWhitespace(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle(""))
	require.NoError(t, f.h.Handle("   \r"))
	assert.Empty(t, f.lines())

	require.NoError(t, f.h.Handle("  SET   deadzone\t42 \r"))
	assert.Equal(t, []string{"OK SET deadzone 42"}, f.lines())
}

func TestHandle_LoadCellPins(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle("SET clutchPin 4"))
	assert.Empty(t, f.loadCell.inits, "analog pin change must not touch the load cell")

	require.NoError(t, f.h.Handle("SET loadCellDataPin 7"))
	require.NoError(t, f.h.Handle("SET loadCellClockPin 8"))
	assert.Equal(t, [][2]uint8{{7, 2}, {7, 8}}, f.loadCell.inits)

	require.NoError(t, f.h.Handle("LOAD"))
	assert.Equal(t, [2]uint8{3, 2}, f.loadCell.inits[len(f.loadCell.inits)-1])
}

func TestHandle_NilLoadCell(t *testing.T) {
	store := record.NewStore(record.NewMemMedium(64), 0, nil)
	cfg := record.Default()
	h := New(&cfg, store, nil, nil)

	assert.NoError(t, h.Handle("SET loadCellDataPin 5"))
	assert.NoError(t, h.Handle("RESETCONFIG"))
}

func TestHandle_Help(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.h.Handle("HELP"))
	out := f.out.String()
	for _, name := range []string{"LOAD", "SAVE", "PRINT", "RESETCONFIG", "SET <key> <value>", "HELP"} {
		assert.Contains(t, out, "INFO "+name+":")
	}
	for _, k := range Keys() {
		assert.Contains(t, out, k.Name+":")
	}
	assert.True(t, strings.HasSuffix(out, "OK HELP\n"))
}

func TestKeys_RoundTripThroughStatus(t *testing.T) {
	values := map[string]string{
		"clutchMin":         "500",
		"clutchMax":         "700",
		"throttleMin":       "600",
		"throttleMax":       "900",
		"brakeMin":          "-1000",
		"brakeMax":          "500000",
		"deadzone":          "35",
		"clutchPin":         "5",
		"throttlePin":       "6",
		"loadCellDataPin":   "7",
		"loadCellClockPin":  "8",
		"clutchSmoothing":   "0.25",
		"throttleSmoothing": "0.75",
		"brakeSmoothing":    "1",
		"debug":             "1",
	}
	require.Len(t, values, len(Keys()))

	f := newFixture(t)
	for _, k := range Keys() {
		v, ok := values[k.Name]
		require.True(t, ok, "no test value for %s", k.Name)
		require.NoError(t, f.h.Handle("SET "+k.Name+" "+v))
	}

	f.out.Reset()
	require.NoError(t, f.h.Handle("PRINT"))
	r, err := record.ParseStatus(f.out.String())
	require.NoError(t, err)
	if diff := cmp.Diff(*f.cfg, r); diff != "" {
		t.Errorf("ParseStatus mismatch (-want +got):\n%s", diff)
	}

	for _, k := range Keys() {
		got, ok := Value(r, k.Name)
		require.True(t, ok)
		assert.Equal(t, values[k.Name], got, k.Name)
	}
}

func TestKeys_IsFloat(t *testing.T) {
	for _, k := range Keys() {
		assert.Equal(t, strings.HasSuffix(k.Name, "Smoothing"), k.IsFloat(), k.Name)
	}
}

func TestValue_UnknownKey(t *testing.T) {
	_, ok := Value(record.Default(), "steering")
	assert.False(t, ok)
}
