package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	f := Frame{
		Raw: [3]int32{579, 804, -1250},
		Out: [3]int{0, 1023, 17},
	}
	assert.Equal(t, "579,804,-1250,0,1023,17", Format(f))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Frame
		wantErr bool
	}{
		{
			name: "valid line",
			line: "579,804,152000,0,1023,389",
			want: Frame{Raw: [3]int32{579, 804, 152000}, Out: [3]int{0, 1023, 389}},
		},
		{
			name: "trailing carriage return",
			line: "600,700,0,188,447,0\r",
			want: Frame{Raw: [3]int32{600, 700, 0}, Out: [3]int{188, 447, 0}},
		},
		{
			name: "negative load cell reading",
			line: "0,0,-42,0,0,0",
			want: Frame{Raw: [3]int32{0, 0, -42}},
		},
		{
			name:    "too few fields",
			line:    "579,804,152000,0,1023",
			wantErr: true,
		},
		{
			name:    "too many fields",
			line:    "579,804,152000,0,1023,389,1",
			wantErr: true,
		},
		{
			name:    "non-numeric raw",
			line:    "abc,804,152000,0,1023,389",
			wantErr: true,
		},
		{
			name:    "output above range",
			line:    "579,804,152000,0,1024,389",
			wantErr: true,
		},
		{
			name:    "negative output",
			line:    "579,804,152000,-1,0,389",
			wantErr: true,
		},
		{
			name:    "status line",
			line:    "OK SAVE",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatParse(t *testing.T) {
	f := Frame{Raw: [3]int32{1, -2, 2147483647}, Out: [3]int{3, 4, 5}}
	got, err := Parse(Format(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
