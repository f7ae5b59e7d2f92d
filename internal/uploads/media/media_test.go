package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{time.Second, "00:01"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{61 * time.Second, "01:01"},
		{10*time.Minute + 5*time.Second, "10:05"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.in), tt.in.String())
	}
}

func TestParseProbeOutput(t *testing.T) {
	d, err := ParseProbeOutput([]byte(`{"format":{"duration":"8.342000"}}`))
	require.NoError(t, err)
	assert.InDelta(t, float64(8342*time.Millisecond), float64(d), float64(time.Microsecond))

	_, err = ParseProbeOutput([]byte(`{"format":{}}`))
	assert.Error(t, err)

	_, err = ParseProbeOutput([]byte(`not json`))
	assert.Error(t, err)
}
