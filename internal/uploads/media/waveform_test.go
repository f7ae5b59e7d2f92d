package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32le(samples ...float32) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(s))
	}
	return buf.Bytes()
}

func TestPeaksFromF32LE(t *testing.T) {
	// four windows of two samples: silence, quiet, loud (negative), loud
	data := f32le(0, 0, 0.1, -0.2, -0.9, 0.3, 0.5, 0.8)

	peaks, err := peaksFromF32LE(bytes.NewReader(data), 4)
	require.NoError(t, err)
	require.Len(t, peaks, 4)

	assert.Equal(t, 0.0, peaks[0])
	assert.Less(t, peaks[1], peaks[3])
	assert.InDelta(t, 1.0, peaks[2], 1e-6)
	for _, p := range peaks {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPeaksFromF32LE_SplitReads(t *testing.T) {
	data := f32le(0.25, -0.5, 1, 0.75)

	whole, err := peaksFromF32LE(bytes.NewReader(data), 2)
	require.NoError(t, err)

	split, err := peaksFromF32LE(iotest.OneByteReader(bytes.NewReader(data)), 2)
	require.NoError(t, err)

	assert.Equal(t, whole, split)
}

func TestPeaksFromF32LE_Empty(t *testing.T) {
	peaks, err := peaksFromF32LE(bytes.NewReader(nil), 8)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 8), peaks)
}

func TestPeaksFromF32LE_ReadError(t *testing.T) {
	_, err := peaksFromF32LE(iotest.ErrReader(io.ErrUnexpectedEOF), 4)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestQuantizePeaksU8(t *testing.T) {
	assert.Equal(t, []byte{0, 128, 255, 255, 0}, quantizePeaksU8([]float64{0, 0.5, 1, 2, -1}))
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		p    float64
		want float64
	}{
		{name: "empty", xs: nil, p: 0.5, want: 0},
		{name: "min", xs: []float64{3, 1, 2}, p: 0, want: 1},
		{name: "max", xs: []float64{3, 1, 2}, p: 1, want: 3},
		{name: "interpolated", xs: []float64{0, 10}, p: 0.95, want: 9.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.xs, tt.p), 1e-9)
		})
	}
}

func TestFFmpegWaveform_InvalidPoints(t *testing.T) {
	w := NewFFmpegWaveform("")
	for _, points := range []int{0, -1, MaxPoints + 1} {
		_, err := w.Peaks(context.Background(), "http://chat.local/v.webm", points)
		assert.ErrorIs(t, err, ErrInvalidPoints)
	}
}

func TestFFmpegWaveform_MissingBinary(t *testing.T) {
	w := NewFFmpegWaveform("/nonexistent/ffmpeg")
	_, err := w.Peaks(context.Background(), "http://chat.local/v.webm", 32)
	assert.Error(t, err)
}
