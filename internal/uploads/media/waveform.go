package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sort"
	"strings"
)

const MaxPoints = 512

var ErrInvalidPoints = errors.New("invalid points")

// FFmpegWaveform decodes audio with ffmpeg and reduces it to peak bars.
// ffmpeg reads http(s) sources directly.
type FFmpegWaveform struct {
	Path string
}

func NewFFmpegWaveform(path string) *FFmpegWaveform {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegWaveform{Path: path}
}

// Peaks returns points bar heights in 0..255 for the audio at source.
func (w *FFmpegWaveform) Peaks(ctx context.Context, source string, points int) ([]byte, error) {
	if points <= 0 || points > MaxPoints {
		return nil, ErrInvalidPoints
	}

	// raw PCM float32 mono 16kHz on stdout
	cmd := exec.CommandContext(ctx, w.Path,
		"-nostdin",
		"-loglevel", "error",
		"-i", source,
		"-ac", "1",
		"-ar", "16000",
		"-f", "f32le",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	peaks, err := peaksFromF32LE(stdout, points)

	waitErr := cmd.Wait()
	if err == nil && waitErr != nil {
		err = waitErr
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}

	return quantizePeaksU8(peaks), nil
}

// peaksFromF32LE reads the whole stream; voice notes are short.
func peaksFromF32LE(r io.Reader, points int) ([]float64, error) {
	br := bufio.NewReaderSize(r, 128*1024)

	var samples []float32
	buf := make([]byte, 4*4096)
	var carry []byte
	for {
		n, err := br.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			whole := len(chunk) - len(chunk)%4
			for i := 0; i < whole; i += 4 {
				samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:i+4])))
			}
			carry = append([]byte(nil), chunk[whole:]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	peaks := make([]float64, points)
	if len(samples) == 0 {
		return peaks, nil
	}

	total := len(samples)
	for i := 0; i < points; i++ {
		start := (i * total) / points
		end := ((i + 1) * total) / points
		if end <= start {
			end = min(start+1, total)
		}

		var peak float64
		for j := start; j < end; j++ {
			peak = math.Max(peak, math.Abs(float64(samples[j])))
		}
		peaks[i] = math.Min(peak, 1)
	}

	// normalize by the 95th percentile so a single click does not flatten the rest
	p95 := percentile(peaks, 0.95)
	if p95 <= 1e-9 {
		return peaks, nil
	}
	for i := range peaks {
		peaks[i] = math.Sqrt(math.Min(peaks[i]/p95, 1))
	}

	return peaks, nil
}

func quantizePeaksU8(peaks []float64) []byte {
	out := make([]byte, len(peaks))
	for i, v := range peaks {
		v = math.Max(0, math.Min(v, 1))
		out[i] = byte(math.Round(v * 255))
	}
	return out
}

func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)

	if p <= 0 {
		return cp[0]
	}
	if p >= 1 {
		return cp[len(cp)-1]
	}

	pos := p * float64(len(cp)-1)
	i := int(math.Floor(pos))
	j := int(math.Ceil(pos))
	if i == j {
		return cp[i]
	}
	frac := pos - float64(i)
	return cp[i]*(1-frac) + cp[j]*frac
}
