package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// FFProbe reads media durations with the ffprobe binary. ffprobe opens
// http(s) sources directly, so voice notes are probed by URL.
type FFProbe struct {
	Path string
}

func NewFFProbe(path string) *FFProbe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFProbe{Path: path}
}

func (p *FFProbe) Duration(ctx context.Context, source string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		source,
	)

	out, err := cmd.Output()
	if err != nil {
		var ee *exec.Error
		if errors.As(err, &ee) {
			return 0, fmt.Errorf("ffprobe not available: %w", err)
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return ParseProbeOutput(out)
}

// ParseProbeOutput extracts format.duration (seconds as a string) from
// ffprobe's JSON output.
func ParseProbeOutput(out []byte) (time.Duration, error) {
	type ffprobeOut struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	var parsed ffprobeOut
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parse ffprobe json: %w", err)
	}

	if parsed.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe: empty duration")
	}

	secs, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration float: %w", err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("ffprobe: negative duration")
	}

	return time.Duration(secs * float64(time.Second)), nil
}

// FormatClock renders d as mm:ss, truncating fractional seconds.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
