package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

const stopGrace = 5 * time.Second

// FFmpegMicrophone records from a system audio input through ffmpeg and
// streams webm/opus on stdout.
type FFmpegMicrophone struct {
	Path        string
	InputFormat string
	InputDevice string
}

func NewFFmpegMicrophone(path, inputFormat, inputDevice string) *FFmpegMicrophone {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegMicrophone{Path: path, InputFormat: inputFormat, InputDevice: inputDevice}
}

func (m *FFmpegMicrophone) Args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", m.InputFormat,
		"-i", m.InputDevice,
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	}
}

func (m *FFmpegMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	const op = "capture.FFmpegMicrophone.Open"

	// The recording outlives the request that started it.
	cmd := exec.Command(m.Path, m.Args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdin: %w", op, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout: %w", op, err)
	}

	if err := cmd.Start(); err != nil {
		var ee *exec.Error
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("%s: ffmpeg not available: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ctx.Err(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ffmpegStream{cmd: cmd, stdin: stdin, stdout: stdout, exited: make(chan struct{})}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	waitOnce  sync.Once
	waitErr   error
	exited    chan struct{}
	closeOnce sync.Once
}

// Read reaps the process once stdout is drained.
func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil {
		s.wait()
	}
	return n, err
}

func (s *ffmpegStream) wait() {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	})
}

// Close asks ffmpeg to finish the container and kills it if it does not
// exit in time. Close expects a concurrent reader draining the stream.
func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_, _ = io.WriteString(s.stdin, "q")
		_ = s.stdin.Close()

		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			_ = s.cmd.Process.Kill()
			<-s.exited
		}

		var exitErr *exec.ExitError
		if s.waitErr != nil && !errors.As(s.waitErr, &exitErr) {
			err = s.waitErr
		}
	})
	return err
}
