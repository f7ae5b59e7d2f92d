// Package capture records voice notes from a microphone and hands the
// finished recording to a delivery callback.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/uploads/media"
	"github.com/kgellert/trimer-client/internal/ws"
)

// Microphone yields an encoded audio stream until the stream is closed.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// DeliverFunc receives the finished voice note.
type DeliverFunc func(ctx context.Context, voice *uploads.File) error

type readResult struct {
	data []byte
	err  error
}

type Controller struct {
	log     *slog.Logger
	mic     Microphone
	room    string
	emitter ws.Emitter
	deliver DeliverFunc

	// Precheck, if set, may veto Start. It runs without the controller lock.
	// The returned release runs once Start has settled the state.
	Precheck func() (release func(), err error)
	// Tick is the interval of one timer second.
	Tick time.Duration

	mu        sync.Mutex
	state     State
	busy      bool
	sessionID string
	stream    io.ReadCloser
	readDone  chan readResult
	stopTimer chan struct{}
	timerDone chan struct{}
}

func New(log *slog.Logger, mic Microphone, room string, emitter ws.Emitter, deliver DeliverFunc) *Controller {
	if emitter == nil {
		emitter = ws.Discard{}
	}
	return &Controller{
		log:     log,
		mic:     mic,
		room:    room,
		emitter: emitter,
		deliver: deliver,
		Tick:    time.Second,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording reports whether a recording is running or being finalized.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Recording || c.busy
}

func (c *Controller) Toggle(ctx context.Context) error {
	if c.State() == Recording {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

func (c *Controller) Start(ctx context.Context) error {
	const op = "capture.Start"

	log := c.log.With(slog.String("op", op), slog.String("room", c.room))

	if c.Precheck != nil {
		release, err := c.Precheck()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer release()
	}

	c.mu.Lock()
	if c.state == Recording || c.busy {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrRecordingInProgress)
	}
	c.busy = true
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)
	if err != nil {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()

		log.Warn("microphone unavailable", sl.Err(err))
		c.emitter.Emit(c.room, ws.Alert, ws.AlertPayload{Message: MicDeniedMessage})
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	}

	sessionID, err := uploads.GenerateID()
	if err != nil {
		sessionID = ""
	}

	readDone := make(chan readResult, 1)
	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stream)
		readDone <- readResult{data: buf.Bytes(), err: err}
	}()

	stopTimer := make(chan struct{})
	timerDone := make(chan struct{})

	c.mu.Lock()
	c.state = Recording
	c.busy = false
	c.sessionID = sessionID
	c.stream = stream
	c.readDone = readDone
	c.stopTimer = stopTimer
	c.timerDone = timerDone
	c.mu.Unlock()

	log.Info("recording started", slog.String("session_id", sessionID))
	c.emitter.Emit(c.room, ws.RecordState, ws.RecordStatePayload{Recording: true})
	c.emitter.Emit(c.room, ws.RecordTimer, ws.RecordTimerPayload{Clock: media.FormatClock(0)})

	go c.runTimer(stopTimer, timerDone)

	return nil
}

// Stop ends the running recording and delivers it. The microphone stream is
// closed on every path.
func (c *Controller) Stop(ctx context.Context) error {
	const op = "capture.Stop"

	res, sessionID, ok := c.finish()
	if !ok {
		return nil
	}
	log := c.log.With(slog.String("op", op), slog.String("room", c.room), slog.String("session_id", sessionID))

	if res.err != nil && len(res.data) == 0 {
		log.Error("recording failed", sl.Err(res.err))
		return fmt.Errorf("%s: %w", op, res.err)
	}
	if len(res.data) == 0 {
		log.Warn("recording produced no audio")
		return fmt.Errorf("%s: %w", op, ErrEmptyRecording)
	}

	log.Info("recording stopped", slog.Int("bytes", len(res.data)))

	if c.deliver == nil {
		return nil
	}
	if err := c.deliver(ctx, uploads.NewVoiceNote(res.data)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Cancel ends the running recording and discards it.
func (c *Controller) Cancel() {
	if _, sessionID, ok := c.finish(); ok {
		c.log.Info("recording discarded", slog.String("room", c.room), slog.String("session_id", sessionID))
	}
}

// finish stops the timer, releases the microphone and collects what was
// recorded. ok is false when nothing was recording.
func (c *Controller) finish() (res readResult, sessionID string, ok bool) {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return readResult{}, "", false
	}
	c.state = Idle
	c.busy = true
	stream, readDone := c.stream, c.readDone
	stopTimer, timerDone := c.stopTimer, c.timerDone
	sessionID = c.sessionID
	c.stream, c.readDone, c.stopTimer, c.timerDone = nil, nil, nil, nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	close(stopTimer)
	<-timerDone

	if err := stream.Close(); err != nil {
		c.log.Warn("failed to release microphone", slog.String("room", c.room), sl.Err(err))
	}
	res = <-readDone

	c.emitter.Emit(c.room, ws.RecordState, ws.RecordStatePayload{Recording: false})

	return res, sessionID, true
}

func (c *Controller) runTimer(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(c.Tick)
	defer t.Stop()

	var seconds int
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			seconds++
			clock := media.FormatClock(time.Duration(seconds) * time.Second)
			c.emitter.Emit(c.room, ws.RecordTimer, ws.RecordTimerPayload{Clock: clock})
		}
	}
}
