package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/ws"
	"github.com/kgellert/trimer-client/internal/ws/wstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	*bytes.Reader
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMic struct {
	data    []byte
	err     error
	opened  int
	streams []*fakeStream
}

func (m *fakeMic) Open(context.Context) (io.ReadCloser, error) {
	m.opened++
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{Reader: bytes.NewReader(m.data)}
	m.streams = append(m.streams, s)
	return s, nil
}

type delivered struct {
	mu    sync.Mutex
	files []*uploads.File
	err   error
}

func (d *delivered) deliver(_ context.Context, f *uploads.File) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = append(d.files, f)
	return d.err
}

func newController(mic Microphone, d *delivered) (*Controller, *wstest.Recorder) {
	rec := &wstest.Recorder{}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), mic, "chat:bob", rec, d.deliver)
	c.Tick = 5 * time.Millisecond
	return c, rec
}

func TestController_RecordAndDeliver(t *testing.T) {
	mic := &fakeMic{data: []byte("webm-bytes")}
	d := &delivered{}
	c, rec := newController(mic, d)
	ctx := context.Background()

	require.NoError(t, c.Toggle(ctx))
	assert.Equal(t, Recording, c.State())

	require.Eventually(t, func() bool {
		return len(rec.OfType(ws.RecordTimer)) >= 3
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Toggle(ctx))
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Recording())

	require.Len(t, d.files, 1)
	f := d.files[0]
	assert.Equal(t, "voicemessage.webm", f.Filename)
	assert.Equal(t, "audio/webm", f.ContentType)
	assert.Equal(t, []byte("webm-bytes"), f.Data)
	assert.Equal(t, uploads.FieldVoiceNote, f.Field())

	require.Len(t, mic.streams, 1)
	assert.True(t, mic.streams[0].isClosed())

	var clocks []string
	for _, e := range rec.OfType(ws.RecordTimer) {
		var p ws.RecordTimerPayload
		require.NoError(t, wstest.Decode(e.Payload, &p))
		clocks = append(clocks, p.Clock)
	}
	assert.Equal(t, []string{"00:00", "00:01", "00:02"}, clocks[:3])

	states := rec.OfType(ws.RecordState)
	require.Len(t, states, 2)
	var first, last ws.RecordStatePayload
	require.NoError(t, wstest.Decode(states[0].Payload, &first))
	require.NoError(t, wstest.Decode(states[1].Payload, &last))
	assert.True(t, first.Recording)
	assert.False(t, last.Recording)
}

func TestController_PermissionDenied(t *testing.T) {
	mic := &fakeMic{err: errors.New("device busy")}
	d := &delivered{}
	c, rec := newController(mic, d)

	err := c.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Recording())
	assert.Empty(t, d.files)

	alerts := rec.OfType(ws.Alert)
	require.Len(t, alerts, 1)
	var p ws.AlertPayload
	require.NoError(t, wstest.Decode(alerts[0].Payload, &p))
	assert.Equal(t, MicDeniedMessage, p.Message)
	assert.Empty(t, rec.OfType(ws.RecordState))
}

func TestController_StartTwice(t *testing.T) {
	c, _ := newController(&fakeMic{data: []byte("x")}, &delivered{})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Start(ctx), ErrRecordingInProgress)
	require.NoError(t, c.Stop(ctx))
}

func TestController_StopWhenIdle(t *testing.T) {
	d := &delivered{}
	c, rec := newController(&fakeMic{}, d)

	require.NoError(t, c.Stop(context.Background()))
	assert.Empty(t, d.files)
	assert.Empty(t, rec.Events())
}

func TestController_PrecheckVetoesStart(t *testing.T) {
	mic := &fakeMic{data: []byte("x")}
	c, _ := newController(mic, &delivered{})
	veto := errors.New("attachment selected")
	c.Precheck = func() (func(), error) { return nil, veto }

	assert.ErrorIs(t, c.Start(context.Background()), veto)
	assert.Zero(t, mic.opened)
}

func TestController_PrecheckReleasedAfterStart(t *testing.T) {
	tests := []struct {
		name      string
		micErr    error
		recording bool
	}{
		{name: "started", recording: true},
		{name: "mic denied", micErr: errors.New("denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(&fakeMic{data: []byte("x"), err: tt.micErr}, &delivered{})

			var releasedWhileRecording []bool
			c.Precheck = func() (func(), error) {
				return func() {
					releasedWhileRecording = append(releasedWhileRecording, c.Recording())
				}, nil
			}

			err := c.Start(context.Background())
			if tt.micErr != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				t.Cleanup(c.Cancel)
			}
			assert.Equal(t, []bool{tt.recording}, releasedWhileRecording)
		})
	}
}

func TestController_EmptyRecording(t *testing.T) {
	mic := &fakeMic{}
	d := &delivered{}
	c, _ := newController(mic, d)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Stop(ctx), ErrEmptyRecording)
	assert.Empty(t, d.files)
	assert.True(t, mic.streams[0].isClosed())
}

func TestController_DeliveryErrorIsReturned(t *testing.T) {
	boom := errors.New("send failed")
	d := &delivered{err: boom}
	c, _ := newController(&fakeMic{data: []byte("x")}, d)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Stop(ctx), boom)
	assert.Equal(t, Idle, c.State())
}

func TestFFmpegMicrophone_Args(t *testing.T) {
	m := NewFFmpegMicrophone("", "pulse", "default")
	assert.Equal(t, "ffmpeg", m.Path)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse", "-i", "default",
		"-c:a", "libopus", "-f", "webm", "pipe:1",
	}, m.Args())
}

func TestFFmpegMicrophone_MissingBinary(t *testing.T) {
	m := NewFFmpegMicrophone("/nonexistent/ffmpeg", "pulse", "default")
	_, err := m.Open(context.Background())
	assert.Error(t, err)
}

func TestController_CancelDiscards(t *testing.T) {
	mic := &fakeMic{data: []byte("x")}
	d := &delivered{}
	c, rec := newController(mic, d)

	require.NoError(t, c.Start(context.Background()))
	c.Cancel()

	assert.Equal(t, Idle, c.State())
	assert.Empty(t, d.files)
	assert.True(t, mic.streams[0].isClosed())
	assert.Len(t, rec.OfType(ws.RecordState), 2)

	c.Cancel()
	assert.Len(t, rec.OfType(ws.RecordState), 2)
}
