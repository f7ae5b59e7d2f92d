package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/view"
	"github.com/kgellert/trimer-client/internal/ws"
	"github.com/kgellert/trimer-client/internal/ws/wstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu      sync.Mutex
	sources []string
	d       time.Duration
	err     error
}

func (f *fakeProber) Duration(_ context.Context, source string) (time.Duration, error) {
	f.mu.Lock()
	f.sources = append(f.sources, source)
	f.mu.Unlock()
	return f.d, f.err
}

type fakeSampler struct {
	mu     sync.Mutex
	points []int
	peaks  []byte
	err    error
}

func (f *fakeSampler) Peaks(_ context.Context, _ string, points int) ([]byte, error) {
	f.mu.Lock()
	f.points = append(f.points, points)
	f.mu.Unlock()
	return f.peaks, f.err
}

func setup(t *testing.T, prober Prober) (*Player, *view.Conversation, *wstest.Recorder) {
	t.Helper()
	return setupSampled(t, prober, nil)
}

func setupSampled(t *testing.T, prober Prober, sampler Sampler) (*Player, *view.Conversation, *wstest.Recorder) {
	t.Helper()

	rec := &wstest.Recorder{}
	conv := view.New("chat:bob", rec)
	p, err := NewPlayer(slog.New(slog.NewTextHandler(io.Discard, nil)), prober, sampler, "http://chat.local/", conv, rec)
	require.NoError(t, err)
	return p, conv, rec
}

func voiceFragment(t *testing.T, conv *view.Conversation, id int64) render.Fragment {
	t.Helper()
	f := render.New("alice").Render(messages.Message{ID: id, Sender: "bob", VoiceNoteURL: "/media/voice/1.webm"}, true)
	_, err := conv.Append(f)
	require.NoError(t, err)
	return f
}

func TestPlayer_LoadSetsDuration(t *testing.T) {
	prober := &fakeProber{d: 75 * time.Second}
	p, conv, rec := setup(t, prober)

	f := voiceFragment(t, conv, 4)
	p.Load(context.Background(), f)
	p.Wait()

	assert.Equal(t, []string{"http://chat.local/media/voice/1.webm"}, prober.sources)

	got, _ := conv.Fragment(4)
	assert.Equal(t, "01:15", got.Voice.Duration)

	ready := rec.OfType(ws.VoiceReady)
	require.Len(t, ready, 1)
	var payload ws.VoiceReadyPayload
	require.NoError(t, wstest.Decode(ready[0].Payload, &payload))
	assert.Equal(t, ws.VoiceReadyPayload{ID: 4, Duration: "01:15"}, payload)
}

func TestPlayer_LoadFailureKeepsPlaceholder(t *testing.T) {
	p, conv, rec := setup(t, &fakeProber{err: errors.New("no ffprobe")})

	p.Load(context.Background(), voiceFragment(t, conv, 4))
	p.Wait()

	got, _ := conv.Fragment(4)
	assert.Equal(t, "00:00", got.Voice.Duration)
	assert.Empty(t, rec.OfType(ws.VoiceReady))
}

func TestPlayer_LoadSetsWaveform(t *testing.T) {
	tests := []struct {
		name      string
		prober    *fakeProber
		sampler   *fakeSampler
		wantClock string
		wantPeaks []byte
	}{
		{
			name:      "duration and peaks",
			prober:    &fakeProber{d: 3 * time.Second},
			sampler:   &fakeSampler{peaks: []byte{10, 200, 90}},
			wantClock: "00:03",
			wantPeaks: []byte{10, 200, 90},
		},
		{
			name:      "peaks without ffprobe",
			prober:    &fakeProber{err: errors.New("no ffprobe")},
			sampler:   &fakeSampler{peaks: []byte{1, 2}},
			wantClock: "00:00",
			wantPeaks: []byte{1, 2},
		},
		{
			name:      "duration when sampling fails",
			prober:    &fakeProber{d: 61 * time.Second},
			sampler:   &fakeSampler{err: errors.New("no ffmpeg")},
			wantClock: "01:01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, conv, rec := setupSampled(t, tt.prober, tt.sampler)

			p.Load(context.Background(), voiceFragment(t, conv, 4))
			p.Wait()

			assert.Equal(t, []int{WaveformPoints}, tt.sampler.points)

			got, _ := conv.Fragment(4)
			assert.Equal(t, tt.wantClock, got.Voice.Duration)
			assert.Equal(t, tt.wantPeaks, []byte(got.Voice.Peaks))

			ready := rec.OfType(ws.VoiceReady)
			require.Len(t, ready, 1)
			var payload ws.VoiceReadyPayload
			require.NoError(t, wstest.Decode(ready[0].Payload, &payload))
			assert.Equal(t, tt.wantPeaks, payload.Peaks)
		})
	}
}

func TestPlayer_LoadIgnoresNonVoice(t *testing.T) {
	prober := &fakeProber{}
	p, _, _ := setup(t, prober)

	p.Load(context.Background(), render.Fragment{ID: 1, Content: "text"})
	p.Wait()

	assert.Empty(t, prober.sources)
}

func TestPlayer_ToggleAndFinish(t *testing.T) {
	p, _, rec := setup(t, nil)

	assert.True(t, p.Toggle(2))
	assert.True(t, p.Playing(2))
	assert.False(t, p.Toggle(2))
	assert.True(t, p.Toggle(2))

	p.Finish(2)
	assert.False(t, p.Playing(2))

	var states []bool
	for _, e := range rec.OfType(ws.VoiceState) {
		var s ws.VoiceStatePayload
		require.NoError(t, wstest.Decode(e.Payload, &s))
		states = append(states, s.Playing)
	}
	assert.Equal(t, []bool{true, false, true, false}, states)
}
