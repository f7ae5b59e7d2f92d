// Package voice tracks playback state of voice messages in a conversation
// and resolves their durations.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/uploads/media"
	"github.com/kgellert/trimer-client/internal/view"
	"github.com/kgellert/trimer-client/internal/ws"
)

const (
	probeTimeout = 30 * time.Second
	// WaveformPoints is the number of bars drawn for a voice message.
	WaveformPoints = 64
)

type Prober interface {
	Duration(ctx context.Context, source string) (time.Duration, error)
}

// Sampler reduces the audio at source to points bar heights.
type Sampler interface {
	Peaks(ctx context.Context, source string, points int) ([]byte, error)
}

// Player owns the waveform state of every voice message in one
// conversation.
type Player struct {
	log     *slog.Logger
	prober  Prober
	sampler Sampler
	base    *url.URL
	conv    *view.Conversation
	emitter ws.Emitter

	mu      sync.Mutex
	playing map[int64]bool
	wg      sync.WaitGroup
}

// NewPlayer resolves relative voice URLs against baseURL. A nil sampler
// leaves waveforms flat.
func NewPlayer(log *slog.Logger, prober Prober, sampler Sampler, baseURL string, conv *view.Conversation, emitter ws.Emitter) (*Player, error) {
	const op = "voice.NewPlayer"

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if emitter == nil {
		emitter = ws.Discard{}
	}

	return &Player{
		log:     log,
		prober:  prober,
		sampler: sampler,
		base:    base,
		conv:    conv,
		emitter: emitter,
		playing: make(map[int64]bool),
	}, nil
}

// Load starts resolving the duration and waveform of a voice fragment in the
// background. Fragments without a voice body are ignored.
func (p *Player) Load(ctx context.Context, f render.Fragment) {
	if f.Voice == nil || (p.prober == nil && p.sampler == nil) {
		return
	}

	source := p.resolve(f.Voice.URL)
	id := f.ID

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		const op = "voice.Player.Load"
		log := p.log.With(slog.String("op", op), slog.Int64("message_id", id))

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()

		var clock string
		if p.prober != nil {
			d, err := p.prober.Duration(ctx, source)
			if err != nil {
				log.Warn("failed to probe voice duration", sl.Err(err))
			} else {
				clock = media.FormatClock(d)
			}
		}

		var peaks []byte
		if p.sampler != nil {
			var err error
			peaks, err = p.sampler.Peaks(ctx, source, WaveformPoints)
			if err != nil {
				log.Warn("failed to sample voice waveform", sl.Err(err))
				peaks = nil
			}
		}

		if clock == "" && peaks == nil {
			return
		}
		p.conv.SetVoice(id, clock, peaks)
	}()
}

// Wait blocks until every pending Load has finished.
func (p *Player) Wait() {
	p.wg.Wait()
}

// Toggle flips play/pause of message id and returns the new state.
func (p *Player) Toggle(id int64) bool {
	p.mu.Lock()
	playing := !p.playing[id]
	p.playing[id] = playing
	p.mu.Unlock()

	p.emitter.Emit(p.conv.Room(), ws.VoiceState, ws.VoiceStatePayload{ID: id, Playing: playing})
	return playing
}

// Finish resets the play button once playback reaches the end.
func (p *Player) Finish(id int64) {
	p.mu.Lock()
	delete(p.playing, id)
	p.mu.Unlock()

	p.emitter.Emit(p.conv.Room(), ws.VoiceState, ws.VoiceStatePayload{ID: id, Playing: false})
}

func (p *Player) Playing(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing[id]
}

func (p *Player) resolve(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return p.base.ResolveReference(ref).String()
}
