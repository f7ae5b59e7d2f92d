// Package messagesservice wires the per-conversation controllers together
// and routes page actions to them.
package messagesservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kgellert/trimer-client/internal/capture"
	"github.com/kgellert/trimer-client/internal/chats"
	"github.com/kgellert/trimer-client/internal/dispatch"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/poller"
	"github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/session"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/voice"
	"github.com/kgellert/trimer-client/internal/ws"
)

const roomPrefix = "chat:"

var ErrUnknownRoom = errors.New("unknown room")

// Room is the websocket room of the conversation with username.
func Room(username string) string {
	return roomPrefix + username
}

// Window is one open conversation with its controllers.
type Window struct {
	Session  *session.Session
	Dispatch *dispatch.Controller
	Poller   *poller.Poller
	Player   *voice.Player
	Capture  *capture.Controller

	emitter ws.Emitter
}

type Options struct {
	CurrentUser  string
	ServerURL    string
	PollInterval time.Duration
	SuccessFor   time.Duration
	// Waveform samples voice notes for their bars; nil leaves them flat.
	Waveform voice.Sampler
}

// Registry creates windows on first use and keeps their pollers running
// until Close.
type Registry struct {
	log     *slog.Logger
	repo    messages.Repo
	emitter ws.Emitter
	prober  voice.Prober
	mic     capture.Microphone
	sidebar *chats.Sidebar
	engine  *render.Engine
	opts    Options

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	windows map[string]*Window
	wg      sync.WaitGroup
}

func NewRegistry(
	ctx context.Context,
	log *slog.Logger,
	repo messages.Repo,
	emitter ws.Emitter,
	prober voice.Prober,
	mic capture.Microphone,
	sidebar *chats.Sidebar,
	opts Options,
) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	if emitter == nil {
		emitter = ws.Discard{}
	}
	return &Registry{
		log:     log,
		repo:    repo,
		emitter: emitter,
		prober:  prober,
		mic:     mic,
		sidebar: sidebar,
		engine:  render.New(opts.CurrentUser),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		windows: make(map[string]*Window),
	}
}

// Window returns the window for username, opening it and starting its
// poller if needed.
func (r *Registry) Window(username string) (*Window, error) {
	const op = "messagesservice.Window"

	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, messages.ErrConversationIsEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.windows[username]; ok {
		return w, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w, err := r.open(username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.windows[username] = w

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		w.Poller.Run(r.ctx)
	}()

	r.log.Info("conversation opened", slog.String("op", op), slog.String("username", username))

	return w, nil
}

func (r *Registry) open(username string) (*Window, error) {
	room := Room(username)
	log := r.log.With(slog.String("room", room))

	sess := session.New(r.opts.CurrentUser, username, room, r.emitter)

	player, err := voice.NewPlayer(log, r.prober, r.opts.Waveform, r.opts.ServerURL, sess.Conversation, r.emitter)
	if err != nil {
		return nil, err
	}
	onRendered := func(ctx context.Context, f render.Fragment) {
		player.Load(ctx, f)
	}

	d := dispatch.New(log, r.repo, sess, r.engine, r.emitter)
	if r.opts.SuccessFor > 0 {
		d.SuccessFor = r.opts.SuccessFor
	}
	d.OnRendered = onRendered

	p := poller.New(log, r.repo, sess, r.engine, r.opts.PollInterval)
	p.OnRendered = onRendered

	c := capture.New(log, r.mic, room, r.emitter, func(ctx context.Context, v *uploads.File) error {
		return d.Send(ctx, nil, v)
	})
	c.Precheck = sess.BeginRecording
	sess.TrackRecording(c.Recording)

	return &Window{
		Session:  sess,
		Dispatch: d,
		Poller:   p,
		Player:   player,
		Capture:  c,
		emitter:  r.emitter,
	}, nil
}

// Lookup returns an already open window.
func (r *Registry) Lookup(username string) (*Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[username]
	return w, ok
}

// Close stops every poller, discards running recordings and waits for
// pending duration probes.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	windows := make([]*Window, 0, len(r.windows))
	for _, w := range r.windows {
		windows = append(windows, w)
	}
	r.mu.Unlock()

	for _, w := range windows {
		w.Capture.Cancel()
		w.Player.Wait()
	}
}

// Snapshot implements the websocket router.
func (r *Registry) Snapshot(_ context.Context, room string) []ws.ServerEvent {
	const op = "messagesservice.Snapshot"

	log := r.log.With(slog.String("op", op), slog.String("room", room))

	var (
		markup string
		err    error
	)
	switch {
	case room == ws.ChatListRoom:
		if r.sidebar == nil {
			return nil
		}
		markup, err = r.sidebar.HTML()
		if err == nil {
			return event(log, room, ws.ChatListUpdate, ws.ChatListUpdatePayload{HTML: markup})
		}
	case strings.HasPrefix(room, roomPrefix):
		var w *Window
		w, err = r.Window(strings.TrimPrefix(room, roomPrefix))
		if err == nil {
			markup, err = w.Session.Conversation.HTML()
		}
		if err == nil {
			return event(log, room, ws.ViewReset, ws.ViewResetPayload{HTML: markup})
		}
	default:
		err = ErrUnknownRoom
	}

	log.Error("failed to build snapshot", sl.Err(err))
	return nil
}

func event(log *slog.Logger, room string, t ws.EventType, payload any) []ws.ServerEvent {
	evt, err := ws.NewEvent(room, t, payload)
	if err != nil {
		log.Error("failed to encode snapshot", sl.Err(err))
		return nil
	}
	return []ws.ServerEvent{evt}
}

// Handle implements the websocket router.
func (r *Registry) Handle(ctx context.Context, msg ws.ClientMsg) error {
	const op = "messagesservice.Handle"

	if msg.Type == ws.ActionChatListClick {
		if r.sidebar == nil {
			return nil
		}
		if err := r.sidebar.MarkSeen(msg.Username); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if !strings.HasPrefix(msg.Room, roomPrefix) {
		return fmt.Errorf("%s: %q: %w", op, msg.Room, ErrUnknownRoom)
	}
	w, err := r.Window(strings.TrimPrefix(msg.Room, roomPrefix))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := w.Handle(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var ErrUnknownAction = errors.New("unknown action")

// Handle applies one page action to the window.
func (w *Window) Handle(ctx context.Context, msg ws.ClientMsg) error {
	switch msg.Type {
	case ws.ActionInput:
		w.Session.SetInput(msg.Text)
	case ws.ActionKey:
		_, err := w.Dispatch.Key(ctx, msg.Key, msg.Shift)
		return err
	case ws.ActionClick:
		_, err := w.Click(msg.MessageID, render.Target(msg.Target))
		return err
	case ws.ActionImageClose:
		w.emitter.Emit(w.Session.Room(), ws.ImageModal, ws.ImageModalPayload{Visible: false})
	case ws.ActionReplyDismiss:
		w.Session.Reply.Dismiss()
	case ws.ActionRecordToggle:
		return w.Capture.Toggle(context.WithoutCancel(ctx))
	case ws.ActionVoiceToggle:
		w.Player.Toggle(msg.MessageID)
	case ws.ActionVoiceFinish:
		w.Player.Finish(msg.MessageID)
	case ws.ActionAttachmentRemove:
		w.Session.ClearSelection()
	default:
		return fmt.Errorf("%q: %w", msg.Type, ErrUnknownAction)
	}
	return nil
}

// Click handles a click inside the fragment of message id. Images open the
// preview modal; other targets may open a reply draft. It reports whether
// a draft was opened.
func (w *Window) Click(id int64, target render.Target) (bool, error) {
	f, ok := w.Session.Conversation.Fragment(id)
	if !ok {
		return false, messages.ErrMessageIsNotExist
	}

	if target == render.TargetImage && f.ImageURL != "" {
		w.emitter.Emit(w.Session.Room(), ws.ImageModal, ws.ImageModalPayload{Visible: true, URL: f.ImageURL})
		return false, nil
	}

	d, ok := f.Click(target)
	if !ok {
		return false, nil
	}
	w.Session.Reply.Begin(d.TargetID, d.Sender, d.Snippet, d.Kind)
	return true, nil
}
