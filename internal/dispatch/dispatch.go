// Package dispatch sends the composed message of a session to the chat
// server and folds the result back into the view.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/metrics"
	"github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/session"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/ws"
)

// SendErrorPrefix starts the alert shown when a send fails.
const SendErrorPrefix = "حدث خطأ في الإرسال: "

const KeyEnter = "Enter"

type Controller struct {
	log     *slog.Logger
	repo    messages.Repo
	sess    *session.Session
	engine  *render.Engine
	emitter ws.Emitter

	// SuccessFor is how long the success indicator stays visible.
	SuccessFor time.Duration
	// OnRendered is called with every fragment the echo adds to the view.
	OnRendered func(ctx context.Context, f render.Fragment)
}

func New(log *slog.Logger, repo messages.Repo, sess *session.Session, engine *render.Engine, emitter ws.Emitter) *Controller {
	if emitter == nil {
		emitter = ws.Discard{}
	}
	return &Controller{
		log:        log,
		repo:       repo,
		sess:       sess,
		engine:     engine,
		emitter:    emitter,
		SuccessFor: 2 * time.Second,
	}
}

// Send posts the current draft. textOverride replaces the input field
// value; voice is a finished recording. With nothing to send it returns nil
// without touching the network. On failure the input, the selected file and
// the reply draft are kept.
func (c *Controller) Send(ctx context.Context, textOverride *string, voice *uploads.File) error {
	const op = "dispatch.Send"

	room := c.sess.Room()
	log := c.log.With(slog.String("op", op), slog.String("receiver", c.sess.OtherUser))

	text := c.sess.Input()
	if textOverride != nil {
		text = *textOverride
	}
	file := c.sess.SelectedFile()

	if text == "" && file == nil && voice == nil {
		return nil
	}

	c.emitter.Emit(room, ws.SendState, ws.SendStatePayload{Sending: true, Disabled: true})
	defer c.emitter.Emit(room, ws.SendState, ws.SendStatePayload{Sending: false, Disabled: false})

	req := messages.SendRequest{
		Receiver: c.sess.OtherUser,
		Content:  text,
		ReplyTo:  c.sess.Reply.TargetID(),
		File:     file,
		Voice:    voice,
	}

	msg, err := c.repo.SendMessage(ctx, req)
	metrics.SendDone(err)
	if err != nil {
		log.Error("failed to send message", sl.Err(err))
		c.emitter.Emit(room, ws.Alert, ws.AlertPayload{Message: SendErrorPrefix + messages.UserMessage(err)})
		return fmt.Errorf("%s: %w", op, err)
	}

	f := c.engine.Render(*msg, true)
	added, err := c.sess.Conversation.Append(f)
	if err != nil {
		log.Error("failed to render echo", slog.Int64("message_id", msg.ID), sl.Err(err))
	}
	if added {
		metrics.RenderedMessage(true)
		c.sess.Advance(msg.ID)
		if c.OnRendered != nil {
			c.OnRendered(ctx, f)
		}
	}

	c.sess.ClearInput()
	c.sess.ClearSelection()
	c.sess.Reply.Dismiss()
	c.sess.Conversation.ScrollToBottom()

	c.emitter.Emit(room, ws.SendSuccess, ws.VisibilityPayload{Visible: true})
	time.AfterFunc(c.SuccessFor, func() {
		c.emitter.Emit(room, ws.SendSuccess, ws.VisibilityPayload{Visible: false})
	})

	log.Info("message sent", slog.Int64("message_id", msg.ID))

	return nil
}

// Key sends the draft on Enter without Shift. It reports whether the key
// triggered a send.
func (c *Controller) Key(ctx context.Context, key string, shift bool) (bool, error) {
	if key != KeyEnter || shift {
		return false, nil
	}
	return true, c.Send(ctx, nil, nil)
}
