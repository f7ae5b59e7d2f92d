// Package poller keeps a conversation view in sync with the chat server.
package poller

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
	"golang.org/x/sync/singleflight"
)

type Poller struct {
	log      *slog.Logger
	repo     messages.Repo
	sess     *session.Session
	engine   *render.Engine
	interval time.Duration
	group    singleflight.Group

	// OnRendered is called with every fragment added to the view.
	OnRendered func(ctx context.Context, f render.Fragment)
}

func New(log *slog.Logger, repo messages.Repo, sess *session.Session, engine *render.Engine, interval time.Duration) *Poller {
	return &Poller{
		log:      log,
		repo:     repo,
		sess:     sess,
		engine:   engine,
		interval: interval,
	}
}

// Load replaces the view with the full conversation.
func (p *Poller) Load(ctx context.Context) error {
	const op = "poller.Load"

	log := p.log.With(slog.String("op", op), slog.String("username", p.sess.OtherUser))

	msgs, err := p.repo.GetMessages(ctx, p.sess.OtherUser)
	metrics.PollDone(metrics.TargetMessages, err)
	if err != nil {
		log.Error("failed to load messages", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	frags := make([]render.Fragment, 0, len(msgs))
	var maxID int64
	for _, m := range msgs {
		frags = append(frags, p.engine.Render(m, false))
		if m.ID > maxID {
			maxID = m.ID
		}
	}

	if err := p.sess.Conversation.Reset(frags); err != nil {
		log.Error("failed to render conversation", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	p.sess.SetLastMessageID(maxID)
	p.sess.Conversation.ScrollToBottom()

	for _, f := range frags {
		metrics.RenderedMessage(false)
		p.rendered(ctx, f)
	}

	log.Debug("conversation loaded", slog.Int("count", len(msgs)), slog.Int64("last_message_id", maxID))

	return nil
}

// Tick appends messages the view does not show yet and upgrades read
// receipts of the current user's messages. Fragments are never removed.
func (p *Poller) Tick(ctx context.Context) error {
	const op = "poller.Tick"

	log := p.log.With(slog.String("op", op), slog.String("username", p.sess.OtherUser))

	msgs, err := p.repo.GetMessages(ctx, p.sess.OtherUser)
	metrics.PollDone(metrics.TargetMessages, err)
	if err != nil {
		log.Error("failed to poll messages", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	conv := p.sess.Conversation
	for _, m := range msgs {
		if !conv.Has(m.ID) {
			f := p.engine.Render(m, true)
			added, err := conv.Append(f)
			if err != nil {
				log.Error("failed to render message", slog.Int64("message_id", m.ID), sl.Err(err))
				continue
			}
			if added {
				metrics.RenderedMessage(true)
				p.sess.Advance(m.ID)
				conv.ScrollToBottom()
				p.rendered(ctx, f)
			}
			continue
		}

		if !m.IsSystemMessage && m.Sender == p.engine.CurrentUser() && m.IsRead {
			conv.UpgradeReceipt(m.ID)
		}
	}

	return nil
}

// Refresh runs a Tick, joining one already in flight.
func (p *Poller) Refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("tick", func() (any, error) {
		return nil, p.Tick(ctx)
	})
	return err
}

// Run loads the conversation and then polls every interval until ctx is
// done. Poll failures are logged and the next tick proceeds.
func (p *Poller) Run(ctx context.Context) {
	_ = p.Load(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = p.Refresh(ctx)
		}
	}
}

func (p *Poller) rendered(ctx context.Context, f render.Fragment) {
	if p.OnRendered != nil {
		p.OnRendered(ctx, f)
	}
}
