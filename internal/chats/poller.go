package chats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/metrics"
)

type Repo interface {
	GetChatList(ctx context.Context, username string) ([]byte, error)
}

// Poller refreshes the sidebar of the current user on a fixed interval.
type Poller struct {
	log         *slog.Logger
	repo        Repo
	sidebar     *Sidebar
	currentUser string
	interval    time.Duration
}

func NewPoller(log *slog.Logger, repo Repo, sidebar *Sidebar, currentUser string, interval time.Duration) *Poller {
	return &Poller{
		log:         log,
		repo:        repo,
		sidebar:     sidebar,
		currentUser: currentUser,
		interval:    interval,
	}
}

func (p *Poller) Tick(ctx context.Context) error {
	const op = "chats.Poller.Tick"

	log := p.log.With(slog.String("op", op))

	page, err := p.repo.GetChatList(ctx, p.currentUser)
	if err == nil {
		err = p.sidebar.Apply(page)
	}
	metrics.PollDone(metrics.TargetChatList, err)
	if err != nil {
		log.Error("error updating chat list", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Run fetches the list once and then every interval until ctx is done.
// Failures are logged and polling continues.
func (p *Poller) Run(ctx context.Context) {
	_ = p.Tick(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = p.Tick(ctx)
		}
	}
}
