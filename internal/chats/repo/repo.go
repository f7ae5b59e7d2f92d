package chatsrepo

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kgellert/trimer-client/internal/config"
	"github.com/kgellert/trimer-client/internal/messages"
	messagesrepo "github.com/kgellert/trimer-client/internal/messages/repo"
)

// Repo fetches the server-rendered chat list page.
type Repo struct {
	client *http.Client
	server config.ServerConfig
}

func New(client *http.Client, server config.ServerConfig) *Repo {
	return &Repo{client: client, server: server}
}

func (r *Repo) GetChatList(ctx context.Context, username string) ([]byte, error) {
	const op = "chatsrepo.GetChatList"

	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, messages.ErrConversationIsEmpty)
	}

	endpoint, err := messagesrepo.Endpoint(r.server.BaseURL, r.server.ChatListPath, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, messages.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, messages.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, &messages.AppError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)})
	}

	return body, nil
}
