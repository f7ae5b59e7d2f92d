package messagesrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/kgellert/trimer-client/internal/config"
	messagesdomain "github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/uploads"
)

const csrfHeader = "X-CSRFToken"

// Repo talks to the chat server's message endpoints.
type Repo struct {
	client    *http.Client
	server    config.ServerConfig
	csrfToken string
}

func New(client *http.Client, server config.ServerConfig, csrfToken string) *Repo {
	return &Repo{client: client, server: server, csrfToken: csrfToken}
}

func (r *Repo) GetMessages(ctx context.Context, username string) ([]messagesdomain.Message, error) {
	const op = "messagesrepo.GetMessages"

	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, messagesdomain.ErrConversationIsEmpty)
	}

	endpoint, err := Endpoint(r.server.BaseURL, r.server.MessagesPath, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, messagesdomain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, messagesdomain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, appError(resp.StatusCode, body))
	}

	var msgs []messagesdomain.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, messagesdomain.ErrMalformedResponse, err)
	}

	return msgs, nil
}

func (r *Repo) SendMessage(ctx context.Context, in messagesdomain.SendRequest) (*messagesdomain.Message, error) {
	const op = "messagesrepo.SendMessage"

	endpoint, err := Endpoint(r.server.BaseURL, r.server.SendMessagePath, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payload, contentType, err := EncodeSendForm(in)
	if err != nil {
		return nil, fmt.Errorf("%s: encode form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if r.csrfToken != "" {
		req.Header.Set(csrfHeader, r.csrfToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, messagesdomain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, messagesdomain.ErrTransport, err)
	}

	var envelope struct {
		messagesdomain.Message
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, messagesdomain.ErrMalformedResponse, err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if !ok || envelope.Error != nil {
		msg := messagesdomain.UnknownErrorMessage
		if envelope.Error != nil && *envelope.Error != "" {
			msg = *envelope.Error
		}
		return nil, fmt.Errorf("%s: %w", op, &messagesdomain.AppError{Status: resp.StatusCode, Message: msg})
	}

	if envelope.ID == 0 {
		return nil, fmt.Errorf("%s: %w: missing message id", op, messagesdomain.ErrMalformedResponse)
	}

	msg := envelope.Message
	return &msg, nil
}

// EncodeSendForm builds the multipart body of a send-message request.
func EncodeSendForm(in messagesdomain.SendRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("receiver", in.Receiver); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("content", in.Content); err != nil {
		return nil, "", err
	}
	if in.ReplyTo != nil {
		if err := w.WriteField("reply_to", strconv.FormatInt(*in.ReplyTo, 10)); err != nil {
			return nil, "", err
		}
	}
	if field := in.File.Field(); field != "" {
		if err := writeFile(w, field, in.File); err != nil {
			return nil, "", err
		}
	}
	if in.Voice != nil {
		if err := writeFile(w, uploads.FieldVoiceNote, in.Voice); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, field string, f *uploads.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Filename)))
	h.Set("Content-Type", f.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}

func appError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := messagesdomain.UnknownErrorMessage
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &messagesdomain.AppError{Status: status, Message: msg}
}

// Endpoint joins base and path, substituting {username}.
func Endpoint(base, path, username string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	path = strings.ReplaceAll(path, "{username}", url.PathEscape(username))
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	return u.ResolveReference(ref).String(), nil
}
