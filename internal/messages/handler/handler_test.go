package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/trimer-client/internal/messages"
	messagesservice "github.com/kgellert/trimer-client/internal/messages/service"
	"github.com/kgellert/trimer-client/internal/ws/wstest"
)

type fakeRepo struct {
	mu   sync.Mutex
	msgs []messages.Message
	sent []messages.SendRequest
	err  error
}

func (f *fakeRepo) GetMessages(context.Context, string) ([]messages.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messages.Message(nil), f.msgs...), nil
}

func (f *fakeRepo) SendMessage(_ context.Context, req messages.SendRequest) (*messages.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &messages.Message{ID: 100 + int64(len(f.sent)), Sender: "alice", Receiver: req.Receiver, Content: req.Content}, nil
}

func (f *fakeRepo) sends() []messages.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messages.SendRequest(nil), f.sent...)
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

type fakeMic struct{}

func (fakeMic) Open(context.Context) (io.ReadCloser, error) {
	return nopCloser{bytes.NewReader([]byte("webm"))}, nil
}

func setup(t *testing.T) (http.Handler, *messagesservice.Registry, *fakeRepo) {
	t.Helper()

	repo := &fakeRepo{msgs: []messages.Message{
		{ID: 1, Sender: "bob", Content: "hello"},
		{ID: 2, Sender: "system", Content: "joined", IsSystemMessage: true},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := messagesservice.NewRegistry(context.Background(), log, repo, &wstest.Recorder{}, nil, fakeMic{}, nil, messagesservice.Options{
		CurrentUser:  "alice",
		ServerURL:    "http://chat.local",
		PollInterval: time.Hour,
		SuccessFor:   time.Millisecond,
	})
	t.Cleanup(reg.Close)

	win, err := reg.Window("bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return win.Session.Conversation.Scrolls() >= 1 }, time.Second, time.Millisecond)

	h := New(reg, log)
	r := chi.NewRouter()
	r.Route("/chat/{username}", func(r chi.Router) {
		r.Get("/view", h.GetView())
		r.Post("/messages", h.SendMessage())
		r.Post("/attachment", h.SelectAttachment())
		r.Delete("/attachment", h.RemoveAttachment())
		r.Post("/reply/{messageId}", h.BeginReply())
		r.Delete("/reply", h.DismissReply())
		r.Post("/record", h.ToggleRecord())
		r.Post("/refresh", h.Refresh())
	})

	return r, reg, repo
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func form(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func upload(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGetView(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/chat/bob/view", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "chat:bob", resp.Room)
	assert.Equal(t, []int64{1, 2}, resp.MessageIDs)
	assert.Equal(t, int64(2), resp.LastMessageID)
	assert.Contains(t, resp.HTML, "hello")
	assert.False(t, resp.Reply.Visible)
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name     string
		values   url.Values
		wantSent int
		wantText string
	}{
		{name: "content field", values: url.Values{"content": {"hi there"}}, wantSent: 1, wantText: "hi there"},
		{name: "nothing to send", values: url.Values{"content": {""}}, wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, repo := setup(t)

			rec := do(t, h, form(http.MethodPost, "/chat/bob/messages", tt.values))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			sent := repo.sends()
			require.Len(t, sent, tt.wantSent)
			if tt.wantSent > 0 {
				assert.Equal(t, tt.wantText, sent[0].Content)
				assert.Equal(t, "bob", sent[0].Receiver)
			}
		})
	}
}

func TestSendMessage_ServerError(t *testing.T) {
	h, _, repo := setup(t)
	repo.err = &messages.AppError{Status: http.StatusBadRequest, Message: "blocked"}

	rec := do(t, h, form(http.MethodPost, "/chat/bob/messages", url.Values{"content": {"hi"}}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "blocked")
}

func TestAttachment(t *testing.T) {
	h, reg, repo := setup(t)
	win, err := reg.Window("bob")
	require.NoError(t, err)

	rec := do(t, h, upload(t, "/chat/bob/attachment", "cat.png", "image/png", []byte("png")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp attachmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cat.png", resp.Filename)
	assert.Equal(t, "image", resp.Field)
	require.NotNil(t, win.Session.SelectedFile())

	rec = do(t, h, form(http.MethodPost, "/chat/bob/messages", url.Values{}))
	require.Equal(t, http.StatusOK, rec.Code)
	sent := repo.sends()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].File)
	assert.Equal(t, "cat.png", sent[0].File.Filename)
	assert.Nil(t, win.Session.SelectedFile())
}

func TestAttachment_Rejected(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(t, h, upload(t, "/chat/bob/attachment", "notes.txt", "text/plain", []byte("hi")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachment_Remove(t *testing.T) {
	h, reg, _ := setup(t)
	win, err := reg.Window("bob")
	require.NoError(t, err)

	rec := do(t, h, upload(t, "/chat/bob/attachment", "clip.mp4", "video/mp4", []byte("mp4")))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/chat/bob/attachment", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, win.Session.SelectedFile())
}

func TestReply(t *testing.T) {
	h, reg, repo := setup(t)
	win, err := reg.Window("bob")
	require.NoError(t, err)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/reply/1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "hello")

	rec = do(t, h, form(http.MethodPost, "/chat/bob/messages", url.Values{"content": {"answer"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	sent := repo.sends()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].ReplyTo)
	assert.Equal(t, int64(1), *sent[0].ReplyTo)

	_, ok := win.Session.Reply.Current()
	assert.False(t, ok)
}

func TestReply_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "bad id", target: "/chat/bob/reply/abc", wantStatus: http.StatusBadRequest},
		{name: "unknown message", target: "/chat/bob/reply/42", wantStatus: http.StatusNotFound},
		{name: "system message", target: "/chat/bob/reply/2", wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := setup(t)
			rec := do(t, h, httptest.NewRequest(http.MethodPost, tt.target, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestReply_SystemMessageKeepsDraft(t *testing.T) {
	h, reg, _ := setup(t)
	win, err := reg.Window("bob")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/reply/1", nil)).Code)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/reply/2", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hello")

	d, ok := win.Session.Reply.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), d.TargetID)
}

func TestReply_Dismiss(t *testing.T) {
	h, reg, _ := setup(t)
	win, err := reg.Window("bob")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/reply/1", nil)).Code)

	rec := do(t, h, httptest.NewRequest(http.MethodDelete, "/chat/bob/reply", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := win.Session.Reply.Current()
	assert.False(t, ok)
}

func TestToggleRecord(t *testing.T) {
	h, _, repo := setup(t)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/record", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"recording":true}`, rec.Body.String())

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/record", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"recording":false}`, rec.Body.String())

	sent := repo.sends()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Voice)
	assert.Equal(t, "audio/webm", sent[0].Voice.ContentType)
}

func TestToggleRecord_WithAttachment(t *testing.T) {
	h, _, _ := setup(t)

	require.Equal(t, http.StatusCreated, do(t, h, upload(t, "/chat/bob/attachment", "cat.png", "image/png", []byte("png"))).Code)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/record", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh(t *testing.T) {
	h, _, repo := setup(t)

	repo.mu.Lock()
	repo.msgs = append(repo.msgs, messages.Message{ID: 7, Sender: "bob", Content: "later"})
	repo.mu.Unlock()

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/chat/bob/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"last_message_id":7}`, rec.Body.String())
}

func TestSendMessage_InvalidForm(t *testing.T) {
	h, _, repo := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/chat/bob/messages", strings.NewReader("content=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_form")
	assert.Empty(t, repo.sends())
}
