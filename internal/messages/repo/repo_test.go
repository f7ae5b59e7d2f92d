package messagesrepo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kgellert/trimer-client/internal/config"
	messagesdomain "github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, h http.HandlerFunc) *Repo {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(srv.Client(), config.ServerConfig{
		BaseURL:         srv.URL,
		SendMessagePath: "/send-message/",
		MessagesPath:    "/chat/{username}/get-messages/",
	}, "csrf-token")
}

func TestRepo_GetMessages(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/friend/get-messages/", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id": 1, "sender": "friend", "content": "hi", "image_url": null, "is_read": true,
			 "timestamp": "2024-05-01 09:07:00", "reply_to": null},
			{"id": 2, "sender": "me", "content": null, "voice_note_url": "/media/v.webm",
			 "reply_to": {"id": 1, "sender": "friend", "content": "hi"}}
		]`)
	})

	msgs, err := repo.GetMessages(context.Background(), "friend")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, "", msgs[0].ImageURL)
	assert.True(t, msgs[0].IsRead)
	assert.Equal(t, "/media/v.webm", msgs[1].VoiceNoteURL)
	require.NotNil(t, msgs[1].ReplyTo)
	assert.Equal(t, "hi", msgs[1].ReplyTo.Content)
}

func TestRepo_GetMessages_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"not a friend"}`},
		{name: "not json", status: http.StatusOK, body: `<html></html>`, wantErr: messagesdomain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := repo.GetMessages(context.Background(), "friend")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var appErr *messagesdomain.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "not a friend", appErr.Message)
		})
	}
}

func TestRepo_GetMessages_Transport(t *testing.T) {
	repo := New(http.DefaultClient, config.ServerConfig{
		BaseURL:      "http://127.0.0.1:1",
		MessagesPath: "/chat/{username}/get-messages/",
	}, "")

	_, err := repo.GetMessages(context.Background(), "friend")
	assert.ErrorIs(t, err, messagesdomain.ErrTransport)
}

func TestRepo_SendMessage(t *testing.T) {
	replyTo := int64(7)
	image, err := uploads.NewFile("cat.png", "image/png", []byte("png"))
	require.NoError(t, err)

	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send-message/", r.URL.Path)
		assert.Equal(t, "csrf-token", r.Header.Get("X-CSRFToken"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "friend", r.FormValue("receiver"))
		assert.Equal(t, "hello", r.FormValue("content"))
		assert.Equal(t, "7", r.FormValue("reply_to"))

		if f, hdr, err := r.FormFile("image"); assert.NoError(t, err) {
			_ = f.Close()
			assert.Equal(t, "cat.png", hdr.Filename)
			assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		}

		_, _, err := r.FormFile("video")
		assert.ErrorIs(t, err, http.ErrMissingFile)

		if f, vh, err := r.FormFile("voice_note"); assert.NoError(t, err) {
			_ = f.Close()
			assert.Equal(t, uploads.VoiceNoteFilename, vh.Filename)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "sender": "me", "content": "hello"})
	})

	msg, err := repo.SendMessage(context.Background(), messagesdomain.SendRequest{
		Receiver: "friend",
		Content:  "hello",
		ReplyTo:  &replyTo,
		File:     image,
		Voice:    uploads.NewVoiceNote([]byte("webm")),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.ID)
}

func TestRepo_SendMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantErr error
	}{
		{name: "http failure with message", status: http.StatusBadRequest, body: `{"error":"لا يمكن إرسال رسالة فارغة"}`, wantMsg: "لا يمكن إرسال رسالة فارغة"},
		{name: "http failure without message", status: http.StatusInternalServerError, body: `{}`, wantMsg: messagesdomain.UnknownErrorMessage},
		{name: "success status with error body", status: http.StatusOK, body: `{"error":"blocked"}`, wantMsg: "blocked"},
		{name: "malformed", status: http.StatusOK, body: `oops`, wantErr: messagesdomain.ErrMalformedResponse},
		{name: "missing id", status: http.StatusOK, body: `{"sender":"me"}`, wantErr: messagesdomain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := repo.SendMessage(context.Background(), messagesdomain.SendRequest{Receiver: "friend", Content: "x"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.wantMsg, messagesdomain.UserMessage(err))
		})
	}
}

func TestEndpoint(t *testing.T) {
	got, err := Endpoint("http://chat.local/app/", "/chat/{username}/get-messages/", "سارة")
	require.NoError(t, err)
	assert.Equal(t, "http://chat.local/chat/%D8%B3%D8%A7%D8%B1%D8%A9/get-messages/", got)
}
