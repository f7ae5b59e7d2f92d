package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/messages"
	messagesservice "github.com/kgellert/trimer-client/internal/messages/service"
	renderer "github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/reply"
	"github.com/kgellert/trimer-client/internal/transport/httpapi"
	"github.com/kgellert/trimer-client/internal/uploads"
)

const (
	maxUploadSize = 64 << 20
	fileField     = "file"
	contentField  = "content"
)

// Windows resolves the open conversation for a username.
type Windows interface {
	Window(username string) (*messagesservice.Window, error)
}

type Handler struct {
	windows Windows
	log     *slog.Logger
}

func New(windows Windows, log *slog.Logger) *Handler {
	return &Handler{windows: windows, log: log}
}

type viewResponse struct {
	Room          string       `json:"room"`
	HTML          string       `json:"html"`
	MessageIDs    []int64      `json:"message_ids"`
	LastMessageID int64        `json:"last_message_id"`
	Reply         reply.Banner `json:"reply"`
}

type sendResponse struct {
	LastMessageID int64 `json:"last_message_id"`
}

type attachmentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Field       string `json:"field"`
}

type recordResponse struct {
	Recording bool `json:"recording"`
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*messagesservice.Window, bool) {
	win, err := h.windows.Window(chi.URLParam(r, "username"))
	if err != nil {
		log.Error("failed to open conversation", sl.Err(err))
		httpapi.WriteError(w, r, err)
		return nil, false
	}
	return win, true
}

func (h *Handler) GetView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.GetView"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}
		sess := win.Session

		markup, err := sess.Conversation.HTML()
		if err != nil {
			log.Error("failed to render view", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		var banner reply.Banner
		if d, ok := sess.Reply.Current(); ok {
			banner = d.Banner()
		}

		render.JSON(w, r, viewResponse{
			Room:          sess.Room(),
			HTML:          markup,
			MessageIDs:    sess.Conversation.IDs(),
			LastMessageID: sess.LastMessageID(),
			Reply:         banner,
		})
	}
}

// SendMessage posts the draft. A content form field replaces the text typed
// into the page.
func (h *Handler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.SendMessage"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		if err := r.ParseForm(); err != nil {
			log.Error("failed to parse form", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %w", messages.ErrInvalidForm, err))
			return
		}

		var text *string
		if _, set := r.PostForm[contentField]; set {
			v := r.PostForm.Get(contentField)
			text = &v
		}

		// The send outlives a closed page request like a fetch would.
		if err := win.Dispatch.Send(context.WithoutCancel(r.Context()), text, nil); err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, sendResponse{LastMessageID: win.Session.LastMessageID()})
	}
}

func (h *Handler) SelectAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.SelectAttachment"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		src, header, err := r.FormFile(fileField)
		if err != nil {
			log.Error("failed to read file", sl.Err(err))
			httpapi.WriteError(w, r, uploads.ErrEmptyFile)
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			log.Error("failed to read file", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		f, err := uploads.NewFile(header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			log.Warn("file rejected", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		if err := win.Session.Select(f); err != nil {
			log.Warn("file not selected", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		log.Info("file selected", slog.String("id", f.ID), slog.String("content_type", f.ContentType))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, attachmentResponse{
			ID:          f.ID,
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Field:       f.Field(),
		})
	}
}

func (h *Handler) RemoveAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.RemoveAttachment"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		win.Session.ClearSelection()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) BeginReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.BeginReply"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
		if err != nil || id <= 0 {
			log.Error("invalid message id", slog.String("message_id", chi.URLParam(r, "messageId")))
			httpapi.WriteError(w, r, messages.ErrInvalidMessageID)
			return
		}

		opened, err := win.Click(id, renderer.TargetBody)
		if err != nil {
			log.Warn("reply not started", slog.Int64("message_id", id), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		if !opened {
			log.Info("message can not be replied to", slog.Int64("message_id", id))
			httpapi.WriteError(w, r, messages.ErrNotReplyable)
			return
		}

		d, ok := win.Session.Reply.Current()
		if !ok {
			httpapi.WriteError(w, r, messages.ErrMessageIsNotExist)
			return
		}

		render.JSON(w, r, d.Banner())
	}
}

func (h *Handler) DismissReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.DismissReply"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		win.Session.Reply.Dismiss()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleRecord starts a voice recording, or stops and sends the running one.
func (h *Handler) ToggleRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.ToggleRecord"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		if err := win.Capture.Toggle(context.WithoutCancel(r.Context())); err != nil {
			log.Warn("record toggle failed", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, recordResponse{Recording: win.Capture.Recording()})
	}
}

// Refresh polls the chat server now, joining a poll already in flight.
func (h *Handler) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.Refresh"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		win, ok := h.window(w, r, log)
		if !ok {
			return
		}

		if err := win.Poller.Refresh(r.Context()); err != nil {
			log.Warn("refresh failed", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, sendResponse{LastMessageID: win.Session.LastMessageID()})
	}
}
