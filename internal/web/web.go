// Package web serves the page shell that the local browser tab loads.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	messagesservice "github.com/kgellert/trimer-client/internal/messages/service"
	"github.com/kgellert/trimer-client/internal/transport/httpapi"
)

//go:embed static
var files embed.FS

var page = template.Must(template.ParseFS(files, "static/index.html"))

type Windows interface {
	Window(username string) (*messagesservice.Window, error)
}

type pageData struct {
	CurrentUser string
	Username    string
}

type Handler struct {
	windows     Windows
	currentUser string
	log         *slog.Logger
}

func New(windows Windows, currentUser string, log *slog.Logger) *Handler {
	return &Handler{windows: windows, currentUser: currentUser, log: log}
}

// Index is the app shell with the chat list only.
func (h *Handler) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.web.Index"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		h.write(w, log, pageData{CurrentUser: h.currentUser})
	}
}

// Chat opens the conversation with username and serves its page.
func (h *Handler) Chat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.web.Chat"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		username := chi.URLParam(r, "username")
		if _, err := h.windows.Window(username); err != nil {
			log.Error("failed to open conversation", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		h.write(w, log, pageData{CurrentUser: h.currentUser, Username: username})
	}
}

func (h *Handler) write(w http.ResponseWriter, log *slog.Logger, data pageData) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		log.Error("failed to render page", sl.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// Static serves the page scripts and styles under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
