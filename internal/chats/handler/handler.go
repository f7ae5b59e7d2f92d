package chatshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/trimer-client/internal/chats"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/transport/httpapi"
)

type Handler struct {
	sidebar *chats.Sidebar
	log     *slog.Logger
}

func New(sidebar *chats.Sidebar, log *slog.Logger) *Handler {
	return &Handler{sidebar: sidebar, log: log}
}

type chatItem struct {
	Name    string `json:"name"`
	New     bool   `json:"new"`
	Visible bool   `json:"visible"`
}

type chatListResponse struct {
	HTML  string     `json:"html"`
	Chats []chatItem `json:"chats"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Visible []string `json:"visible"`
}

func (h *Handler) list() (chatListResponse, error) {
	markup, err := h.sidebar.HTML()
	if err != nil {
		return chatListResponse{}, err
	}

	items := h.sidebar.Items()
	out := make([]chatItem, 0, len(items))
	for _, it := range items {
		out = append(out, chatItem{Name: it.Name, New: it.New, Visible: it.Visible})
	}

	return chatListResponse{HTML: markup, Chats: out}, nil
}

func (h *Handler) GetChatList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.GetChatList"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		resp, err := h.list()
		if err != nil {
			log.Error("failed to render chat list", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

// Search filters the chat list by the q query parameter. The filter sticks
// across refreshes until the next search.
func (h *Handler) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.Search"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		query := r.URL.Query().Get("q")

		visible, err := h.sidebar.Search(query)
		if err != nil {
			log.Error("failed to filter chat list", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		if visible == nil {
			visible = []string{}
		}

		render.JSON(w, r, searchResponse{Query: query, Visible: visible})
	}
}

func (h *Handler) MarkSeen() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.MarkSeen"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		name := chi.URLParam(r, "username")

		if err := h.sidebar.MarkSeen(name); err != nil {
			log.Warn("failed to mark chat as seen", slog.String("username", name), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
