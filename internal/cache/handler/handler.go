package cachehandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgellert/trimer-client/internal/cache"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/transport/httpapi"
)

const (
	urlParam    = "url"
	cacheHeader = "X-Cache"
)

var forwarded = []string{
	"Content-Type",
	"Content-Language",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"Expires",
}

type Fetcher interface {
	Fetch(ctx context.Context, req cache.Request) (cache.Response, error)
}

type Handler struct {
	fetcher Fetcher
	log     *slog.Logger
}

func New(fetcher Fetcher, log *slog.Logger) *Handler {
	return &Handler{fetcher: fetcher, log: log}
}

// Asset serves /assets/?url=<absolute or server-relative url> and
// /assets/<server path> through the cache.
func (h *Handler) Asset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.cache.Asset"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		raw := r.URL.Query().Get(urlParam)
		if raw == "" {
			raw = "/" + chi.URLParam(r, "*")
		}

		resp, err := h.fetcher.Fetch(r.Context(), cache.Request{
			Method: r.Method,
			URL:    raw,
			Header: r.Header,
			Body:   r.Body,
		})
		if err != nil {
			log.Error("failed to fetch asset", slog.String("url", raw), sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		for _, k := range forwarded {
			if v := resp.Header.Get(k); v != "" {
				w.Header().Set(k, v)
			}
		}
		if resp.Cached {
			w.Header().Set(cacheHeader, "HIT")
		} else {
			w.Header().Set(cacheHeader, "MISS")
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
		w.WriteHeader(resp.Status)

		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(resp.Body); err != nil {
			log.Warn("failed to write asset", sl.Err(err))
		}
	}
}
