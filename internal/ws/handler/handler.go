package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/metrics"
	"github.com/kgellert/trimer-client/internal/ws"
	"github.com/kgellert/trimer-client/internal/ws/hub"
)

const (
	readWait        = 60 * time.Second
	OrientationMode = "portrait"
)

// Router applies page actions to the chat state.
type Router interface {
	// Snapshot returns the events that bring a freshly subscribed page up to
	// date with room.
	Snapshot(ctx context.Context, room string) []ws.ServerEvent
	Handle(ctx context.Context, msg ws.ClientMsg) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func WSHandler(h *hub.Hub, router Router, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.handler.WSHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer conn.Close()

		hc := hub.NewConnection(conn)
		log = log.With(slog.String("conn_id", hc.ID()))
		go hc.WritePump()

		h.Register(hc)
		defer h.Unregister(hc)

		metrics.WSConnections.Inc()
		defer metrics.WSConnections.Dec()

		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			return nil
		})

		sendDirect(log, hc, ws.Hello, map[string]any{"ok": true})
		sendDirect(log, hc, ws.OrientationLock, ws.OrientationLockPayload{Mode: OrientationMode})

		ctx := r.Context()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error("ws read error", sl.Err(err))
				}
				return
			}

			var msg ws.ClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error("ws bad json", sl.Err(err))
				continue
			}

			switch msg.Type {
			case ws.ActionSubscribe:
				h.Subscribe(hc, msg.Rooms)
				for _, room := range msg.Rooms {
					for _, evt := range router.Snapshot(ctx, room) {
						if err := hc.SendEvent(evt); err != nil {
							log.Error("failed to send snapshot", sl.Err(err))
						}
					}
				}
			case ws.ActionResize:
				sendDirect(log, hc, ws.OrientationLock, ws.OrientationLockPayload{Mode: OrientationMode})
			case ws.ActionOrientationFailed:
				log.Info("orientation lock failed", slog.String("reason", msg.Error))
			default:
				if err := router.Handle(ctx, msg); err != nil {
					log.Warn("ws action failed", slog.String("action", msg.Type), sl.Err(err))
				}
			}
		}
	}
}

func sendDirect(log *slog.Logger, hc *hub.Connection, t ws.EventType, payload any) {
	evt, err := ws.NewEvent("", t, payload)
	if err != nil {
		log.Error("failed to encode event", sl.Err(err))
		return
	}
	if err := hc.SendEvent(evt); err != nil {
		log.Error("failed to send event", sl.Err(err))
	}
}
