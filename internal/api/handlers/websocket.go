package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Clients connect from arbitrary origins (mobile apps, dashboards).
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocketUpgrade upgrades the connection and subscribes it to the fan-out
// hub. The subscription filter comes from query parameters: property_id,
// from, to, types (comma-separated categories), include_conflicts.
func WebSocketUpgrade(hub *realtime.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := filterFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		sub := hub.Subscribe(filter)

		go writePump(conn, sub)
		go readPump(conn, sub, hub, log)
	}
}

func filterFromQuery(r *http.Request) (realtime.Filter, error) {
	q := r.URL.Query()
	filter := realtime.Filter{
		PropertyID:       q.Get("property_id"),
		IncludeConflicts: q.Get("include_conflicts") == "true",
	}

	if raw := q.Get("from"); raw != "" {
		t, _, err := projector.ParseFlexibleTime(raw)
		if err != nil {
			return filter, err
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, _, err := projector.ParseFlexibleTime(raw)
		if err != nil {
			return filter, err
		}
		filter.To = t
	}
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, t)
			}
		}
	}
	return filter, nil
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, sub *realtime.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection until it closes, then unsubscribes. Clients
// only send pongs; any other inbound frame gets an error message back.
func readPump(conn *websocket.Conn, sub *realtime.Subscriber, hub *realtime.Hub, log *zap.Logger) {
	defer func() {
		hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("websocket read error",
					zap.String("subscriber_id", sub.ID), zap.Error(err))
			}
			break
		}

		// The protocol is one-way; tell chatty clients so. Queued through the
		// hub so writePump stays the only writer on this connection.
		hub.SendError(sub, "unsupported",
			"inbound messages are not supported; reconnect with new query parameters to change the filter")
	}
}
