package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

// reply acknowledges or rejects a subscription request.
type reply struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type Handler struct {
	hub      *Hub
	authz    *Authorizer
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler builds the WebSocket endpoint. allowedOrigins empty means any
// origin is accepted.
func NewHandler(hub *Hub, authz *Authorizer, allowedOrigins []string, logger zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:   hub,
		authz: authz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
		logger: logger,
	}
}

// RegisterRoutes mounts GET /realtime on a group that already runs JWT
// middleware with query tokens enabled.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/realtime", h.Connect)
}

func (h *Handler) Connect(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.NewString(), id.UserID.String(), 64)
	h.hub.Register(client)

	subj := Subject{UserID: id.UserID, Admin: id.IsAdmin()}
	go h.writePump(client, ws)
	go h.readPump(client, subj, ws)
	return nil
}

func (h *Handler) readPump(client *Client, subj Subject, ws *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(client, reply{Type: "error", Error: "malformed message"})
			continue
		}
		h.process(client, subj, msg)
	}
}

func (h *Handler) process(client *Client, subj Subject, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		// The read pump has no request context; subscriptions are resolved
		// against a short-lived one.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		allowed, err := h.authz.Allowed(ctx, subj, msg.Topics)
		if len(allowed) > 0 {
			h.hub.Subscribe(client, allowed)
			h.send(client, reply{Type: "subscribed", Topics: allowed})
		}
		if err != nil {
			h.send(client, reply{Type: "error", Error: err.Error()})
		}
	case "unsubscribe":
		h.hub.Unsubscribe(client, msg.Topics)
		h.send(client, reply{Type: "unsubscribed", Topics: msg.Topics})
	default:
		h.send(client, reply{Type: "error", Error: "unknown action"})
	}
}

func (h *Handler) send(client *Client, r reply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("realtime write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
