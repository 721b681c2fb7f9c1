// Package websocket is the subscription transport: clients upgrade once,
// then subscribe to change-event kinds with control frames and receive
// pushed events until they disconnect.
package websocket

import (
	"log/slog"
	"net/http"

	"chat-relay/auth"
	"chat-relay/broker"
	"chat-relay/contract"
	"chat-relay/observability"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The deployment fronts this with its own origin policy.
		return true
	},
}

type Handler struct {
	broker  contract.IBroker
	monitor *observability.Monitor
	log     *slog.Logger
	opts    Options
}

func NewHandler(log *slog.Logger, b contract.IBroker, monitor *observability.Monitor, opts Options) *Handler {
	return &Handler{broker: b, monitor: monitor, log: log, opts: opts}
}

// Handle upgrades the connection and starts the pumps. The principal was
// verified by the auth middleware at establishment time; delivered events
// are not re-authorized per event.
func (h *Handler) Handle(c *gin.Context) {
	principal := auth.PrincipalFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sink := broker.NewChannelSink(h.log, h.monitor, h.opts.BufferSize)
	client := NewClient(h.log, h.broker, principal, conn, sink, h.opts)

	h.log.Debug("client connected", "user_id", principal.UserID)
	go client.WritePump()
	go client.ReadPump()
}
