package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-relay/broker"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/gorilla/websocket"
)

// Options carries the connection tuning knobs, all sourced from config.
type Options struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// controlFrame is what the client sends: subscribe/unsubscribe per kind.
type controlFrame struct {
	Action string `json:"action"`
	Kind   string `json:"kind"`
}

// eventFrame is what the client receives. Created and edited carry the full
// snapshot; deleted carries the id only.
type eventFrame struct {
	Kind    event.Kind      `json:"kind"`
	Message *domain.Message `json:"message,omitempty"`
	ID      string          `json:"id,omitempty"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// Client is one subscriber connection. It owns a single ChannelSink that the
// broker feeds; the write pump drains it in FIFO order. Handles are tracked
// per kind so a disconnect revokes every registration idempotently.
type Client struct {
	principal domain.Principal
	conn      *websocket.Conn
	sink      *broker.ChannelSink
	broker    contract.IBroker
	log       *slog.Logger
	opts      Options

	// errs routes error frames through the write pump; the socket has a
	// single writer.
	errs chan string

	mu      sync.Mutex
	handles map[event.Kind]contract.Handle
}

func NewClient(log *slog.Logger, b contract.IBroker, principal domain.Principal,
	conn *websocket.Conn, sink *broker.ChannelSink, opts Options) *Client {
	return &Client{
		principal: principal,
		conn:      conn,
		sink:      sink,
		broker:    b,
		log:       log,
		opts:      opts,
		errs:      make(chan string, 4),
		handles:   make(map[event.Kind]contract.Handle),
	}
}

// ReadPump consumes control frames until the connection dies, then tears
// everything down: close the sink (in-flight deliveries fail silently and
// get pruned), revoke all handles, close the socket.
func (c *Client) ReadPump() {
	defer func() {
		c.teardown()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read failed", "user_id", c.principal.UserID, "error", err)
			}
			return
		}
		c.handleControl(payload)
	}
}

func (c *Client) handleControl(payload []byte) {
	var frame controlFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.sendError("invalid frame")
		return
	}
	kind, ok := event.ParseKind(frame.Kind)
	if !ok {
		c.sendError("unknown event kind: " + frame.Kind)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch frame.Action {
	case "subscribe":
		if _, subscribed := c.handles[kind]; subscribed {
			return
		}
		c.handles[kind] = c.broker.Subscribe(kind, c.sink)
	case "unsubscribe":
		if handle, subscribed := c.handles[kind]; subscribed {
			c.broker.Unsubscribe(handle)
			delete(c.handles, kind)
		}
	default:
		c.sendError("unknown action: " + frame.Action)
	}
}

// WritePump pushes events and pings. Write errors end the pump; the read
// pump notices the dead connection and runs the teardown.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.sink.Events:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteJSON(toEventFrame(e)); err != nil {
				c.log.Debug("websocket write failed", "user_id", c.principal.UserID, "error", err)
				return
			}
		case reason := <-c.errs:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteJSON(errorFrame{Error: reason}); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toEventFrame(e event.ChangeEvent) eventFrame {
	switch evt := e.(type) {
	case event.MessageCreated:
		return eventFrame{Kind: evt.Kind(), Message: &evt.Message}
	case event.MessageEdited:
		return eventFrame{Kind: evt.Kind(), Message: &evt.Message}
	default:
		return eventFrame{Kind: e.Kind(), ID: e.MessageID().String()}
	}
}

func (c *Client) sendError(reason string) {
	select {
	case c.errs <- reason:
	default:
	}
}

func (c *Client) teardown() {
	c.sink.Close()

	c.mu.Lock()
	for kind, handle := range c.handles {
		c.broker.Unsubscribe(handle)
		delete(c.handles, kind)
	}
	c.mu.Unlock()

	_ = c.conn.Close()
	c.log.Debug("client disconnected", "user_id", c.principal.UserID)
}
