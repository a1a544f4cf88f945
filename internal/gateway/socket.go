package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var (
	ErrClosed       = errors.New("socket closed")
	ErrSlowConsumer = errors.New("send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The shop front end is served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is one JSON text message on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is a websocket connection. It implements presence.Conn.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int, log *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		log:  log.With(zap.String("conn_id", id)),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Emit queues one frame. A client whose queue is full is dropped rather
// than slowing down the broadcast.
func (c *Client) Emit(event string, data any) error {
	msg, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.Close()
		return ErrSlowConsumer
	}
}

// Close asks the write pump to send a close frame and drop the connection.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// ServeWS upgrades the request and runs the socket until it goes away.
// The token is read from the Authorization header, or from the token query
// parameter for browsers that cannot set headers on a websocket.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(ws, g.sendBuffer, g.log)
	go c.writePump()

	rawAuth := r.Header.Get("Authorization")
	if rawAuth == "" {
		rawAuth = r.URL.Query().Get("token")
	}
	if err := g.OnConnect(r.Context(), c, rawAuth); err != nil {
		return
	}
	c.readPump(g)
}

// readPump feeds inbound frames to the relay until the socket fails.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		c.Close()
		g.OnDisconnect(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		g.touch(c.id)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		switch f.Event {
		case EventMessageFromClient:
			var payload NewMessage
			if len(f.Data) > 0 {
				// A payload of the wrong shape is treated as an empty message.
				if err := json.Unmarshal(f.Data, &payload); err != nil {
					c.log.Debug("malformed chat payload", zap.Error(err))
				}
			}
			if err := g.relay.Handle(c.id, payload); err != nil {
				c.log.Error("relay failed", zap.Error(err))
			}
		default:
			c.log.Debug("unknown event", zap.String("event", f.Event))
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
