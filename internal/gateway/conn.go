package gateway

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Othello/internal/obslog"
	"go.uber.org/zap"
)

// conn is one client connection. All writes go through send and a single writer
// goroutine; enqueue never blocks.
type conn struct {
	id string
	ws *websocket.Conn

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	roomID string
}

func newConn(id string, ws *websocket.Conn, queue int) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, queue),
		closed: make(chan struct{}),
	}
}

// enqueue hands msg to the writer. A full queue means the client is not keeping up;
// the connection is dropped instead of stalling the room that produced msg.
func (c *conn) enqueue(msg []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		obslog.L().Warn("ws_send_overflow", zap.String("identity", c.id), zap.Int("queue", cap(c.send)))
		c.kill(websocket.StatusPolicyViolation, "send queue full")
		return false
	}
}

func (c *conn) kill(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.ws != nil {
			go func() { _ = c.ws.Close(code, reason) }()
		}
	})
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *conn) boundRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *conn) bind(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

func (c *conn) writeLoop(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := c.ws.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("identity", c.id), zap.Error(err))
				c.kill(websocket.StatusGoingAway, "write failed")
				return
			}
		}
	}
}

func (c *conn) pingLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				obslog.L().Info("ws_ping_timeout", zap.String("identity", c.id))
				c.kill(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
