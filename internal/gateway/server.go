package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Othello/internal/msgcat"
	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/internal/room"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

const (
	defaultSendQueue    = 64
	defaultPingInterval = 25 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultReadLimit    = 4096
)

type Options struct {
	SendQueueSize int
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	ReadLimit     int64
	AllowOrigins  []string

	// SpectateWhenFull turns a player join on a full room into a spectator join.
	SpectateWhenFull bool
}

// Server upgrades HTTP requests to WebSocket sessions and dispatches their commands to the
// registry. Outbound traffic reaches clients through the Hub.
type Server struct {
	hub  *Hub
	reg  *room.Registry
	cat  *msgcat.Catalog
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewServer(hub *Hub, reg *room.Registry, cat *msgcat.Catalog, opts Options) *Server {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaultSendQueue
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{hub: hub, reg: reg, cat: cat, opts: opts, ctx: ctx, cancel: cancel}
}

// MoveText renders invalid_move messages from the catalog. Pass it as room.Options.MoveText.
func MoveText(cat *msgcat.Catalog) func(*room.MoveError) string {
	return func(e *room.MoveError) string {
		data := map[string]any{"Row": e.Coord.Row, "Col": e.Coord.Col}
		return cat.Text("invalid_move."+e.Reason(), data, e.Error())
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.opts.AllowOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(s.opts.ReadLimit)

	c := newConn(uuid.NewString(), ws, s.opts.SendQueueSize)
	s.hub.add(c)
	obslog.L().Info("ws_connected", zap.String("identity", c.id), zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go c.writeLoop(ctx, s.opts.WriteTimeout)
	go c.pingLoop(ctx, s.opts.PingInterval)

	s.readLoop(ctx, c)

	c.kill(websocket.StatusNormalClosure, "")
	s.hub.remove(c.id)
	if id := c.boundRoom(); id != "" {
		if _, err := s.reg.Disconnect(id, c.id); err != nil && !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrNotInRoom) {
			obslog.L().Warn("ws_disconnect_error", zap.String("identity", c.id), zap.String("room_id", id), zap.Error(err))
		}
	}
	obslog.L().Info("ws_closed", zap.String("identity", c.id))
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !c.isClosed() && ctx.Err() == nil {
				obslog.L().Debug("ws_read_error", zap.String("identity", c.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.sendError(c, othellodto.CodeBadRequest, map[string]any{"Detail": "binary frames are not supported"}, "binary frames are not supported")
			continue
		}
		cmd, err := othellodto.DecodeCommand(data)
		if err != nil {
			s.sendError(c, othellodto.CodeBadRequest, map[string]any{"Detail": err.Error()}, err.Error())
			continue
		}
		s.dispatch(c, cmd)
	}
}

func (s *Server) dispatch(c *conn, cmd othellodto.Command) {
	switch m := cmd.(type) {
	case othellodto.CreateRoom:
		rm, err := s.reg.Create(c.id, m.Name)
		if err != nil {
			s.fail(c, err, "", m.Name)
			return
		}
		s.rebind(c, rm.ID())
	case othellodto.JoinRoom:
		id := room.NormalizeID(m.RoomID)
		_, _, err := s.reg.Join(id, c.id, m.Name, m.Spectate)
		if errors.Is(err, room.ErrRoomFull) && s.opts.SpectateWhenFull {
			_, _, err = s.reg.Join(id, c.id, m.Name, true)
		}
		if err != nil {
			s.fail(c, err, id, m.Name)
			return
		}
		s.rebind(c, id)
	case othellodto.Reconnect:
		id := room.NormalizeID(m.RoomID)
		if _, _, err := s.reg.Reconnect(id, c.id, m.Name); err != nil {
			s.fail(c, err, id, m.Name)
			return
		}
		s.rebind(c, id)
	case othellodto.MakeMove:
		id := room.NormalizeID(m.RoomID)
		_, err := s.reg.MakeMove(id, c.id, othello.Coord{Row: m.Row, Col: m.Col})
		var merr *room.MoveError
		if err != nil && !errors.As(err, &merr) {
			s.fail(c, err, id, "")
		}
	case othellodto.ResetGame:
		id := room.NormalizeID(m.RoomID)
		if _, err := s.reg.Reset(id, c.id); err != nil {
			s.fail(c, err, id, "")
		}
	case othellodto.LeaveRoom:
		id := room.NormalizeID(m.RoomID)
		if _, err := s.reg.Leave(id, c.id); err != nil {
			s.fail(c, err, id, "")
			return
		}
		if c.boundRoom() == id {
			c.bind("")
		}
	case othellodto.UpdateMarker:
		id := c.boundRoom()
		if id == "" {
			s.fail(c, room.ErrNotInRoom, "", "")
			return
		}
		if err := s.reg.UpdateMarker(id, c.id, m.Emoji); err != nil {
			s.fail(c, err, id, "")
		}
	default:
		s.sendError(c, othellodto.CodeBadRequest, map[string]any{"Detail": "unsupported command"}, "unsupported command")
	}
}

// rebind moves the connection to next once the command that admitted it there has succeeded.
// A connection belongs to at most one room, so the previous room is left first.
func (s *Server) rebind(c *conn, next string) {
	cur := c.boundRoom()
	if cur != "" && cur != next {
		if _, err := s.reg.Leave(cur, c.id); err != nil && !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrNotInRoom) {
			obslog.L().Warn("ws_release_error", zap.String("identity", c.id), zap.String("room_id", cur), zap.Error(err))
		}
	}
	c.bind(next)
}

func (s *Server) fail(c *conn, err error, roomID, name string) {
	code := room.ErrorCode(err)
	if code == othellodto.CodeInternal {
		obslog.L().Error("ws_command_error", zap.String("identity", c.id), zap.String("room_id", roomID), zap.Error(err))
	}
	data := map[string]any{"RoomID": roomID, "Name": strings.TrimSpace(name), "Detail": err.Error()}
	s.sendError(c, code, data, err.Error())
}

func (s *Server) sendError(c *conn, code string, data map[string]any, fallback string) {
	msg := s.cat.Text("errors."+code, data, fallback)
	s.hub.send(c.id, othellodto.ErrorEvent{Code: code, Message: msg})
}

// Close drops every session and waits for their handlers to return. Upgrades arriving
// afterwards get 503.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.hub.mu.RLock()
	for _, c := range s.hub.conns {
		c.kill(websocket.StatusGoingAway, "server shutdown")
	}
	s.hub.mu.RUnlock()
	s.wg.Wait()
}
