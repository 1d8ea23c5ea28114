package othelloclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var ErrNotConnected = errors.New("session not connected")

type EventCallback func(ev othellodto.Event)

type StateCallback func(state State)

// HeaderProvider injects headers into the WebSocket handshake.
type HeaderProvider func() map[string]string

type eventCallbackEntry struct {
	id       int
	callback EventCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// link is one dialled connection; done closes when it is dropped.
type link struct {
	conn *websocket.Conn
	done chan struct{}
}

// Session is a WebSocket client that re-dials after a transport drop and replays the last
// room binding, so a seated player gets its seat back under a fresh identity.
type Session struct {
	wsURL string

	linkM  sync.Mutex
	cur    *link
	writeM sync.Mutex

	state  State
	stateM sync.RWMutex

	evCbs    []eventCallbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	resumeM     sync.Mutex
	resume      othellodto.Command
	pendingName string

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration
	headerProvider       HeaderProvider

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type SessionOption func(*Session)

// WithReconnect sets how many re-dial attempts follow a drop and the base backoff.
// Zero attempts disables re-dialling.
func WithReconnect(maxAttempts int, delay time.Duration) SessionOption {
	return func(s *Session) {
		s.maxReconnectAttempts = maxAttempts
		s.reconnectDelay = delay
	}
}

func WithPingInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.pingInterval = d }
}

func WithHeaderProvider(h HeaderProvider) SessionOption {
	return func(s *Session) { s.headerProvider = h }
}

func NewSession(wsURL string, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: 5,
		reconnectDelay:       200 * time.Millisecond,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Connect(ctx context.Context) error {
	switch s.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	s.setState(StateConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateFailed)
		return err
	}
	s.attach(conn)
	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	return conn, err
}

func (s *Session) attach(conn *websocket.Conn) {
	l := &link{conn: conn, done: make(chan struct{})}
	s.linkM.Lock()
	s.cur = l
	s.linkM.Unlock()
	s.setState(StateConnected)

	s.wg.Add(2)
	go s.listen(l)
	go s.pingLoop(l)
}

// Send encodes cmd and writes it on the current connection.
func (s *Session) Send(ctx context.Context, cmd othellodto.Command) error {
	raw, err := othellodto.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	s.linkM.Lock()
	l := s.cur
	s.linkM.Unlock()
	if l == nil {
		return ErrNotConnected
	}
	s.track(cmd)
	s.writeM.Lock()
	defer s.writeM.Unlock()
	return l.conn.Write(ctx, websocket.MessageText, raw)
}

// track remembers which command restores the current room binding after a re-dial.
func (s *Session) track(cmd othellodto.Command) {
	s.resumeM.Lock()
	defer s.resumeM.Unlock()
	switch m := cmd.(type) {
	case othellodto.CreateRoom:
		s.resume = nil
		s.pendingName = strings.TrimSpace(m.Name)
	case othellodto.JoinRoom:
		if m.Spectate {
			s.resume = m
		} else {
			s.resume = othellodto.Reconnect{RoomID: m.RoomID, Name: m.Name}
		}
	case othellodto.Reconnect:
		s.resume = m
	case othellodto.LeaveRoom:
		s.resume = nil
	}
}

func (s *Session) observe(ev othellodto.Event) {
	s.resumeM.Lock()
	defer s.resumeM.Unlock()
	switch e := ev.(type) {
	case othellodto.RoomCreated:
		if s.pendingName != "" {
			s.resume = othellodto.Reconnect{RoomID: e.RoomID, Name: s.pendingName}
			s.pendingName = ""
		}
	case othellodto.ErrorEvent:
		switch e.Code {
		case othellodto.CodeRoomNotFound, othellodto.CodeRoomFull, othellodto.CodeReconnectFailed, othellodto.CodeDuplicateActiveName:
			s.resume = nil
		}
	}
}

// Resume returns the command replayed after a re-dial, or nil.
func (s *Session) Resume() othellodto.Command {
	s.resumeM.Lock()
	defer s.resumeM.Unlock()
	return s.resume
}

func (s *Session) listen(l *link) {
	defer s.wg.Done()
	for {
		_, raw, err := l.conn.Read(s.rootCtx)
		if err != nil {
			if s.isStopping() {
				return
			}
			if s.drop(l, websocket.StatusGoingAway, "reconnect") {
				s.scheduleReconnect()
			}
			return
		}
		ev, err := othellodto.DecodeEvent(raw)
		if err != nil {
			obslog.L().Warn("client_decode_error", zap.Error(err))
			continue
		}
		s.observe(ev)

		s.cbM.RLock()
		callbacks := make([]eventCallbackEntry, len(s.evCbs))
		copy(callbacks, s.evCbs)
		s.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(ev)
			}
		}
	}
}

func (s *Session) pingLoop(l *link) {
	defer s.wg.Done()
	if s.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-l.done:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := l.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if !s.isStopping() && s.drop(l, websocket.StatusGoingAway, "ping failure") {
					s.scheduleReconnect()
				}
				return
			}
		}
	}
}

// drop retires l if it is still current. Only the caller that retires it re-dials.
func (s *Session) drop(l *link, code websocket.StatusCode, reason string) bool {
	s.linkM.Lock()
	if s.cur != l {
		s.linkM.Unlock()
		return false
	}
	s.cur = nil
	close(l.done)
	s.linkM.Unlock()
	_ = l.conn.Close(code, reason)
	s.setState(StateDisconnected)
	return true
}

func (s *Session) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		s.setState(StateFailed)
		return
	}
	s.setState(StateReconnecting)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(backoffDuration(attempt, s.reconnectDelay)):
			}
			conn, err := s.dial(s.rootCtx)
			if err != nil {
				obslog.L().Debug("client_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			s.attach(conn)
			s.replay()
			return
		}
		s.setState(StateFailed)
	}()
}

func (s *Session) replay() {
	cmd := s.Resume()
	if cmd == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.rootCtx, 5*time.Second)
	defer cancel()
	if err := s.Send(ctx, cmd); err != nil {
		obslog.L().Warn("client_resume_failed", zap.String("type", string(cmd.CommandType())), zap.Error(err))
		return
	}
	obslog.L().Info("client_resumed", zap.String("type", string(cmd.CommandType())))
}

func (s *Session) OnEvent(cb EventCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.evCbs = append(s.evCbs, eventCallbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

func (s *Session) RemoveEventCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.evCbs {
		if cb.id == id {
			s.evCbs = append(s.evCbs[:i], s.evCbs[i+1:]...)
			break
		}
	}
}

func (s *Session) OnStateChange(cb StateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.stateCbs = append(s.stateCbs, stateCallbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

func (s *Session) RemoveStateCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.stateCbs {
		if cb.id == id {
			s.stateCbs = append(s.stateCbs[:i], s.stateCbs[i+1:]...)
			break
		}
	}
}

func (s *Session) State() State {
	s.stateM.RLock()
	defer s.stateM.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateM.Lock()
	s.state = state
	s.stateM.Unlock()

	s.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(s.stateCbs))
	copy(callbacks, s.stateCbs)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close stops re-dialling, closes the connection and waits for background goroutines.
func (s *Session) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.linkM.Lock()
	l := s.cur
	s.cur = nil
	if l != nil {
		close(l.done)
	}
	s.linkM.Unlock()
	if l != nil {
		_ = l.conn.Close(websocket.StatusNormalClosure, "close")
	}
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.setState(StateDisconnected)
		return nil
	}
}

func (s *Session) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Session) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headerProvider == nil {
		return hdr
	}
	for k, v := range s.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
