package room

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
	"go.uber.org/zap"
)

const (
	DefaultGraceWindow   = 30 * time.Second
	DefaultInactivityTTL = 2 * time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Options configures a Registry. Zero durations take the defaults; a negative
// SweepInterval disables the background sweep.
type Options struct {
	GraceWindow   time.Duration
	InactivityTTL time.Duration
	SweepInterval time.Duration
	CodeLength    int
	Notifier      Notifier
	Recorder      Recorder
	Now           func() time.Time

	// MoveText renders the human message attached to invalid_move. Defaults to the error text.
	MoveText func(*MoveError) string

	// CodeGen overrides room code generation.
	CodeGen func() (string, error)
}

type graceEntry struct {
	timer *time.Timer
	token uint64
}

// Registry owns every live room. Lock order is registry before room; rooms never call back
// into the registry.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	grace     map[string]*graceEntry
	nextToken uint64

	opts    Options
	codeGen func() (string, error)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewRegistry(opts Options) *Registry {
	if opts.GraceWindow == 0 {
		opts.GraceWindow = DefaultGraceWindow
	}
	if opts.InactivityTTL <= 0 {
		opts.InactivityTTL = DefaultInactivityTTL
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	r := &Registry{
		rooms:   make(map[string]*Room),
		grace:   make(map[string]*graceEntry),
		opts:    opts,
		codeGen: opts.CodeGen,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if r.codeGen == nil {
		r.codeGen = newCodeGen(opts.CodeLength)
	}
	if opts.SweepInterval > 0 {
		go r.sweepLoop(opts.SweepInterval)
	} else {
		close(r.done)
	}
	return r
}

// Create allocates a unique code and seats the host as Black. The code is checked against
// the map under the write lock, so uniqueness holds at creation time.
func (r *Registry) Create(identity, name string) (*Room, error) {
	identity, name = strings.TrimSpace(identity), strings.TrimSpace(name)
	if identity == "" || name == "" {
		return nil, ErrInvalidArgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := r.codeGen()
		if err != nil {
			return nil, err
		}
		code = NormalizeID(code)
		if _, taken := r.rooms[code]; taken || code == "" {
			continue
		}
		rm := newRoom(code, &Player{Identity: identity, Name: name}, r.opts.Now, r.opts.Notifier, r.opts.Recorder)
		rm.moveText = r.opts.MoveText
		r.rooms[code] = rm
		rm.mu.Lock()
		rm.notifier.Notify([]string{identity}, othellodto.RoomCreated{RoomID: code, State: rm.stateLocked()})
		rm.mu.Unlock()
		obslog.L().Info("room_create", zap.String("room_id", code), zap.String("host", name), zap.String("identity", identity))
		return rm, nil
	}
	obslog.L().Warn("room_create_exhausted", zap.Int("attempts", maxCodeAttempts))
	return nil, ErrCodeExhausted
}

func (r *Registry) Get(id string) (*Room, error) {
	r.mu.RLock()
	rm, ok := r.rooms[NormalizeID(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// Delete removes a room immediately and cancels any pending grace deletion.
func (r *Registry) Delete(id string) bool {
	id = NormalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[id]
	if !ok {
		return false
	}
	r.removeLocked(id, rm)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ListLobby returns joinable rooms, most recently active first.
func (r *Registry) ListLobby() []othellodto.LobbyRoom {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]othellodto.LobbyRoom, 0, len(rooms))
	for _, rm := range rooms {
		if e, ok := rm.lobbyEntry(); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

// Join seats identity as a player, or as a spectator when spectate is set.
func (r *Registry) Join(id, identity, name string, spectate bool) (*Room, JoinResult, error) {
	rm, err := r.Get(id)
	if err != nil {
		return nil, JoinResult{}, err
	}
	var res JoinResult
	if spectate {
		res, err = rm.JoinAsSpectator(identity, name)
	} else {
		res, err = rm.JoinAsPlayer(identity, name)
	}
	if err != nil {
		return nil, JoinResult{}, err
	}
	r.cancelGrace(rm.ID())
	return rm, res, nil
}

// Reconnect restores a disconnected seat by name. After the room has been deleted this
// reports ErrRoomNotFound.
func (r *Registry) Reconnect(id, identity, name string) (*Room, JoinResult, error) {
	rm, err := r.Get(id)
	if err != nil {
		return nil, JoinResult{}, err
	}
	res, err := rm.Reconnect(identity, name)
	if err != nil {
		return nil, JoinResult{}, err
	}
	r.cancelGrace(rm.ID())
	return rm, res, nil
}

func (r *Registry) Disconnect(id, identity string) (DisconnectResult, error) {
	return r.detach(id, identity, false)
}

func (r *Registry) Leave(id, identity string) (DisconnectResult, error) {
	return r.detach(id, identity, true)
}

func (r *Registry) detach(id, identity string, left bool) (DisconnectResult, error) {
	rm, err := r.Get(id)
	if err != nil {
		return DisconnectResult{}, err
	}
	var res DisconnectResult
	if left {
		res, err = rm.Leave(identity)
	} else {
		res, err = rm.Disconnect(identity)
	}
	if err != nil {
		return res, err
	}
	if res.RoomNowEmpty {
		r.scheduleGrace(rm.ID())
	}
	return res, nil
}

func (r *Registry) MakeMove(id, identity string, at othello.Coord) (MoveResult, error) {
	rm, err := r.Get(id)
	if err != nil {
		return MoveResult{}, err
	}
	return rm.MakeMove(identity, at)
}

func (r *Registry) Reset(id, identity string) (othellodto.RoomState, error) {
	rm, err := r.Get(id)
	if err != nil {
		return othellodto.RoomState{}, err
	}
	return rm.Reset(identity)
}

func (r *Registry) UpdateMarker(id, identity, emoji string) error {
	rm, err := r.Get(id)
	if err != nil {
		return err
	}
	return rm.UpdateMarker(identity, emoji)
}

// scheduleGrace arms a deferred deletion for id, replacing any earlier one.
func (r *Registry) scheduleGrace(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return
	}
	if e, ok := r.grace[id]; ok {
		e.timer.Stop()
	}
	r.nextToken++
	token := r.nextToken
	wait := r.opts.GraceWindow
	if wait < 0 {
		wait = 0
	}
	r.grace[id] = &graceEntry{
		token: token,
		timer: time.AfterFunc(wait, func() { r.expire(id, token) }),
	}
	obslog.L().Debug("room_grace_scheduled", zap.String("room_id", id), zap.Duration("wait", wait))
}

func (r *Registry) cancelGrace(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.grace[id]; ok {
		e.timer.Stop()
		delete(r.grace, id)
		obslog.L().Debug("room_grace_cancelled", zap.String("room_id", id))
	}
}

// expire deletes the room if it is still empty when its grace timer fires. A stale token
// means the timer was replaced or cancelled after it had already started.
func (r *Registry) expire(id string, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.grace[id]
	if !ok || e.token != token {
		return
	}
	delete(r.grace, id)
	rm, ok := r.rooms[id]
	if !ok {
		return
	}
	rm.mu.Lock()
	empty := rm.isEmptyLocked()
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()
	if !empty {
		return
	}
	delete(r.rooms, id)
	obslog.L().Info("room_expire", zap.String("room_id", id), zap.String("reason", "grace"))
}

// Sweep deletes every room idle for longer than the inactivity TTL, whatever its
// connection state, and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, rm := range r.rooms {
		rm.mu.Lock()
		idle := now.Sub(rm.lastActivity) > r.opts.InactivityTTL
		rm.mu.Unlock()
		if idle {
			r.removeLocked(id, rm)
			removed++
		}
	}
	if removed > 0 {
		obslog.L().Info("room_sweep", zap.Int("removed", removed), zap.Int("remaining", len(r.rooms)))
	}
	return removed
}

func (r *Registry) sweepLoop(every time.Duration) {
	defer close(r.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.Sweep(r.opts.Now())
		}
	}
}

// removeLocked requires r.mu held for writing.
func (r *Registry) removeLocked(id string, rm *Room) {
	rm.mu.Lock()
	rm.closed = true
	rm.mu.Unlock()
	delete(r.rooms, id)
	if e, ok := r.grace[id]; ok {
		e.timer.Stop()
		delete(r.grace, id)
	}
}

// Close stops the sweep loop and pending grace timers and drops every room.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		select {
		case <-r.done:
		default:
			close(r.stop)
			<-r.done
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for id, rm := range r.rooms {
			r.removeLocked(id, rm)
		}
	})
}
