package room

import (
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
	"go.uber.org/zap"
)

// Room holds one match. Every exported method takes the room lock for its whole duration,
// so mutations on a room are serialised and notifications leave in that same order.
type Room struct {
	mu sync.Mutex

	id           string
	board        *othello.Board
	players      []*Player
	spectators   []*Spectator
	turn         othello.Color
	status       Status
	winner       Winner
	lastMove     *othello.Coord
	lastFlipped  []othello.Coord
	createdAt    time.Time
	lastActivity time.Time
	closed       bool

	now      func() time.Time
	notifier Notifier
	recorder Recorder
	moveText func(*MoveError) string
}

func newRoom(id string, host *Player, now func() time.Time, n Notifier, rec Recorder) *Room {
	if now == nil {
		now = time.Now
	}
	if n == nil {
		n = nopNotifier{}
	}
	t := now()
	host.Color = othello.Black
	host.Connected = true
	return &Room{
		id:           id,
		board:        othello.NewBoard(),
		players:      []*Player{host},
		turn:         othello.Black,
		status:       StatusLobby,
		createdAt:    t,
		lastActivity: t,
		now:          now,
		notifier:     n,
		recorder:     rec,
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// IsEmpty reports whether no player is connected and no spectator remains.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isEmptyLocked()
}

func (r *Room) Snapshot() othellodto.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// LastMove returns the most recent move and the discs it flipped, or nil before the first move.
func (r *Room) LastMove() (*othello.Coord, []othello.Coord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastMove == nil {
		return nil, nil
	}
	mv := *r.lastMove
	return &mv, append([]othello.Coord(nil), r.lastFlipped...)
}

// Board returns a copy of the current board.
func (r *Room) Board() *othello.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone()
}

// JoinAsPlayer seats identity as the second player. A name matching a disconnected seat is
// treated as a reconnect to that seat.
func (r *Room) JoinAsPlayer(identity, name string) (JoinResult, error) {
	identity, name = strings.TrimSpace(identity), strings.TrimSpace(name)
	if identity == "" || name == "" {
		return JoinResult{}, ErrInvalidArgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}
	if r.playerByIdentity(identity) != nil {
		return JoinResult{}, ErrAlreadyActive
	}
	if p := r.playerByName(name); p != nil {
		if p.Connected {
			return JoinResult{}, ErrDuplicateActivePlayerName
		}
		r.rebindLocked(p, identity)
		return JoinResult{Color: p.Color, Reconnected: true, State: r.stateLocked()}, nil
	}
	if len(r.players) >= 2 {
		return JoinResult{}, ErrRoomFull
	}

	r.removeSpectator(identity)
	p := &Player{Identity: identity, Name: name, Color: r.freeColor(), Connected: true}
	r.players = append(r.players, p)
	r.touch()
	res := JoinResult{Color: p.Color}
	r.broadcast(othellodto.PlayerJoined{Identity: identity, State: r.stateLocked()})
	if r.status == StatusLobby && len(r.players) == 2 {
		r.status = StatusActive
		r.turn = othello.Black
		res.Started = true
		r.broadcast(othellodto.GameStarted{State: r.stateLocked()})
	}
	res.State = r.stateLocked()
	obslog.L().Info("room_join",
		zap.String("room_id", r.id),
		zap.String("identity", identity),
		zap.String("color", p.Color.String()),
		zap.Bool("started", res.Started),
	)
	return res, nil
}

// JoinAsSpectator always succeeds for an identity not already in the room.
func (r *Room) JoinAsSpectator(identity, name string) (JoinResult, error) {
	identity, name = strings.TrimSpace(identity), strings.TrimSpace(name)
	if identity == "" || name == "" {
		return JoinResult{}, ErrInvalidArgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}
	if r.playerByIdentity(identity) != nil || r.spectatorByIdentity(identity) != nil {
		return JoinResult{}, ErrAlreadyActive
	}
	r.spectators = append(r.spectators, &Spectator{Identity: identity, Name: name})
	r.touch()
	st := r.stateLocked()
	r.broadcast(othellodto.SpectatorJoined{Identity: identity, State: st})
	obslog.L().Info("room_spectate", zap.String("room_id", r.id), zap.String("identity", identity))
	return JoinResult{Spectator: true, State: st}, nil
}

// Reconnect rebinds the disconnected seat whose name matches to identity. The seat keeps its color.
func (r *Room) Reconnect(identity, name string) (JoinResult, error) {
	identity, name = strings.TrimSpace(identity), strings.TrimSpace(name)
	if identity == "" || name == "" {
		return JoinResult{}, ErrInvalidArgs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}
	if p := r.playerByIdentity(identity); p != nil && p.Connected {
		return JoinResult{}, ErrAlreadyActive
	}
	p := r.playerByName(name)
	if p == nil || p.Connected {
		return JoinResult{}, ErrReconnectFailed
	}
	r.rebindLocked(p, identity)
	return JoinResult{Color: p.Color, Reconnected: true, State: r.stateLocked()}, nil
}

func (r *Room) rebindLocked(p *Player, identity string) {
	prev := p.Identity
	r.removeSpectator(identity)
	p.Identity = identity
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	r.touch()
	r.broadcast(othellodto.PlayerReconnected{Identity: identity, Name: p.Name, State: r.stateLocked()})
	obslog.L().Info("room_reconnect",
		zap.String("room_id", r.id),
		zap.String("name", p.Name),
		zap.String("prev_identity", prev),
		zap.String("identity", identity),
		zap.String("color", p.Color.String()),
	)
}

// Disconnect handles a transport drop. A player's seat and color are retained; a spectator is removed.
func (r *Room) Disconnect(identity string) (DisconnectResult, error) {
	return r.detach(identity, false)
}

// Leave is the explicit client action; the room state change is the same as Disconnect.
func (r *Room) Leave(identity string) (DisconnectResult, error) {
	return r.detach(identity, true)
}

func (r *Room) detach(identity string, left bool) (DisconnectResult, error) {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return DisconnectResult{}, ErrRoomNotFound
	}
	if p := r.playerByIdentity(identity); p != nil {
		if p.Connected {
			p.Connected = false
			p.DisconnectedAt = r.now()
			r.touch()
			if left {
				r.broadcast(othellodto.PlayerLeft{Identity: identity, Name: p.Name})
			} else {
				r.broadcast(othellodto.PlayerDisconnected{Identity: identity, Name: p.Name})
			}
			obslog.L().Info("room_detach",
				zap.String("room_id", r.id),
				zap.String("identity", identity),
				zap.Bool("left", left),
			)
		}
		return DisconnectResult{WasPlayer: true, RoomNowEmpty: r.isEmptyLocked()}, nil
	}
	if r.removeSpectator(identity) {
		r.touch()
		return DisconnectResult{RoomNowEmpty: r.isEmptyLocked()}, nil
	}
	return DisconnectResult{}, ErrNotInRoom
}

// MakeMove validates room state, turn ownership and legality before touching the board.
func (r *Room) MakeMove(identity string, at othello.Coord) (MoveResult, error) {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return MoveResult{}, ErrRoomNotFound
	}
	if r.status != StatusActive {
		return MoveResult{}, ErrGameNotActive
	}
	p := r.playerByIdentity(identity)
	if p == nil || !p.Connected || p.Color != r.turn {
		return MoveResult{}, ErrNotYourTurn
	}
	flipped, err := r.board.ApplyMove(at, p.Color)
	if err != nil {
		merr := &MoveError{Coord: at, Err: err}
		r.notifier.Notify([]string{identity}, othellodto.InvalidMove{Reason: merr.Reason(), Message: r.moveMessage(merr)})
		return MoveResult{}, merr
	}
	r.touch()
	mv := at
	r.lastMove, r.lastFlipped = &mv, flipped
	passed := r.advanceTurn(p.Color)

	res := MoveResult{Flipped: flipped, Passed: passed, Finished: r.status == StatusFinished, Winner: r.winner}
	res.State = r.stateLocked()
	r.broadcast(othellodto.MoveApplied{
		Row:     at.Row,
		Col:     at.Col,
		Color:   p.Color.String(),
		Flipped: coordsDTO(flipped),
		Passed:  passed,
		State:   res.State,
	})
	obslog.L().Info("room_move",
		zap.String("room_id", r.id),
		zap.String("color", p.Color.String()),
		zap.Stringer("at", at),
		zap.Int("flipped", len(flipped)),
		zap.Bool("passed", passed),
	)
	if res.Finished {
		r.finishLocked()
	}
	return res, nil
}

// advanceTurn applies the turn rules after mover's move and reports a forced pass.
func (r *Room) advanceTurn(mover othello.Color) bool {
	black, white := r.board.Score()
	if black+white == othello.Size*othello.Size {
		r.setFinished(black, white)
		return false
	}
	opp := mover.Opponent()
	if r.board.HasValidMove(opp) {
		r.turn = opp
		return false
	}
	if r.board.HasValidMove(mover) {
		r.turn = mover
		return true
	}
	r.setFinished(black, white)
	return false
}

func (r *Room) setFinished(black, white int) {
	r.status = StatusFinished
	r.winner = winnerFromScore(black, white)
}

// finishLocked runs once per Active to Finished edge, after status and winner are set.
func (r *Room) finishLocked() {
	black, white := r.board.Score()
	r.broadcast(othellodto.GameEnded{Winner: string(r.winner), Scores: othellodto.Scores{Black: black, White: white}})
	obslog.L().Info("room_game_end",
		zap.String("room_id", r.id),
		zap.String("winner", string(r.winner)),
		zap.Int("black", black),
		zap.Int("white", white),
	)
	if r.recorder == nil || len(r.players) < 2 {
		return
	}
	for _, p := range r.players {
		mine, theirs := black, white
		if p.Color == othello.White {
			mine, theirs = white, black
		}
		r.recorder.RecordResult(p.Name, outcomeFor(p.Color, r.winner), mine, theirs)
	}
}

func outcomeFor(c othello.Color, w Winner) domain.Outcome {
	switch {
	case w == WinnerDraw:
		return domain.OutcomeTie
	case (w == WinnerBlack && c == othello.Black) || (w == WinnerWhite && c == othello.White):
		return domain.OutcomeWin
	default:
		return domain.OutcomeLoss
	}
}

// Reset restores the opening position with Black to move, even with a single seated player.
// Any member of the room may request it; spectators included.
func (r *Room) Reset(identity string) (othellodto.RoomState, error) {
	identity = strings.TrimSpace(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return othellodto.RoomState{}, ErrRoomNotFound
	}
	if r.playerByIdentity(identity) == nil && r.spectatorByIdentity(identity) == nil {
		return othellodto.RoomState{}, ErrNotInRoom
	}
	r.board.Reset()
	r.turn = othello.Black
	r.status = StatusActive
	r.winner = WinnerNone
	r.lastMove, r.lastFlipped = nil, nil
	r.touch()
	st := r.stateLocked()
	r.broadcast(othellodto.GameReset{State: st})
	obslog.L().Info("room_reset", zap.String("room_id", r.id), zap.String("identity", identity))
	return st, nil
}

// UpdateMarker sets a cosmetic marker for a player or spectator.
func (r *Room) UpdateMarker(identity, emoji string) error {
	identity, emoji = strings.TrimSpace(identity), strings.TrimSpace(emoji)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	switch {
	case r.playerByIdentity(identity) != nil:
		r.playerByIdentity(identity).Marker = emoji
	case r.spectatorByIdentity(identity) != nil:
		r.spectatorByIdentity(identity).Marker = emoji
	default:
		return ErrNotInRoom
	}
	r.touch()
	r.broadcast(othellodto.MarkerUpdated{Identity: identity, Emoji: emoji})
	return nil
}

// lobbyEntry returns the listing row while the room is joinable.
func (r *Room) lobbyEntry() (othellodto.LobbyRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.status != StatusLobby || len(r.players) >= 2 {
		return othellodto.LobbyRoom{}, false
	}
	host := ""
	if len(r.players) > 0 {
		host = r.players[0].Name
	}
	return othellodto.LobbyRoom{
		RoomID:        r.id,
		OccupantCount: r.occupantsLocked(),
		HostName:      host,
		LastActivity:  r.lastActivity,
	}, true
}

func (r *Room) touch() { r.lastActivity = r.now() }

func (r *Room) isEmptyLocked() bool {
	for _, p := range r.players {
		if p.Connected {
			return false
		}
	}
	return len(r.spectators) == 0
}

func (r *Room) occupantsLocked() int {
	n := len(r.spectators)
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) freeColor() othello.Color {
	for _, p := range r.players {
		if p.Color == othello.Black {
			return othello.White
		}
	}
	return othello.Black
}

func (r *Room) playerByIdentity(identity string) *Player {
	for _, p := range r.players {
		if p.Identity == identity {
			return p
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) spectatorByIdentity(identity string) *Spectator {
	for _, s := range r.spectators {
		if s.Identity == identity {
			return s
		}
	}
	return nil
}

func (r *Room) removeSpectator(identity string) bool {
	for i, s := range r.spectators {
		if s.Identity == identity {
			r.spectators = append(r.spectators[:i], r.spectators[i+1:]...)
			return true
		}
	}
	return false
}

// recipientsLocked lists connected players then spectators.
func (r *Room) recipientsLocked() []string {
	out := make([]string, 0, len(r.players)+len(r.spectators))
	for _, p := range r.players {
		if p.Connected {
			out = append(out, p.Identity)
		}
	}
	for _, s := range r.spectators {
		out = append(out, s.Identity)
	}
	return out
}

func (r *Room) broadcast(ev othellodto.Event) {
	if to := r.recipientsLocked(); len(to) > 0 {
		r.notifier.Notify(to, ev)
	}
}

func (r *Room) stateLocked() othellodto.RoomState {
	black, white := r.board.Score()
	st := othellodto.RoomState{
		RoomID:       r.id,
		Status:       string(r.status),
		Winner:       string(r.winner),
		Board:        boardDTO(r.board),
		Players:      make([]othellodto.PlayerView, 0, len(r.players)),
		Spectators:   make([]othellodto.SpectatorView, 0, len(r.spectators)),
		Scores:       othellodto.Scores{Black: black, White: white},
		ValidMoves:   []othellodto.Coord{},
		LastActivity: r.lastActivity,
	}
	if r.lastMove != nil {
		st.LastMove = &othellodto.Coord{Row: r.lastMove.Row, Col: r.lastMove.Col}
	}
	if r.status == StatusActive {
		st.Turn = r.turn.String()
		st.ValidMoves = coordsDTO(r.board.ValidMoves(r.turn))
	}
	for _, p := range r.players {
		st.Players = append(st.Players, othellodto.PlayerView{
			Identity:  p.Identity,
			Name:      p.Name,
			Color:     p.Color.String(),
			Connected: p.Connected,
			Marker:    p.Marker,
		})
	}
	for _, s := range r.spectators {
		st.Spectators = append(st.Spectators, othellodto.SpectatorView{Identity: s.Identity, Name: s.Name, Marker: s.Marker})
	}
	return st
}

func boardDTO(b *othello.Board) []string {
	cells := b.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		switch c {
		case othello.Black:
			out[i] = "B"
		case othello.White:
			out[i] = "W"
		}
	}
	return out
}

func coordsDTO(cs []othello.Coord) []othellodto.Coord {
	out := make([]othellodto.Coord, len(cs))
	for i, c := range cs {
		out[i] = othellodto.Coord{Row: c.Row, Col: c.Col}
	}
	return out
}

func (r *Room) moveMessage(merr *MoveError) string {
	if r.moveText != nil {
		if s := r.moveText(merr); s != "" {
			return s
		}
	}
	return merr.Error()
}
