package room

import (
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

// Status is a room lifecycle state.
type Status string

const (
	StatusLobby    Status = "LOBBY"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Winner is fixed at the Active to Finished transition and cleared by reset.
type Winner string

const (
	WinnerNone  Winner = ""
	WinnerBlack Winner = "black"
	WinnerWhite Winner = "white"
	WinnerDraw  Winner = "draw"
)

func winnerFromScore(black, white int) Winner {
	switch {
	case black > white:
		return WinnerBlack
	case white > black:
		return WinnerWhite
	default:
		return WinnerDraw
	}
}

// Player is a seated participant. Color never changes once assigned.
type Player struct {
	Identity       string
	Name           string
	Color          othello.Color
	Connected      bool
	Marker         string
	DisconnectedAt time.Time
}

// Spectator watches a room without affecting turn or scoring.
type Spectator struct {
	Identity string
	Name     string
	Marker   string
}

// Notifier fans room events out to connected identities. Rooms call it while holding their
// lock so implementations must not block or call back into the room.
type Notifier interface {
	Notify(to []string, ev othellodto.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(to []string, ev othellodto.Event)

func (f NotifierFunc) Notify(to []string, ev othellodto.Event) { f(to, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify([]string, othellodto.Event) {}

// Recorder receives one call per player when a two-player game finishes.
// Implementations update memory synchronously and persist in the background.
type Recorder interface {
	RecordResult(name string, outcome domain.Outcome, scored, conceded int)
}

// JoinResult describes how a join was satisfied.
type JoinResult struct {
	Color       othello.Color
	Spectator   bool
	Reconnected bool
	Started     bool
	State       othellodto.RoomState
}

// DisconnectResult reports what a disconnect or leave removed.
type DisconnectResult struct {
	WasPlayer    bool
	RoomNowEmpty bool
}

// MoveResult is returned for an applied move.
type MoveResult struct {
	Flipped  []othello.Coord
	Passed   bool
	Finished bool
	Winner   Winner
	State    othellodto.RoomState
}
