package room

import (
	"errors"

	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

var (
	ErrInvalidArgs               = errf("invalid arguments")
	ErrRoomNotFound              = errf("room not found or expired")
	ErrRoomFull                  = errf("room already has two players")
	ErrAlreadyActive             = errf("identity already active in this room")
	ErrNotYourTurn               = errf("not your turn")
	ErrGameNotActive             = errf("game is not active")
	ErrInvalidMove               = errf("invalid move")
	ErrDuplicateActivePlayerName = errf("a connected player already uses this name")
	ErrReconnectFailed           = errf("no disconnected player with this name")
	ErrNotInRoom                 = errf("identity is not in this room")
	ErrCodeExhausted             = errf("failed to allocate room code")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// MoveError is a rejected move. It matches ErrInvalidMove and unwraps to the engine error.
type MoveError struct {
	Coord othello.Coord
	Err   error
}

func (e *MoveError) Error() string {
	return "invalid move " + e.Coord.String() + ": " + e.Reason()
}

func (e *MoveError) Is(target error) bool { return target == ErrInvalidMove }

func (e *MoveError) Unwrap() error { return e.Err }

// Reason maps the engine error to its wire reason.
func (e *MoveError) Reason() string {
	switch {
	case errors.Is(e.Err, othello.ErrCellOccupied):
		return othellodto.ReasonCellOccupied
	case errors.Is(e.Err, othello.ErrOutOfBounds):
		return othellodto.ReasonOutOfBounds
	default:
		return othellodto.ReasonNoFlipDirection
	}
}

// ErrorCode maps a room error to its client-facing code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidMove):
		return othellodto.CodeInvalidMove
	case errors.Is(err, ErrRoomNotFound):
		return othellodto.CodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return othellodto.CodeRoomFull
	case errors.Is(err, ErrAlreadyActive):
		return othellodto.CodeAlreadyActive
	case errors.Is(err, ErrNotYourTurn):
		return othellodto.CodeNotYourTurn
	case errors.Is(err, ErrGameNotActive):
		return othellodto.CodeGameNotActive
	case errors.Is(err, ErrDuplicateActivePlayerName):
		return othellodto.CodeDuplicateActiveName
	case errors.Is(err, ErrReconnectFailed):
		return othellodto.CodeReconnectFailed
	case errors.Is(err, ErrNotInRoom):
		return othellodto.CodeNotInRoom
	case errors.Is(err, ErrInvalidArgs):
		return othellodto.CodeBadRequest
	default:
		return othellodto.CodeInternal
	}
}
