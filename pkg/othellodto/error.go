package othellodto

// DomainError carries a client-facing error code and message.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "othello service error"
}

// Error codes sent in ErrorEvent and InvalidMoveEvent.
const (
	CodeBadRequest          = "bad_request"
	CodeRoomNotFound        = "room_not_found"
	CodeRoomFull            = "room_full"
	CodeAlreadyActive       = "already_active"
	CodeNotYourTurn         = "not_your_turn"
	CodeGameNotActive       = "game_not_active"
	CodeInvalidMove         = "invalid_move"
	CodeDuplicateActiveName = "duplicate_active_player_name"
	CodeReconnectFailed     = "reconnect_failed"
	CodeNotInRoom           = "not_in_room"
	CodeInternal            = "internal"
	ReasonCellOccupied      = "cell_occupied"
	ReasonNoFlipDirection   = "no_flip_direction"
	ReasonOutOfBounds       = "out_of_bounds"
)
