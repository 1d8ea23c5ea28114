package othellodto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CommandType tags an inbound client command.
type CommandType string

const (
	CmdCreateRoom   CommandType = "create_room"
	CmdJoinRoom     CommandType = "join_room"
	CmdMakeMove     CommandType = "make_move"
	CmdResetGame    CommandType = "reset_game"
	CmdUpdateMarker CommandType = "update_marker"
	CmdLeaveRoom    CommandType = "leave_room"
	CmdReconnect    CommandType = "reconnect"
)

const (
	MaxNameLength   = 32
	MaxMarkerLength = 16
	boardSize       = 8
)

var (
	ErrUnknownCommand = errors.New("unknown command type")
	ErrMalformed      = errors.New("malformed command")
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is the closed set of inbound commands.
type Command interface {
	CommandType() CommandType
	validate() error
}

type CreateRoom struct {
	Name string `json:"name"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Spectate bool   `json:"spectate,omitempty"`
}

type MakeMove struct {
	RoomID string `json:"roomId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type ResetGame struct {
	RoomID string `json:"roomId"`
}

type UpdateMarker struct {
	Emoji string `json:"emoji"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type Reconnect struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (CreateRoom) CommandType() CommandType   { return CmdCreateRoom }
func (JoinRoom) CommandType() CommandType     { return CmdJoinRoom }
func (MakeMove) CommandType() CommandType     { return CmdMakeMove }
func (ResetGame) CommandType() CommandType    { return CmdResetGame }
func (UpdateMarker) CommandType() CommandType { return CmdUpdateMarker }
func (LeaveRoom) CommandType() CommandType    { return CmdLeaveRoom }
func (Reconnect) CommandType() CommandType    { return CmdReconnect }

func (c CreateRoom) validate() error { return validName(c.Name) }

func (c JoinRoom) validate() error {
	if err := validRoomID(c.RoomID); err != nil {
		return err
	}
	return validName(c.Name)
}

// Row/col range is checked by the rule engine so that out-of-bounds moves are reported
// as invalid_move rather than a malformed frame.
func (c MakeMove) validate() error { return validRoomID(c.RoomID) }

func (c ResetGame) validate() error { return validRoomID(c.RoomID) }

func (c UpdateMarker) validate() error {
	if utf8.RuneCountInString(c.Emoji) > MaxMarkerLength {
		return fmt.Errorf("%w: marker longer than %d", ErrMalformed, MaxMarkerLength)
	}
	return nil
}

func (c LeaveRoom) validate() error { return validRoomID(c.RoomID) }

func (c Reconnect) validate() error {
	if err := validRoomID(c.RoomID); err != nil {
		return err
	}
	return validName(c.Name)
}

func validName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrMalformed)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d", ErrMalformed, MaxNameLength)
	}
	return nil
}

func validRoomID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: roomId required", ErrMalformed)
	}
	return nil
}

// DecodeCommand parses one inbound frame into a validated Command.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var cmd Command
	switch CommandType(strings.TrimSpace(env.Type)) {
	case CmdCreateRoom:
		cmd = &CreateRoom{}
	case CmdJoinRoom:
		cmd = &JoinRoom{}
	case CmdMakeMove:
		cmd = &MakeMove{}
	case CmdResetGame:
		cmd = &ResetGame{}
	case CmdUpdateMarker:
		cmd = &UpdateMarker{}
	case CmdLeaveRoom:
		cmd = &LeaveRoom{}
	case CmdReconnect:
		cmd = &Reconnect{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return derefCommand(cmd), nil
}

// derefCommand returns value types so callers can type-switch on CreateRoom, JoinRoom, ...
func derefCommand(cmd Command) Command {
	switch c := cmd.(type) {
	case *CreateRoom:
		return *c
	case *JoinRoom:
		return *c
	case *MakeMove:
		return *c
	case *ResetGame:
		return *c
	case *UpdateMarker:
		return *c
	case *LeaveRoom:
		return *c
	case *Reconnect:
		return *c
	}
	return cmd
}

// EncodeCommand builds the wire frame for a command; used by clients.
func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: string(cmd.CommandType()), Payload: payload})
}
