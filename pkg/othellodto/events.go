package othellodto

import (
	"encoding/json"
	"fmt"
)

// EventType tags an outbound notification.
type EventType string

const (
	EvtRoomCreated        EventType = "room_created"
	EvtPlayerJoined       EventType = "player_joined"
	EvtSpectatorJoined    EventType = "spectator_joined"
	EvtGameStarted        EventType = "game_started"
	EvtMoveApplied        EventType = "move_applied"
	EvtInvalidMove        EventType = "invalid_move"
	EvtGameEnded          EventType = "game_ended"
	EvtPlayerDisconnected EventType = "player_disconnected"
	EvtPlayerReconnected  EventType = "player_reconnected"
	EvtPlayerLeft         EventType = "player_left"
	EvtGameReset          EventType = "game_reset"
	EvtMarkerUpdated      EventType = "marker_updated"
	EvtError              EventType = "error"
)

// Event is the closed set of outbound notifications.
type Event interface {
	EventType() EventType
}

type RoomCreated struct {
	RoomID string    `json:"roomId"`
	State  RoomState `json:"state"`
}

type PlayerJoined struct {
	Identity string    `json:"identity"`
	State    RoomState `json:"state"`
}

type SpectatorJoined struct {
	Identity string    `json:"identity"`
	State    RoomState `json:"state"`
}

type GameStarted struct {
	State RoomState `json:"state"`
}

type MoveApplied struct {
	Row     int       `json:"row"`
	Col     int       `json:"col"`
	Color   string    `json:"color"`
	Flipped []Coord   `json:"flipped"`
	Passed  bool      `json:"passed,omitempty"`
	State   RoomState `json:"state"`
}

type InvalidMove struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

type GameEnded struct {
	Winner string `json:"winner"`
	Scores Scores `json:"scores"`
}

type PlayerDisconnected struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

type PlayerReconnected struct {
	Identity string    `json:"identity"`
	Name     string    `json:"name,omitempty"`
	State    RoomState `json:"state"`
}

// PlayerLeft reports an explicit leave; the seat is kept for reconnection.
type PlayerLeft struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

type GameReset struct {
	State RoomState `json:"state"`
}

type MarkerUpdated struct {
	Identity string `json:"identity"`
	Emoji    string `json:"emoji"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (RoomCreated) EventType() EventType        { return EvtRoomCreated }
func (PlayerJoined) EventType() EventType       { return EvtPlayerJoined }
func (SpectatorJoined) EventType() EventType    { return EvtSpectatorJoined }
func (GameStarted) EventType() EventType        { return EvtGameStarted }
func (MoveApplied) EventType() EventType        { return EvtMoveApplied }
func (InvalidMove) EventType() EventType        { return EvtInvalidMove }
func (GameEnded) EventType() EventType          { return EvtGameEnded }
func (PlayerDisconnected) EventType() EventType { return EvtPlayerDisconnected }
func (PlayerReconnected) EventType() EventType  { return EvtPlayerReconnected }
func (PlayerLeft) EventType() EventType         { return EvtPlayerLeft }
func (GameReset) EventType() EventType          { return EvtGameReset }
func (MarkerUpdated) EventType() EventType      { return EvtMarkerUpdated }
func (ErrorEvent) EventType() EventType         { return EvtError }

// EncodeEvent wraps an event in the wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Type: string(ev.EventType()), Payload: payload})
}

// DecodeEvent parses an outbound frame; used by clients and tests.
func DecodeEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var ev Event
	switch EventType(env.Type) {
	case EvtRoomCreated:
		ev = &RoomCreated{}
	case EvtPlayerJoined:
		ev = &PlayerJoined{}
	case EvtSpectatorJoined:
		ev = &SpectatorJoined{}
	case EvtGameStarted:
		ev = &GameStarted{}
	case EvtMoveApplied:
		ev = &MoveApplied{}
	case EvtInvalidMove:
		ev = &InvalidMove{}
	case EvtGameEnded:
		ev = &GameEnded{}
	case EvtPlayerDisconnected:
		ev = &PlayerDisconnected{}
	case EvtPlayerReconnected:
		ev = &PlayerReconnected{}
	case EvtPlayerLeft:
		ev = &PlayerLeft{}
	case EvtGameReset:
		ev = &GameReset{}
	case EvtMarkerUpdated:
		ev = &MarkerUpdated{}
	case EvtError:
		ev = &ErrorEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return derefEvent(ev), nil
}

func derefEvent(ev Event) Event {
	switch e := ev.(type) {
	case *RoomCreated:
		return *e
	case *PlayerJoined:
		return *e
	case *SpectatorJoined:
		return *e
	case *GameStarted:
		return *e
	case *MoveApplied:
		return *e
	case *InvalidMove:
		return *e
	case *GameEnded:
		return *e
	case *PlayerDisconnected:
		return *e
	case *PlayerReconnected:
		return *e
	case *PlayerLeft:
		return *e
	case *GameReset:
		return *e
	case *MarkerUpdated:
		return *e
	case *ErrorEvent:
		return *e
	}
	return ev
}
