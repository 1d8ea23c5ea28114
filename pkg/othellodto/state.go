package othellodto

import "time"

// PlayerView is a seated player as seen by every participant.
type PlayerView struct {
	Identity  string `json:"identity"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`
	Marker    string `json:"marker,omitempty"`
}

// SpectatorView is a watching participant.
type SpectatorView struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Marker   string `json:"marker,omitempty"`
}

type Scores struct {
	Black int `json:"black"`
	White int `json:"white"`
}

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// RoomState is a full snapshot of one room. Board holds 64 cells in row-major order,
// each "", "B" or "W".
type RoomState struct {
	RoomID       string          `json:"roomId"`
	Status       string          `json:"status"`
	Turn         string          `json:"turn,omitempty"`
	Winner       string          `json:"winner,omitempty"`
	Board        []string        `json:"board"`
	Players      []PlayerView    `json:"players"`
	Spectators   []SpectatorView `json:"spectators"`
	Scores       Scores          `json:"scores"`
	ValidMoves   []Coord         `json:"validMoves"`
	LastMove     *Coord          `json:"lastMove,omitempty"`
	LastActivity time.Time       `json:"lastActivity"`
}

// LobbyRoom is one entry of the joinable-room listing.
type LobbyRoom struct {
	RoomID        string    `json:"roomId"`
	OccupantCount int       `json:"occupantCount"`
	HostName      string    `json:"hostName,omitempty"`
	LastActivity  time.Time `json:"lastActivity"`
}

// RatingRecord is a leaderboard row.
type RatingRecord struct {
	Name           string `json:"name"`
	Rating         int    `json:"rating"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Ties           int    `json:"ties"`
	GamesPlayed    int    `json:"gamesPlayed"`
	PointsScored   int    `json:"pointsScored"`
	PointsConceded int    `json:"pointsConceded"`
}
