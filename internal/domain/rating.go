package domain

import "time"

// Outcome is one player's result for a finished game.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeTie:
		return true
	}
	return false
}

// RatingRecord is the persisted rating/stats row keyed by display name.
type RatingRecord struct {
	Name           string
	Rating         int
	Wins           int
	Losses         int
	Ties           int
	GamesPlayed    int
	PointsScored   int
	PointsConceded int
	Streak         int
	StreakType     Outcome
	LastResult     Outcome
	UpdatedAt      time.Time
	CreatedAt      time.Time
}

// Clone returns an independent copy.
func (r *RatingRecord) Clone() *RatingRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
