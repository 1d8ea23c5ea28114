package rating

import (
	"strings"
	"time"

	"github.com/park285/Cheese-Othello/internal/domain"
)

const (
	DefaultRating = 1000
	RatingFloor   = 100
	WinDelta      = 15
	LossDelta     = -10
)

// applyResult folds one finished game into rec, creating it when nil, and returns the
// rating delta actually applied.
func applyResult(rec *domain.RatingRecord, name string, outcome domain.Outcome, scored, conceded int, at time.Time) (*domain.RatingRecord, int) {
	if rec == nil {
		rec = &domain.RatingRecord{
			Name:      strings.TrimSpace(name),
			Rating:    DefaultRating,
			CreatedAt: at,
		}
	}
	prev := rec.Rating

	rec.GamesPlayed++
	rec.PointsScored += scored
	rec.PointsConceded += conceded
	rec.LastResult = outcome
	rec.UpdatedAt = at

	switch outcome {
	case domain.OutcomeWin:
		rec.Wins++
		rec.Rating += WinDelta
	case domain.OutcomeLoss:
		rec.Losses++
		// A loss never lifts a rating that was already under the floor.
		rec.Rating = max(rec.Rating+LossDelta, min(prev, RatingFloor))
	default:
		rec.Ties++
	}

	if rec.StreakType == outcome {
		rec.Streak++
	} else {
		rec.Streak = 1
		rec.StreakType = outcome
	}
	return rec, rec.Rating - prev
}
