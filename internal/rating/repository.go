package rating

import (
	"context"
	"errors"

	"github.com/park285/Cheese-Othello/internal/domain"
)

var ErrNilRecord = errors.New("nil rating record")

// Repository is the durable side of the store. The in-memory map stays authoritative;
// repositories only see whole-record upserts.
type Repository interface {
	LoadAll(ctx context.Context) ([]*domain.RatingRecord, error)
	Upsert(ctx context.Context, rec *domain.RatingRecord) error
	Close() error
}
