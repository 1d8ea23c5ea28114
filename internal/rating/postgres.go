package rating

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Othello/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS othello_ratings (
	name            TEXT PRIMARY KEY,
	rating          INTEGER NOT NULL DEFAULT 1000,
	wins            INTEGER NOT NULL DEFAULT 0,
	losses          INTEGER NOT NULL DEFAULT 0,
	ties            INTEGER NOT NULL DEFAULT 0,
	games_played    INTEGER NOT NULL DEFAULT 0,
	points_scored   INTEGER NOT NULL DEFAULT 0,
	points_conceded INTEGER NOT NULL DEFAULT 0,
	streak          INTEGER NOT NULL DEFAULT 0,
	streak_type     TEXT NOT NULL DEFAULT '',
	last_result     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS othello_ratings_rating_idx ON othello_ratings (rating DESC, name);`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens and pings a lib/pq pool.
func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return NewPostgresRepositoryFromDB(db), nil
}

func NewPostgresRepositoryFromDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the ratings table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure rating schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LoadAll(ctx context.Context) ([]*domain.RatingRecord, error) {
	const query = `
		SELECT name, rating, wins, losses, ties, games_played,
		       points_scored, points_conceded, streak, streak_type, last_result,
		       created_at, updated_at
		FROM othello_ratings
		ORDER BY rating DESC, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	var out []*domain.RatingRecord
	for rows.Next() {
		var (
			rec                    domain.RatingRecord
			streakType, lastResult string
		)
		if err := rows.Scan(
			&rec.Name, &rec.Rating, &rec.Wins, &rec.Losses, &rec.Ties, &rec.GamesPlayed,
			&rec.PointsScored, &rec.PointsConceded, &rec.Streak, &streakType, &lastResult,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		rec.StreakType = domain.Outcome(streakType)
		rec.LastResult = domain.Outcome(lastResult)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

// Upsert writes the whole record; the in-memory store already holds the merged values.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *domain.RatingRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	const query = `
		INSERT INTO othello_ratings (
			name, rating, wins, losses, ties, games_played,
			points_scored, points_conceded, streak, streak_type, last_result,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (name) DO UPDATE SET
			rating=EXCLUDED.rating,
			wins=EXCLUDED.wins,
			losses=EXCLUDED.losses,
			ties=EXCLUDED.ties,
			games_played=EXCLUDED.games_played,
			points_scored=EXCLUDED.points_scored,
			points_conceded=EXCLUDED.points_conceded,
			streak=EXCLUDED.streak,
			streak_type=EXCLUDED.streak_type,
			last_result=EXCLUDED.last_result,
			updated_at=EXCLUDED.updated_at`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.Name, rec.Rating, rec.Wins, rec.Losses, rec.Ties, rec.GamesPlayed,
		rec.PointsScored, rec.PointsConceded, rec.Streak, string(rec.StreakType), string(rec.LastResult),
		created, updated,
	)
	if err != nil {
		return fmt.Errorf("upsert rating %q: %w", rec.Name, err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
