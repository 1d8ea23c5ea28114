package rating

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Othello/internal/domain"
)

const (
	redisRecordPrefix  = "othello:rating:"
	redisLeaderboard   = "othello:leaderboard"
	redisTimeLayout    = time.RFC3339Nano
	fieldRating        = "rating"
	fieldWins          = "wins"
	fieldLosses        = "losses"
	fieldTies          = "ties"
	fieldGamesPlayed   = "games_played"
	fieldPointsScored  = "points_scored"
	fieldPointsConcede = "points_conceded"
	fieldStreak        = "streak"
	fieldStreakType    = "streak_type"
	fieldLastResult    = "last_result"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
)

// RedisRepository stores each record as a hash and indexes names in a sorted set scored by rating.
type RedisRepository struct {
	rdb   *redis.Client
	owned bool
}

// NewRedisRepository dials REDIS_URL and pings it.
func NewRedisRepository(redisURL string) (*RedisRepository, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisRepository{rdb: rdb, owned: true}, nil
}

// NewRedisRepositoryFromClient wraps a caller-owned client; Close leaves it open.
func NewRedisRepositoryFromClient(rdb *redis.Client) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func recordKey(name string) string { return redisRecordPrefix + strings.TrimSpace(name) }

func (r *RedisRepository) Upsert(ctx context.Context, rec *domain.RatingRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, recordKey(rec.Name), map[string]any{
		fieldRating:        rec.Rating,
		fieldWins:          rec.Wins,
		fieldLosses:        rec.Losses,
		fieldTies:          rec.Ties,
		fieldGamesPlayed:   rec.GamesPlayed,
		fieldPointsScored:  rec.PointsScored,
		fieldPointsConcede: rec.PointsConceded,
		fieldStreak:        rec.Streak,
		fieldStreakType:    string(rec.StreakType),
		fieldLastResult:    string(rec.LastResult),
		fieldCreatedAt:     created.UTC().Format(redisTimeLayout),
		fieldUpdatedAt:     rec.UpdatedAt.UTC().Format(redisTimeLayout),
	})
	pipe.ZAdd(ctx, redisLeaderboard, redis.Z{Score: float64(rec.Rating), Member: rec.Name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert rating %q: %w", rec.Name, err)
	}
	return nil
}

func (r *RedisRepository) LoadAll(ctx context.Context) ([]*domain.RatingRecord, error) {
	names, err := r.rdb.ZRevRange(ctx, redisLeaderboard, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(names))
	for i, n := range names {
		cmds[i] = pipe.HGetAll(ctx, recordKey(n))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load rating hashes: %w", err)
	}
	out := make([]*domain.RatingRecord, 0, len(names))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, recordFromHash(names[i], fields))
	}
	return out, nil
}

// TopNames reads the leaderboard index directly.
func (r *RedisRepository) TopNames(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return r.rdb.ZRevRange(ctx, redisLeaderboard, 0, int64(n-1)).Result()
}

func recordFromHash(name string, h map[string]string) *domain.RatingRecord {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(h[k])
		return n
	}
	parseTime := func(k string) time.Time {
		t, _ := time.Parse(redisTimeLayout, h[k])
		return t
	}
	return &domain.RatingRecord{
		Name:           name,
		Rating:         atoi(fieldRating),
		Wins:           atoi(fieldWins),
		Losses:         atoi(fieldLosses),
		Ties:           atoi(fieldTies),
		GamesPlayed:    atoi(fieldGamesPlayed),
		PointsScored:   atoi(fieldPointsScored),
		PointsConceded: atoi(fieldPointsConcede),
		Streak:         atoi(fieldStreak),
		StreakType:     domain.Outcome(h[fieldStreakType]),
		LastResult:     domain.Outcome(h[fieldLastResult]),
		CreatedAt:      parseTime(fieldCreatedAt),
		UpdatedAt:      parseTime(fieldUpdatedAt),
	}
}

func (r *RedisRepository) Close() error {
	if r == nil || r.rdb == nil || !r.owned {
		return nil
	}
	return r.rdb.Close()
}
