package builder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Othello/internal/config"
	"github.com/park285/Cheese-Othello/internal/gateway"
	"github.com/park285/Cheese-Othello/internal/httpapi"
	"github.com/park285/Cheese-Othello/internal/msgcat"
	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/internal/rating"
	"github.com/park285/Cheese-Othello/internal/render"
	"github.com/park285/Cheese-Othello/internal/room"
)

const (
	RepoPostgres = "postgres"
	RepoRedis    = "redis"
	RepoMemory   = "memory"
)

// Deps is the wired server graph.
type Deps struct {
	Config   *config.AppConfig
	Catalog  *msgcat.Catalog
	Repo     rating.Repository
	RepoKind string
	Ratings  *rating.Store
	Hub      *gateway.Hub
	Registry *room.Registry
	Gateway  *gateway.Server
	API      *httpapi.Server
}

func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	log := obslog.L()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	repo, kind, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := rating.NewStore(repo)
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Load(loadCtx); err != nil {
		store.Close()
		_ = repo.Close()
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	hub := gateway.NewHub()
	reg := room.NewRegistry(room.Options{
		GraceWindow:   cfg.GraceWindow,
		InactivityTTL: cfg.InactivityTTL,
		SweepInterval: cfg.SweepInterval,
		CodeLength:    cfg.RoomCodeLength,
		Notifier:      hub,
		Recorder:      store,
		MoveText:      gateway.MoveText(cat),
	})
	gw := gateway.NewServer(hub, reg, cat, gateway.Options{
		SendQueueSize:    cfg.SendQueueSize,
		PingInterval:     cfg.PingInterval,
		AllowOrigins:     cfg.AllowOrigins,
		SpectateWhenFull: cfg.SpectateWhenFull,
	})
	api := httpapi.New(reg, store, httpapi.Options{
		LeaderboardSize: cfg.LeaderboardSize,
		Renderer:        render.NewPNGRenderer(0),
		Catalog:         cat,
	})

	log.Info("builder_ready",
		zap.String("repository", kind),
		zap.Duration("grace_window", cfg.GraceWindow),
		zap.Duration("inactivity_ttl", cfg.InactivityTTL),
	)
	return &Deps{
		Config:   cfg,
		Catalog:  cat,
		Repo:     repo,
		RepoKind: kind,
		Ratings:  store,
		Hub:      hub,
		Registry: reg,
		Gateway:  gw,
		API:      api,
	}, nil
}

// openRepository prefers Postgres, then Redis, then the in-memory repository.
func openRepository(ctx context.Context, cfg *config.AppConfig) (rating.Repository, string, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := rating.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("init postgres: %w", err)
		}
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(sctx); err != nil {
			_ = pg.Close()
			return nil, "", err
		}
		return pg, RepoPostgres, nil
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rr, err := rating.NewRedisRepository(cfg.RedisURL)
		if err != nil {
			return nil, "", fmt.Errorf("init redis: %w", err)
		}
		return rr, RepoRedis, nil
	}
	obslog.L().Warn("builder_memory_ratings", zap.String("hint", "set DATABASE_URL or REDIS_URL to keep ratings across restarts"))
	return rating.NewMemoryRepository(), RepoMemory, nil
}

// Handler mounts the WebSocket gateway at /ws.
func (d *Deps) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", d.Gateway)
	return mux
}

// Close tears down in dependency order: sessions, rooms, pending rating writes, storage.
func (d *Deps) Close() {
	d.Gateway.Close()
	d.Registry.Close()
	d.Ratings.Close()
	if err := d.Repo.Close(); err != nil {
		obslog.L().Warn("builder_repo_close", zap.Error(err))
	}
}
