package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/msgcat"
	"github.com/park285/Cheese-Othello/internal/obslog"
	"github.com/park285/Cheese-Othello/internal/othello"
	"github.com/park285/Cheese-Othello/internal/render"
	"github.com/park285/Cheese-Othello/internal/room"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
	renderTimeout      = 5 * time.Second
)

// Leaderboard is the read side of the rating store.
type Leaderboard interface {
	TopRatings(n int) []*domain.RatingRecord
}

type Options struct {
	LeaderboardSize int
	Renderer        render.Renderer
	Catalog         *msgcat.Catalog
}

// Server exposes read-only room and rating views over HTTP.
type Server struct {
	reg      *room.Registry
	ratings  Leaderboard
	renderer render.Renderer
	cat      *msgcat.Catalog
	topN     int

	srv *fasthttp.Server
}

func New(reg *room.Registry, ratings Leaderboard, opts Options) *Server {
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = defaultLeaderboard
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewPNGRenderer(0)
	}
	if opts.Catalog == nil {
		opts.Catalog = msgcat.MustDefault()
	}
	s := &Server{reg: reg, ratings: ratings, renderer: opts.Renderer, cat: opts.Catalog, topN: opts.LeaderboardSize}
	s.srv = &fasthttp.Server{
		Handler:      s.Handler,
		Name:         "othello",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	obslog.L().Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler routes requests. Only GET and HEAD are served.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, othellodto.CodeBadRequest, "method not allowed")
		return
	}
	path := strings.TrimRight(string(ctx.Path()), "/")
	switch {
	case path == "/healthz":
		s.health(ctx)
	case path == "/rooms":
		writeJSON(ctx, fasthttp.StatusOK, s.reg.ListLobby())
	case path == "/leaderboard":
		s.leaderboard(ctx)
	case strings.HasPrefix(path, "/rooms/"):
		rest := strings.TrimPrefix(path, "/rooms/")
		if id, ok := strings.CutSuffix(rest, "/board.png"); ok {
			s.boardPNG(ctx, id)
			return
		}
		if strings.Contains(rest, "/") {
			writeError(ctx, fasthttp.StatusNotFound, othellodto.CodeBadRequest, "not found")
			return
		}
		s.roomState(ctx, rest)
	default:
		writeError(ctx, fasthttp.StatusNotFound, othellodto.CodeBadRequest, "not found")
	}
}

func (s *Server) health(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"status": "ok", "rooms": s.reg.Len()})
}

func (s *Server) leaderboard(ctx *fasthttp.RequestCtx) {
	n := s.topN
	if raw := ctx.QueryArgs().Peek("n"); len(raw) > 0 {
		v, err := strconv.Atoi(string(raw))
		if err != nil || v <= 0 {
			writeError(ctx, fasthttp.StatusBadRequest, othellodto.CodeBadRequest, "n must be a positive integer")
			return
		}
		n = min(v, maxLeaderboard)
	}
	rows := []othellodto.RatingRecord{}
	if s.ratings != nil {
		for _, r := range s.ratings.TopRatings(n) {
			rows = append(rows, othellodto.RatingRecord{
				Name:           r.Name,
				Rating:         r.Rating,
				Wins:           r.Wins,
				Losses:         r.Losses,
				Ties:           r.Ties,
				GamesPlayed:    r.GamesPlayed,
				PointsScored:   r.PointsScored,
				PointsConceded: r.PointsConceded,
			})
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, rows)
}

func (s *Server) lookup(ctx *fasthttp.RequestCtx, id string) (*room.Room, bool) {
	rm, err := s.reg.Get(id)
	if err != nil {
		code := room.ErrorCode(err)
		msg := s.cat.Text("errors."+code, map[string]any{"RoomID": room.NormalizeID(id)}, err.Error())
		writeError(ctx, fasthttp.StatusNotFound, code, msg)
		return nil, false
	}
	return rm, true
}

func (s *Server) roomState(ctx *fasthttp.RequestCtx, id string) {
	rm, ok := s.lookup(ctx, id)
	if !ok {
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, rm.Snapshot())
}

func (s *Server) boardPNG(ctx *fasthttp.RequestCtx, id string) {
	rm, ok := s.lookup(ctx, id)
	if !ok {
		return
	}
	st := rm.Snapshot()
	board := rm.Board()
	last, flipped := rm.LastMove()

	valid := make([]othello.Coord, 0, len(st.ValidMoves))
	for _, c := range st.ValidMoves {
		valid = append(valid, othello.Coord{Row: c.Row, Col: c.Col})
	}
	opts := render.Options{
		Header:     s.header(st),
		Status:     s.status(st),
		Last:       last,
		Flipped:    flipped,
		ValidMoves: valid,
	}
	rctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	png, err := s.renderer.RenderPNG(rctx, board, opts)
	if err != nil {
		obslog.L().Error("http_render_error", zap.String("room_id", st.RoomID), zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, othellodto.CodeInternal, s.cat.Text("errors.internal", nil, "render failed"))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("image/png")
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetBody(png)
}

func (s *Server) header(st othellodto.RoomState) string {
	names := make([]string, 0, len(st.Players))
	for _, p := range st.Players {
		names = append(names, p.Name)
	}
	return st.RoomID + "  " + strings.Join(names, " vs ")
}

func (s *Server) status(st othellodto.RoomState) string {
	score := s.cat.Text("render.hud_score", map[string]any{"Black": st.Scores.Black, "White": st.Scores.White}, "")
	var head string
	switch {
	case st.Status == string(room.StatusLobby):
		head = s.cat.Text("render.hud_lobby", nil, "Waiting for opponent")
	case st.Status == string(room.StatusFinished) && st.Winner == string(room.WinnerDraw):
		head = s.cat.Text("render.hud_draw", nil, "Draw")
	case st.Status == string(room.StatusFinished):
		head = s.cat.Text("render.hud_finished", map[string]any{"Winner": st.Winner}, st.Winner)
	default:
		head = s.cat.Text("render.hud_turn", map[string]any{"Turn": st.Turn}, st.Turn)
	}
	if score == "" {
		return head
	}
	return head + "  " + score
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		obslog.L().Error("http_encode_error", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, othellodto.ErrorEvent{Code: code, Message: msg})
}
