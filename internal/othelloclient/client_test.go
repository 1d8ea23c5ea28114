package othelloclient

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/Cheese-Othello/internal/domain"
	"github.com/park285/Cheese-Othello/internal/httpapi"
	"github.com/park285/Cheese-Othello/internal/room"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

type staticBoard []*domain.RatingRecord

func (b staticBoard) TopRatings(n int) []*domain.RatingRecord {
	if n > len(b) {
		n = len(b)
	}
	return b[:n]
}

func newAPIClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewClient("http://othello.test/", WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
}

func TestClientReadsAPI(t *testing.T) {
	reg := room.NewRegistry(room.Options{SweepInterval: -1})
	t.Cleanup(reg.Close)
	rm, err := reg.Create("id-a", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	api := httpapi.New(reg, staticBoard{{Name: "alice", Rating: 1015}}, httpapi.Options{})
	c := newAPIClient(t, api.Handler)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	rooms, err := c.ListRooms(ctx)
	if err != nil || len(rooms) != 1 || rooms[0].RoomID != rm.ID() {
		t.Fatalf("rooms: %+v err %v", rooms, err)
	}
	st, err := c.RoomState(ctx, rm.ID())
	if err != nil || st.Status != string(room.StatusLobby) {
		t.Fatalf("state: %+v err %v", st, err)
	}
	rows, err := c.Leaderboard(ctx, 5)
	if err != nil || len(rows) != 1 || rows[0].Rating != 1015 {
		t.Fatalf("leaderboard: %+v err %v", rows, err)
	}
	png, err := c.BoardPNG(ctx, rm.ID())
	if err != nil || len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("png: %d bytes err %v", len(png), err)
	}

	_, err = c.RoomState(ctx, "NOROOM")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusNotFound || apiErr.Code != othellodto.CodeRoomNotFound {
		t.Fatalf("missing room: %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newAPIClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`[]`)
	})
	rooms, err := c.ListRooms(context.Background())
	if err != nil || len(rooms) != 0 {
		t.Fatalf("rooms: %+v err %v", rooms, err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls: %d", n)
	}
}
