package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Othello/internal/msgcat"
	"github.com/park285/Cheese-Othello/internal/room"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

type harness struct {
	hub *Hub
	reg *room.Registry
	srv *Server
	url string
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	cat := msgcat.MustDefault()
	hub := NewHub()
	reg := room.NewRegistry(room.Options{
		Notifier:      hub,
		SweepInterval: -1,
		GraceWindow:   time.Minute,
		MoveText:      MoveText(cat),
	})
	srv := NewServer(hub, reg, cat, opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		reg.Close()
	})
	return &harness{hub: hub, reg: reg, srv: srv, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, h.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, cmd othellodto.Command) {
	t.Helper()
	raw, err := othellodto.EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, c *websocket.Conn) othellodto.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, raw, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev, err := othellodto.DecodeEvent(raw)
	if err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return ev
}

func expect(t *testing.T, c *websocket.Conn, want othellodto.EventType) othellodto.Event {
	t.Helper()
	ev := recv(t, c)
	if ev.EventType() != want {
		t.Fatalf("event: got %s (%+v) want %s", ev.EventType(), ev, want)
	}
	return ev
}

// startMatch creates a room with alice and seats bob, draining the setup events.
func startMatch(t *testing.T, h *harness) (alice, bob *websocket.Conn, roomID string) {
	t.Helper()
	alice = h.dial(t)
	send(t, alice, othellodto.CreateRoom{Name: "alice"})
	created := expect(t, alice, othellodto.EvtRoomCreated).(othellodto.RoomCreated)
	roomID = created.RoomID

	bob = h.dial(t)
	send(t, bob, othellodto.JoinRoom{RoomID: strings.ToLower(roomID), Name: "bob"})
	for _, c := range []*websocket.Conn{alice, bob} {
		expect(t, c, othellodto.EvtPlayerJoined)
		started := expect(t, c, othellodto.EvtGameStarted).(othellodto.GameStarted)
		if started.State.Status != string(room.StatusActive) || started.State.Turn != "black" {
			t.Fatalf("started state: %+v", started.State)
		}
	}
	return alice, bob, roomID
}

func TestCreateJoinAndMove(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)

	send(t, alice, othellodto.MakeMove{RoomID: roomID, Row: 2, Col: 3})
	for _, c := range []*websocket.Conn{alice, bob} {
		mv := expect(t, c, othellodto.EvtMoveApplied).(othellodto.MoveApplied)
		if mv.Row != 2 || mv.Col != 3 || len(mv.Flipped) != 1 {
			t.Fatalf("move applied: %+v", mv)
		}
		if mv.State.Scores.Black != 4 || mv.State.Scores.White != 1 {
			t.Fatalf("scores: %+v", mv.State.Scores)
		}
	}
}

func TestInvalidMoveGoesToSenderOnly(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)

	send(t, alice, othellodto.MakeMove{RoomID: roomID, Row: 0, Col: 0})
	inv := expect(t, alice, othellodto.EvtInvalidMove).(othellodto.InvalidMove)
	if inv.Reason != othellodto.ReasonNoFlipDirection || !strings.Contains(inv.Message, "(0,0)") {
		t.Fatalf("invalid move: %+v", inv)
	}

	send(t, bob, othellodto.MakeMove{RoomID: roomID, Row: 2, Col: 3})
	errEv := expect(t, bob, othellodto.EvtError).(othellodto.ErrorEvent)
	if errEv.Code != othellodto.CodeNotYourTurn {
		t.Fatalf("error code: %+v", errEv)
	}

	// alice's next event must be her own move, not bob's rejection.
	send(t, alice, othellodto.MakeMove{RoomID: roomID, Row: 2, Col: 3})
	expect(t, alice, othellodto.EvtMoveApplied)
}

func TestErrorsBeforeRoom(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(`{"type":"fly","payload":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := expect(t, c, othellodto.EvtError).(othellodto.ErrorEvent)
	if ev.Code != othellodto.CodeBadRequest {
		t.Fatalf("code: %+v", ev)
	}

	send(t, c, othellodto.JoinRoom{RoomID: "NOPE42", Name: "carol"})
	ev = expect(t, c, othellodto.EvtError).(othellodto.ErrorEvent)
	if ev.Code != othellodto.CodeRoomNotFound || !strings.Contains(ev.Message, "NOPE42") {
		t.Fatalf("room not found: %+v", ev)
	}

	send(t, c, othellodto.UpdateMarker{Emoji: "*"})
	ev = expect(t, c, othellodto.EvtError).(othellodto.ErrorEvent)
	if ev.Code != othellodto.CodeNotInRoom {
		t.Fatalf("marker without room: %+v", ev)
	}
}

func TestFullRoomAndSpectatorFallback(t *testing.T) {
	h := newHarness(t, Options{})
	alice, _, roomID := startMatch(t, h)

	carol := h.dial(t)
	send(t, carol, othellodto.JoinRoom{RoomID: roomID, Name: "carol"})
	if ev := expect(t, carol, othellodto.EvtError).(othellodto.ErrorEvent); ev.Code != othellodto.CodeRoomFull {
		t.Fatalf("full: %+v", ev)
	}

	send(t, carol, othellodto.JoinRoom{RoomID: roomID, Name: "carol", Spectate: true})
	sj := expect(t, carol, othellodto.EvtSpectatorJoined).(othellodto.SpectatorJoined)
	if len(sj.State.Spectators) != 1 {
		t.Fatalf("spectators: %+v", sj.State.Spectators)
	}
	expect(t, alice, othellodto.EvtSpectatorJoined)

	fb := newHarness(t, Options{SpectateWhenFull: true})
	_, _, id2 := startMatch(t, fb)
	dave := fb.dial(t)
	send(t, dave, othellodto.JoinRoom{RoomID: id2, Name: "dave"})
	expect(t, dave, othellodto.EvtSpectatorJoined)
}

func TestCloseDisconnectsAndReconnectRestores(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)

	_ = bob.Close(websocket.StatusNormalClosure, "bye")
	dc := expect(t, alice, othellodto.EvtPlayerDisconnected).(othellodto.PlayerDisconnected)
	if dc.Name != "bob" {
		t.Fatalf("disconnected: %+v", dc)
	}

	bob2 := h.dial(t)
	send(t, bob2, othellodto.Reconnect{RoomID: roomID, Name: "bob"})
	for _, c := range []*websocket.Conn{alice, bob2} {
		rc := expect(t, c, othellodto.EvtPlayerReconnected).(othellodto.PlayerReconnected)
		if rc.Name != "bob" || rc.State.Turn != "black" {
			t.Fatalf("reconnected: %+v", rc)
		}
	}

	send(t, bob2, othellodto.UpdateMarker{Emoji: "@"})
	for _, c := range []*websocket.Conn{alice, bob2} {
		if mk := expect(t, c, othellodto.EvtMarkerUpdated).(othellodto.MarkerUpdated); mk.Emoji != "@" {
			t.Fatalf("marker: %+v", mk)
		}
	}
}

func TestLeaveAndRebind(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)

	send(t, bob, othellodto.LeaveRoom{RoomID: roomID})
	if pl := expect(t, alice, othellodto.EvtPlayerLeft).(othellodto.PlayerLeft); pl.Name != "bob" {
		t.Fatalf("left: %+v", pl)
	}

	send(t, bob, othellodto.CreateRoom{Name: "bob"})
	created := expect(t, bob, othellodto.EvtRoomCreated).(othellodto.RoomCreated)
	if created.RoomID == roomID {
		t.Fatalf("new room reused id %s", roomID)
	}
	if h.reg.Len() != 2 {
		t.Fatalf("rooms: got %d want 2", h.reg.Len())
	}
}

func TestRejectedJoinKeepsCurrentSeat(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)
	_, _, fullID := startMatch(t, h)

	send(t, alice, othellodto.JoinRoom{RoomID: "ZZZZZZ", Name: "alice"})
	if ev := expect(t, alice, othellodto.EvtError).(othellodto.ErrorEvent); ev.Code != othellodto.CodeRoomNotFound {
		t.Fatalf("missing room: %+v", ev)
	}
	send(t, alice, othellodto.Reconnect{RoomID: fullID, Name: "zed"})
	if ev := expect(t, alice, othellodto.EvtError).(othellodto.ErrorEvent); ev.Code != othellodto.CodeReconnectFailed {
		t.Fatalf("reconnect elsewhere: %+v", ev)
	}
	send(t, alice, othellodto.JoinRoom{RoomID: fullID, Name: "alice"})
	if ev := expect(t, alice, othellodto.EvtError).(othellodto.ErrorEvent); ev.Code != othellodto.CodeRoomFull {
		t.Fatalf("full room: %+v", ev)
	}

	// bob's next event is alice's move, so no player_left reached him.
	send(t, alice, othellodto.MakeMove{RoomID: roomID, Row: 2, Col: 3})
	for _, c := range []*websocket.Conn{alice, bob} {
		expect(t, c, othellodto.EvtMoveApplied)
	}

	rm, err := h.reg.Get(roomID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	st := rm.Snapshot()
	if st.Status != string(room.StatusActive) || len(st.Players) != 2 {
		t.Fatalf("state after rejections: %+v", st)
	}
	for _, p := range st.Players {
		if !p.Connected {
			t.Fatalf("player %s lost its connection: %+v", p.Name, st.Players)
		}
	}
	other, err := h.reg.Get(fullID)
	if err != nil {
		t.Fatalf("Get full room: %v", err)
	}
	if st := other.Snapshot(); len(st.Players) != 2 || len(st.Spectators) != 0 {
		t.Fatalf("other room touched: %+v", st)
	}
}

func TestJoinElsewhereLeavesPreviousRoom(t *testing.T) {
	h := newHarness(t, Options{})
	alice, bob, roomID := startMatch(t, h)

	carol := h.dial(t)
	send(t, carol, othellodto.CreateRoom{Name: "carol"})
	lobby := expect(t, carol, othellodto.EvtRoomCreated).(othellodto.RoomCreated)

	send(t, bob, othellodto.JoinRoom{RoomID: lobby.RoomID, Name: "bob"})
	if pl := expect(t, alice, othellodto.EvtPlayerLeft).(othellodto.PlayerLeft); pl.Name != "bob" {
		t.Fatalf("left: %+v", pl)
	}
	expect(t, carol, othellodto.EvtPlayerJoined)

	rm, err := h.reg.Get(roomID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, p := range rm.Snapshot().Players {
		if p.Name == "bob" && p.Connected {
			t.Fatalf("bob still active in previous room: %+v", p)
		}
	}
}

func TestCloseRefusesNewSessions(t *testing.T) {
	h := newHarness(t, Options{})
	h.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, resp, err := websocket.Dial(ctx, h.url, nil)
	if err == nil {
		_ = c.Close(websocket.StatusNormalClosure, "")
		t.Fatalf("dial after Close should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("dial after Close: resp=%v err=%v", resp, err)
	}
	if h.hub.Len() != 0 {
		t.Fatalf("hub len: %d", h.hub.Len())
	}
}

func TestHubDropsSlowConnection(t *testing.T) {
	hub := NewHub()
	c := newConn("slow", nil, 1)
	hub.add(c)

	hub.Notify([]string{"slow", "ghost"}, othellodto.GameReset{})
	if c.isClosed() {
		t.Fatalf("first message should fit the queue")
	}
	hub.Notify([]string{"slow"}, othellodto.GameReset{})
	if !c.isClosed() {
		t.Fatalf("overflow should close the connection")
	}
	if c.enqueue([]byte("x")) {
		t.Fatalf("enqueue on closed connection should fail")
	}
	if hub.Len() != 1 {
		t.Fatalf("hub len: %d", hub.Len())
	}
}
