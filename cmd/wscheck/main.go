package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Othello/internal/othelloclient"
	"github.com/park285/Cheese-Othello/pkg/othellodto"
)

// wscheck creates a room with one session, joins it with a second, plays the opening move
// and prints every event it sees.
func main() {
	baseURL := os.Getenv("OTHELLO_API_URL")
	wsURL := os.Getenv("OTHELLO_WS_URL")
	if wsURL == "" {
		log.Fatal("OTHELLO_WS_URL is required")
	}

	if baseURL != "" {
		client := othelloclient.NewClient(baseURL, othelloclient.WithTimeout(8*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Health(ctx); err != nil {
			log.Printf("/healthz error: %v", err)
		} else {
			log.Printf("/healthz ok")
		}
		if rooms, err := client.ListRooms(ctx); err == nil {
			log.Printf("/rooms ok: %d open", len(rooms))
		}
		cancel()
	}

	created := make(chan string, 1)
	started := make(chan struct{}, 2)
	moved := make(chan struct{}, 2)

	host := session(wsURL, "host", func(ev othellodto.Event) {
		switch e := ev.(type) {
		case othellodto.RoomCreated:
			created <- e.RoomID
		case othellodto.GameStarted:
			started <- struct{}{}
		case othellodto.MoveApplied:
			moved <- struct{}{}
		}
	})
	guest := session(wsURL, "guest", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	must(host.Connect(ctx))
	must(guest.Connect(ctx))

	must(host.Send(ctx, othellodto.CreateRoom{Name: "wscheck-host"}))
	roomID := wait(ctx, created)
	must(guest.Send(ctx, othellodto.JoinRoom{RoomID: roomID, Name: "wscheck-guest"}))
	wait(ctx, started)
	must(host.Send(ctx, othellodto.MakeMove{RoomID: roomID, Row: 2, Col: 3}))
	wait(ctx, moved)
	log.Printf("room %s ok", roomID)

	_ = guest.Send(ctx, othellodto.LeaveRoom{RoomID: roomID})
	_ = host.Send(ctx, othellodto.LeaveRoom{RoomID: roomID})
	_ = guest.Close(context.Background())
	_ = host.Close(context.Background())
}

func session(url, label string, extra othelloclient.EventCallback) *othelloclient.Session {
	s := othelloclient.NewSession(url, othelloclient.WithReconnect(3, 500*time.Millisecond))
	s.OnStateChange(func(state othelloclient.State) {
		log.Printf("[%s] WS state: %s", label, state)
	})
	s.OnEvent(func(ev othellodto.Event) {
		fmt.Printf("[%s] %s %s\n", label, ev.EventType(), summary(ev))
		if extra != nil {
			extra(ev)
		}
	})
	return s
}

func summary(ev othellodto.Event) string {
	switch e := ev.(type) {
	case othellodto.MoveApplied:
		return fmt.Sprintf("(%d,%d) flipped=%d", e.Row, e.Col, len(e.Flipped))
	case othellodto.ErrorEvent:
		return e.Code + ": " + e.Message
	case othellodto.InvalidMove:
		return e.Reason
	case othellodto.PlayerJoined:
		return strings.Join(names(e.State), ",")
	default:
		return ""
	}
}

func names(st othellodto.RoomState) []string {
	out := make([]string, 0, len(st.Players))
	for _, p := range st.Players {
		out = append(out, p.Name)
	}
	return out
}

func wait[T any](ctx context.Context, ch chan T) T {
	select {
	case v := <-ch:
		return v
	case <-ctx.Done():
		log.Fatalf("timed out: %v", ctx.Err())
	}
	var zero T
	return zero
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
