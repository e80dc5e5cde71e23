package chatws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rently/relay/internal/config"
	"rently/relay/internal/registry"
	"rently/relay/internal/relay"
	"rently/relay/internal/types"

	ws "nhooyr.io/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	cfg := config.Load()
	reg := registry.New()
	s := NewServer(cfg, relay.New(reg, cfg.Relay.SendBuffer))
	srv := httptest.NewServer(http.HandlerFunc(s.HandleChatWS))
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *ws.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1)
	c, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func send(t *testing.T, ctx context.Context, c *ws.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, _ := json.Marshal(types.ClientEvent{Type: typ, Payload: raw})
	if err := c.Write(ctx, ws.MessageText, data); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type recvEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func recv(t *testing.T, ctx context.Context, c *ws.Conn) recvEvent {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev recvEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestJoinAndBroadcastOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, srv)
	defer alice.Close(ws.StatusNormalClosure, "")
	bob := dial(t, ctx, srv)
	defer bob.Close(ws.StatusNormalClosure, "")

	send(t, ctx, alice, types.EvJoinRoom, types.JoinRoom{RoomID: "r1", Username: "Alice"})
	if ev := recv(t, ctx, alice); ev.Type != types.EvRoomJoined {
		t.Fatalf("expected room-joined, got %s", ev.Type)
	}

	send(t, ctx, bob, types.EvJoinRoom, types.JoinRoom{RoomID: "r1", Username: "Bob"})
	ev := recv(t, ctx, bob)
	if ev.Type != types.EvRoomJoined {
		t.Fatalf("expected room-joined for Bob, got %s", ev.Type)
	}
	var joined types.RoomJoined
	if err := json.Unmarshal(ev.Payload, &joined); err != nil {
		t.Fatalf("unmarshal room-joined: %v", err)
	}
	if len(joined.Members) != 2 {
		t.Fatalf("expected two members, got %+v", joined.Members)
	}
	if ev := recv(t, ctx, alice); ev.Type != types.EvUserJoined {
		t.Fatalf("expected user-joined for Alice, got %s", ev.Type)
	}

	send(t, ctx, bob, types.EvSendMessage, types.SendMessage{RoomID: "r1", Body: "hello"})
	for _, c := range []*ws.Conn{alice, bob} {
		ev := recv(t, ctx, c)
		if ev.Type != types.EvNewMessage {
			t.Fatalf("expected new-message, got %s", ev.Type)
		}
		var msg types.NewMessage
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			t.Fatalf("unmarshal new-message: %v", err)
		}
		if msg.SenderName != "Bob" || msg.Body != "hello" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestDisconnectNotifiesRoomOverWebSocket(t *testing.T) {
	srv, reg := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, srv)
	defer alice.Close(ws.StatusNormalClosure, "")
	bob := dial(t, ctx, srv)

	send(t, ctx, alice, types.EvJoinRoom, types.JoinRoom{RoomID: "r1", Username: "Alice"})
	recv(t, ctx, alice)
	send(t, ctx, bob, types.EvJoinRoom, types.JoinRoom{RoomID: "r1", Username: "Bob"})
	recv(t, ctx, bob)
	recv(t, ctx, alice) // user-joined for Bob

	bob.Close(ws.StatusNormalClosure, "bye")

	ev := recv(t, ctx, alice)
	if ev.Type != types.EvUserLeft {
		t.Fatalf("expected user-left, got %s", ev.Type)
	}
	var left types.UserLeft
	if err := json.Unmarshal(ev.Payload, &left); err != nil {
		t.Fatalf("unmarshal user-left: %v", err)
	}
	if left.Username != "Bob" || left.Message != "Bob disconnected" {
		t.Fatalf("unexpected user-left payload: %+v", left)
	}

	// Registry settles once the handler finishes its disconnect path.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if members := reg.MembersOf("r1"); len(members) == 1 && members[0].Username == "Alice" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected only Alice remaining, got %+v", reg.MembersOf("r1"))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMalformedEventGetsErrorAndKeepsConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, srv)
	defer c.Close(ws.StatusNormalClosure, "")

	if err := c.Write(ctx, ws.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := recv(t, ctx, c); ev.Type != types.EvError {
		t.Fatalf("expected error event, got %s", ev.Type)
	}

	// Connection still works after the bad frame.
	send(t, ctx, c, types.EvJoinRoom, types.JoinRoom{RoomID: "r1", Username: "Alice"})
	if ev := recv(t, ctx, c); ev.Type != types.EvRoomJoined {
		t.Fatalf("expected room-joined after bad frame, got %s", ev.Type)
	}
}
