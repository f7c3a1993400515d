package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer upgrades one connection, writes frames, then forwards whatever
// the client sends to received.
func testServer(t *testing.T, frames []string, received chan<- []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc.def.ghi" {
			t.Errorf("authorization = %q", got)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if received != nil {
				received <- data
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startChannel(t *testing.T, url string) (*Channel, context.CancelFunc) {
	t.Helper()
	store := token.NewMemoryStore()
	store.Write(context.Background(), "abc.def.ghi")

	ch := New(url, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ch, cancel
}

func next(t *testing.T, c <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestDispatch(t *testing.T) {
	url := testServer(t, []string{
		`{"type":"message","id":1,"chat_id":7,"message":"hi"}`,
		`not json`,
		`{"type":"typing","chat_id":7}`,
		`"{\"type\":\"chat_tags_updated\",\"chatId\":7,\"tags\":[\"vip\"]}"`,
		`{"type":"chat_deleted","chat_id":3}`,
		`{"type":"message","id":1,"chat_id":7,"message":"hi"}`,
	}, nil)

	ch, _ := startChannel(t, url)

	first := next(t, ch.Messages())
	if first.Type != "message" {
		t.Fatalf("type = %q", first.Type)
	}

	upd := next(t, ch.Updates())
	if upd.Type != "chat_tags_updated" {
		t.Fatalf("type = %q", upd.Type)
	}
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(upd.Payload, &body); err != nil {
		t.Fatalf("string-wrapped payload not unwrapped: %v", err)
	}
	if len(body.Tags) != 1 || body.Tags[0] != "vip" {
		t.Fatalf("tags = %v", body.Tags)
	}

	if got := next(t, ch.Updates()).Type; got != "chat_deleted" {
		t.Fatalf("type = %q", got)
	}

	second := next(t, ch.Messages())
	if first.ID == second.ID {
		t.Fatal("identical payloads must be distinct events")
	}
	if string(first.Payload) != string(second.Payload) {
		t.Fatalf("payloads differ: %s vs %s", first.Payload, second.Payload)
	}
	if latest := ch.LatestMessage(); latest == nil || latest.ID != second.ID {
		t.Fatal("latest message not updated")
	}
	if latest := ch.LatestUpdate(); latest == nil || latest.Type != "chat_deleted" {
		t.Fatal("latest update not updated")
	}

	select {
	case ev := <-ch.Updates():
		t.Fatalf("unexpected update %q", ev.Type)
	case ev := <-ch.Messages():
		t.Fatalf("unexpected message %q", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSend(t *testing.T) {
	received := make(chan []byte, 1)
	url := testServer(t, nil, received)
	ch, _ := startChannel(t, url)

	deadline := time.Now().Add(2 * time.Second)
	for !ch.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := ch.Send(context.Background(), map[string]any{"type": "message", "id": 42, "chat_id": 7}); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-received:
		var got struct {
			Type   string `json:"type"`
			ID     int    `json:"id"`
			ChatID int    `json:"chat_id"`
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "message" || got.ID != 42 || got.ChatID != 7 {
			t.Fatalf("server got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the payload")
	}
}

func TestSendNotConnected(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", token.NewMemoryStore(), zerolog.Nop())
	if err := ch.Send(context.Background(), map[string]string{"type": "message"}); err != ErrNotConnected {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", token.NewMemoryStore(), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- ch.Run(ctx) }()

	select {
	case err := <-errc:
		if err != context.DeadlineExceeded {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
