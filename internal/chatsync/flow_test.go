package chatsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/clients/go/aidesk"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/token"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// TestSendFlowOverHTTP runs the whole stack: the token comes from the start
// address, every request carries it, and a send issues the create call, the
// waiting-flag clear and the realtime echo in that order.
func TestSendFlowOverHTTP(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		sent  map[string]any
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7,"uuid":"u-7","waiting":false,"ai":false,"name":"Ann","messager":"telegram","tags":[],"last_message":{"content":"hello","timestamp":"10:00"}}]`))
	})
	mux.HandleFunc("GET /api/chats/7/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		w.Write([]byte(`{"id":55,"chat_id":7,"message":"hi","message_type":"answer","ai":false,"created_at":"2024-05-01T10:00:00"}`))
	})
	mux.HandleFunc("PUT /api/chats/7/waiting", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":7,"waiting":false}`))
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if got := r.Header.Get("Authorization"); got != "Bearer abc.def.ghi" {
			t.Errorf("%s %s: authorization = %q", r.Method, r.URL.Path, got)
		}
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	ctx := context.Background()
	store := token.NewMemoryStore()
	cleaned, _, found, err := token.ExtractAndPersist(ctx, store, "https://desk.example/app?access_token=abc.def.ghi&tab=chats")
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if strings.Contains(cleaned, "access") || !strings.Contains(cleaned, "tab=chats") {
		t.Fatalf("cleaned = %q", cleaned)
	}

	q := notify.NewQueue(10)
	tr := transport.New(srv.URL+"/api", store, q, zerolog.Nop())
	client := aidesk.NewClient(tr, q, zerolog.Nop())
	sender := &fakeSender{}
	core := New(client, sender, zerolog.Nop())

	if !core.RefreshChats(ctx) {
		t.Fatal("refresh not applied")
	}
	if ch, _ := core.Chat(7); ch.LastMessage != "hello" || ch.LastMessageTime != "10:00" {
		t.Fatalf("preview = %+v", ch)
	}
	if err := core.SelectChat(ctx, ptr(7)); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	calls = nil
	mu.Unlock()

	msg, err := core.SendMessage(ctx, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != 55 {
		t.Fatalf("message = %+v", msg)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"POST /api/messages", "PUT /api/chats/7/waiting"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v", calls)
	}
	if sent["chat_id"] != float64(7) || sent["message_type"] != "answer" || sent["ai"] != false {
		t.Fatalf("create body = %v", sent)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("echoes = %d", len(sender.sent))
	}
	echo := sender.sent[0].(Echo)
	if echo.ID != 55 || echo.ChatID != 7 {
		t.Fatalf("echo = %+v", echo)
	}
	if notices := q.Drain(); len(notices) != 0 {
		t.Fatalf("unexpected notices %+v", notices)
	}
}
