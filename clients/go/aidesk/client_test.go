package aidesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/token"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

type recordedCall struct {
	Method string
	Path   string
	Body   string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []recordedCall
	mux   *http.ServeMux
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client, *notify.Queue) {
	t.Helper()
	f := &fakeAPI{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(body)})
		f.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store := token.NewMemoryStore()
	store.Write(context.Background(), "tok")
	q := notify.NewQueue(20)
	tr := transport.New(srv.URL+"/api", store, q, zerolog.Nop())
	c := NewClient(tr, q, zerolog.Nop())
	c.RetryDelay = 0
	return f, c, q
}

func (f *fakeAPI) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListChatsNormalizes(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("GET /api/chats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"uuid":"a","waiting":true,"ai":false,"name":"Ann","messager":"telegram","tags":[],"last_message":{"content":"hi","timestamp":"t"}}]`))
	})

	chats, ok := c.ListChats(context.Background())
	if !ok {
		t.Fatal("expected ok")
	}
	if len(chats) != 1 || chats[0].LastMessage != "hi" || !chats[0].Waiting {
		t.Fatalf("unexpected chats %+v", chats)
	}
}

func TestReadsDegradeToEmpty(t *testing.T) {
	f, c, q := newFakeAPI(t)
	f.mux.HandleFunc("GET /api/chats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	f.mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	chats, ok := c.ListChats(context.Background())
	if ok || chats == nil || len(chats) != 0 {
		t.Fatalf("expected empty non-nil slice and ok=false, got %#v %v", chats, ok)
	}
	stats, ok := c.Stats(context.Background())
	if ok || stats != (models.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if n := len(q.Drain()); n != 2 {
		t.Fatalf("expected 2 notices, got %d", n)
	}
	// HTTP errors are not retried.
	if n := len(f.recorded()); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

// flakyDoer fails the first call at the transport level.
type flakyDoer struct {
	calls int
	resp  *transport.Response
}

func (d *flakyDoer) Do(ctx context.Context, r transport.Request) (*transport.Response, error) {
	d.calls++
	if d.calls == 1 {
		return nil, errors.New("connection reset")
	}
	return d.resp, nil
}

func TestReadRetriesOnce(t *testing.T) {
	d := &flakyDoer{resp: &transport.Response{StatusCode: 200, Body: []byte(`{"total":3,"pending":1,"ai":2}`)}}
	c := NewClient(d, nil, zerolog.Nop())
	c.RetryDelay = 0

	stats, ok := c.Stats(context.Background())
	if !ok || stats.Total != 3 || stats.Pending != 1 || stats.AI != 2 {
		t.Fatalf("unexpected stats %+v ok=%v", stats, ok)
	}
	if d.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", d.calls)
	}
}

// alwaysFailDoer fails every call.
type alwaysFailDoer struct{ calls int }

func (d *alwaysFailDoer) Do(ctx context.Context, r transport.Request) (*transport.Response, error) {
	d.calls++
	return nil, errors.New("network down")
}

func TestReadRetryIsBounded(t *testing.T) {
	d := &alwaysFailDoer{}
	c := NewClient(d, nil, zerolog.Nop())
	c.RetryDelay = 0

	if _, ok := c.ListMessages(context.Background(), 1); ok {
		t.Fatal("expected degraded result")
	}
	if d.calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", d.calls)
	}
}

func TestWritesDoNotRetry(t *testing.T) {
	d := &alwaysFailDoer{}
	c := NewClient(d, nil, zerolog.Nop())

	if err := c.DeleteChat(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if d.calls != 1 {
		t.Fatalf("writes must not retry, got %d calls", d.calls)
	}
}

func TestSendMessageClearsWaiting(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 99, "chat_id": 7, "message": "hi", "message_type": "answer", "ai": false, "created_at": "now",
		})
	})
	f.mux.HandleFunc("PUT /api/chats/7/waiting", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 7, "waiting": false})
	})

	msg, err := c.SendMessage(context.Background(), 7, "hi", false)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != 99 || msg.ChatID != 7 {
		t.Fatalf("unexpected message %+v", msg)
	}

	calls := f.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	var sent SendMessageRequest
	json.Unmarshal([]byte(calls[0].Body), &sent)
	if sent.ChatID != 7 || sent.MessageType != models.Answer || sent.AI || sent.Message != "hi" {
		t.Fatalf("unexpected send body %s", calls[0].Body)
	}
	if calls[1].Method != http.MethodPut || calls[1].Path != "/api/chats/7/waiting" || calls[1].Body != `{"waiting":false}` {
		t.Fatalf("unexpected second call %+v", calls[1])
	}
}

func TestSendMessageIgnoresWaitingFailure(t *testing.T) {
	f, c, q := newFakeAPI(t)
	f.mux.HandleFunc("POST /api/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 5, "chat_id": 7, "message": "hi", "message_type": "answer"})
	})
	f.mux.HandleFunc("PUT /api/chats/7/waiting", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	msg, err := c.SendMessage(context.Background(), 7, "hi", false)
	if err != nil {
		t.Fatalf("waiting failure must not surface: %v", err)
	}
	if msg.ID != 5 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if n := len(q.Drain()); n != 0 {
		t.Fatalf("waiting failure must not notify, got %d notices", n)
	}
}

func TestWriteErrorsPropagate(t *testing.T) {
	f, c, q := newFakeAPI(t)
	f.mux.HandleFunc("PUT /api/chats/3/ai", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Chat not found"})
	})

	_, err := c.SetAI(context.Background(), 3, true)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if n := len(q.Drain()); n != 1 {
		t.Fatalf("expected 1 notice, got %d", n)
	}
}

func TestTags(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("POST /api/chats/7/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tags": []string{"vip"}})
	})
	f.mux.HandleFunc("DELETE /api/chats/7/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tags": nil})
	})
	f.mux.HandleFunc("POST /api/chats/8/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "error"})
	})

	res, err := c.AddTag(context.Background(), 7, "vip")
	if err != nil || len(res.Tags) != 1 {
		t.Fatalf("unexpected add result %+v %v", res, err)
	}
	res, err = c.RemoveTag(context.Background(), 7, "new lead")
	if err != nil || res.Tags == nil || len(res.Tags) != 0 {
		t.Fatalf("unexpected remove result %+v %v", res, err)
	}
	calls := f.recorded()
	if calls[1].Path != "/api/chats/7/tags/new%20lead" {
		t.Fatalf("tag not escaped: %s", calls[1].Path)
	}
	if _, err := c.AddTag(context.Background(), 8, "x"); err == nil {
		t.Fatal("expected error for unsuccessful tag result")
	}
}

func TestSyncVK(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("POST /api/chats/4/sync-vk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"message":"Messages synchronized successfully","vk_count":10,"db_count_before":8,"db_count_after":10}`))
	})

	res, err := c.SyncVK(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.VKCount == nil || *res.VKCount != 10 || res.DBCountBefore == nil || *res.DBCountBefore != 8 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUnauthorizedWrite(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("DELETE /api/chats/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.DeleteChat(context.Background(), 1)
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestAIContextRoundTrip(t *testing.T) {
	f, c, _ := newFakeAPI(t)
	f.mux.HandleFunc("PUT /api/ai/context", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	})

	in := models.AIContext{SystemMessage: "be kind", FAQs: json.RawMessage(`[{"q":"a","a":"b"}]`)}
	out, err := c.UpdateAIContext(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.SystemMessage != "be kind" || string(out.FAQs) != `[{"q":"a","a":"b"}]` {
		t.Fatalf("unexpected context %+v", out)
	}
}
