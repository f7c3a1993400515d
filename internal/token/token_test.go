package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestExtractFromQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cleaned, tok, found, err := ExtractAndPersist(ctx, s, "https://desk.example.com/app?access_token=abc.def.ghi")
	if err != nil {
		t.Fatal(err)
	}
	if !found || tok != "abc.def.ghi" {
		t.Fatalf("expected abc.def.ghi, got %q (found=%v)", tok, found)
	}
	if cleaned != "https://desk.example.com/app" {
		t.Fatalf("unexpected cleaned address %q", cleaned)
	}
	stored, ok, _ := s.Read(ctx)
	if !ok || stored != "abc.def.ghi" {
		t.Fatalf("token not persisted, got %q", stored)
	}
}

func TestExtractKeepsOtherParams(t *testing.T) {
	cleaned, tok, found, err := ExtractAndPersist(context.Background(), NewMemoryStore(),
		"http://localhost:3000/app?x=1&access=tok&y=2#/chats")
	if err != nil {
		t.Fatal(err)
	}
	if !found || tok != "tok" {
		t.Fatalf("expected tok, got %q", tok)
	}
	if cleaned != "http://localhost:3000/app?x=1&y=2#/chats" {
		t.Fatalf("unexpected cleaned address %q", cleaned)
	}
}

func TestExtractFromFragment(t *testing.T) {
	cleaned, tok, found, _ := ExtractAndPersist(context.Background(), NewMemoryStore(),
		"http://localhost/#access_token=frag.tok.en&state=1")
	if !found || tok != "frag.tok.en" {
		t.Fatalf("expected fragment token, got %q", tok)
	}
	if cleaned != "http://localhost/#state=1" {
		t.Fatalf("unexpected cleaned address %q", cleaned)
	}

	cleaned, tok, found, _ = ExtractAndPersist(context.Background(), NewMemoryStore(),
		"http://localhost/#/chats?access=r.o.ute")
	if !found || tok != "r.o.ute" {
		t.Fatalf("expected routed fragment token, got %q", tok)
	}
	if cleaned != "http://localhost/#/chats" {
		t.Fatalf("unexpected cleaned address %q", cleaned)
	}
}

func TestExtractPrefersAccessToken(t *testing.T) {
	tok := Find("http://localhost/?access=old&access_token=new")
	if tok != "new" {
		t.Fatalf("expected access_token to win, got %q", tok)
	}
}

func TestExtractFallbackPattern(t *testing.T) {
	// Invalid percent escape in the path defeats url.Parse.
	cleaned, tok, found, _ := ExtractAndPersist(context.Background(), NewMemoryStore(),
		"http://localhost/%zz?access_token=raw")
	if !found || tok != "raw" {
		t.Fatalf("expected fallback match, got %q", tok)
	}
	if cleaned != "http://localhost/%zz" {
		t.Fatalf("unexpected cleaned address %q", cleaned)
	}
}

func TestExtractNoMatchKeepsPreviousToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Write(ctx, "previous")

	cleaned, _, found, err := ExtractAndPersist(ctx, s, "http://localhost/app?x=1")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match")
	}
	if cleaned != "http://localhost/app?x=1" {
		t.Fatalf("address should be unchanged, got %q", cleaned)
	}
	if v, _, _ := s.Read(ctx); v != "previous" {
		t.Fatalf("previous token lost, got %q", v)
	}
}

func TestExtractIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first, _, _, _ := ExtractAndPersist(ctx, s, "http://localhost/app?access_token=a.b.c")
	second, _, found, _ := ExtractAndPersist(ctx, s, first)
	if found || second != first {
		t.Fatalf("second extraction should be a no-op, got %q found=%v", second, found)
	}
	if v, _, _ := s.Read(ctx); v != "a.b.c" {
		t.Fatalf("token lost, got %q", v)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "cfg"))

	if _, ok, err := s.Read(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := s.Write(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Read(ctx); !ok || v != "tok" {
		t.Fatalf("expected tok, got %q", v)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clearing twice should not fail: %v", err)
	}
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatal("expected token cleared")
	}
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, redisURL)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.key = "aidesk:test:" + t.Name()
	defer s.Clear(ctx)

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := s.Read(ctx); err != nil || ok || v != "" {
		t.Fatalf("missing key: got %q ok=%v err=%v", v, ok, err)
	}

	if err := s.Write(ctx, "abc.def.ghi"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Read(ctx); !ok || v != "abc.def.ghi" {
		t.Fatalf("expected abc.def.ghi, got %q", v)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Read(ctx); ok || err != nil {
		t.Fatalf("expected token cleared, ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "aidesk.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Write(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "two"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Read(ctx); !ok || v != "two" {
		t.Fatalf("expected two, got %q", v)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatal("expected token cleared")
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := ExpiresAt(signed)
	if !ok {
		t.Fatal("expected expiry to decode")
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}

	if _, ok := ExpiresAt("abc.def.ghi"); ok {
		t.Fatal("garbage token should not decode")
	}
}

func TestLoginTokenFieldVariants(t *testing.T) {
	for _, field := range []string{"access_token", "token", "access"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/auth/login" || r.Header.Get("Authorization") != "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{field: "tok-" + field})
		}))

		got, err := Login(context.Background(), srv.Client(), srv.URL+"/auth", "a@b.c", "pw")
		srv.Close()
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if got != "tok-"+field {
			t.Fatalf("%s: got %q", field, got)
		}
	}
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad credentials"}`))
	}))
	defer srv.Close()

	if _, err := Login(context.Background(), srv.Client(), srv.URL, "a@b.c", "nope"); err == nil {
		t.Fatal("expected error")
	}
}
