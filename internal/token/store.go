// Package token holds the operator's bearer token in a single durable slot.
package token

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eldtechnologies/aidesk/internal/config"
)

// Key is the name of the one durable slot every backend uses.
const Key = "access_token"

// Store is a single-slot token store. Implementations are safe for concurrent use.
type Store interface {
	// Read returns the stored token and whether one is present.
	Read(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Open builds the store selected by cfg.TokenStore.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.TokenStore {
	case "", "file":
		return NewFileStore(cfg.TokenDir), nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis token store")
		}
		return NewRedisStore(ctx, cfg.RedisURL)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// MemoryStore keeps the token for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.value != "", nil
}

func (s *MemoryStore) Write(ctx context.Context, token string) error {
	s.mu.Lock()
	s.value = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.value = ""
	s.mu.Unlock()
	return nil
}

// FileStore persists the token as a 0600 file under a config directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a store rooted at dir (e.g. ~/.aidesk).
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, Key)
}

func (s *FileStore) Read(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value := strings.TrimSpace(string(data))
	return value, value != "", nil
}

func (s *FileStore) Write(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path(), []byte(token), 0600)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
