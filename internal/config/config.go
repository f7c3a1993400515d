package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the dashboard client.
type Config struct {
	Env     string
	APIURL  string // REST base, e.g. http://localhost:8000/api
	AuthURL string // login service base
	WSURL   string // realtime endpoint

	// Token storage. TokenStore is one of "file", "redis", "sqlite", "memory".
	TokenStore string
	TokenDir   string
	RedisURL   string
	SQLitePath string

	// Local bridge
	BridgeAddr     string
	BridgeToken    string // when set, bridge callers must present it as a bearer token
	AllowedOrigins []string

	// StartURL is the address the operator was sent to; a token embedded in it
	// is extracted once at startup.
	StartURL string
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		APIURL:      strings.TrimRight(getEnv("AIDESK_API_URL", "http://localhost:8000/api"), "/"),
		TokenStore:  getEnv("AIDESK_TOKEN_STORE", "file"),
		TokenDir:    os.Getenv("AIDESK_CONFIG"),
		RedisURL:    os.Getenv("REDIS_URL"),
		SQLitePath:  getEnv("AIDESK_SQLITE_PATH", "./data/aidesk.db"),
		BridgeAddr:  getEnv("AIDESK_BRIDGE_ADDR", "127.0.0.1:8090"),
		BridgeToken: os.Getenv("AIDESK_BRIDGE_TOKEN"),
		StartURL:    os.Getenv("AIDESK_START_URL"),
	}

	cfg.AuthURL = strings.TrimRight(getEnv("AIDESK_AUTH_URL", cfg.APIURL+"/auth"), "/")
	cfg.WSURL = getEnv("AIDESK_WS_URL", defaultWSURL(cfg.APIURL))

	if cfg.TokenDir == "" {
		home, _ := os.UserHomeDir()
		cfg.TokenDir = filepath.Join(home, ".aidesk")
	}

	// Comma-separated list of origins allowed to call the bridge
	if origins := os.Getenv("AIDESK_ALLOWED_ORIGINS"); origins != "" {
		for _, entry := range strings.Split(origins, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// defaultWSURL derives the same-origin /ws endpoint from the REST base.
func defaultWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:8000/ws"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
