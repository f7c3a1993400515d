package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoToken is returned when the login response carries no recognizable token.
var ErrNoToken = errors.New("login response contains no token")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token at {authURL}/login. The
// request is unauthenticated. The token is read from access_token, token or
// access, whichever the auth service sends.
func Login(ctx context.Context, hc *http.Client, authURL, email, password string) (string, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	body, _ := json.Marshal(loginRequest{Email: email, Password: password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		msg := errResp.Detail
		if msg == "" {
			msg = errResp.Error
		}
		return "", fmt.Errorf("login failed %d: %s", resp.StatusCode, msg)
	}

	var fields map[string]any
	if err := json.Unmarshal(respBody, &fields); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	for _, name := range []string{"access_token", "token", "access"} {
		if v, ok := fields[name].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrNoToken
}
