package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// BasicAuthenticator logs in against the store's session endpoint using a
// username/password pair and returns the opaque bearer token the store
// issues in exchange. Re-auth on 401 is handled by Client, not here —
// this type only knows how to mint a fresh token on demand.
type BasicAuthenticator struct {
	BaseURL  string
	Layout   string
	Username string
	Password string

	HTTPClient *http.Client
}

func (a *BasicAuthenticator) Login(ctx context.Context) (string, error) {
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	url := fmt.Sprintf("%s/layouts/%s/sessions", a.BaseURL, a.Layout)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.Username, a.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("store login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("store login failed with status %d", resp.StatusCode)
	}

	var out struct {
		Response struct {
			Token string `json:"token"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding store login response: %w", err)
	}
	return out.Response.Token, nil
}
