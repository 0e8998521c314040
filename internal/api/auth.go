package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates a new account. The service responds with the created
// profile, which callers generally ignore: a fresh registration still
// requires a login to obtain a token.
func (c *Client) Register(ctx context.Context, email, password string) error {
	c.logger.Info("registering account", slog.String("email", email))

	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("api: marshaling register request: %w", err)
	}

	resp, err := c.DoUnauthenticated(ctx, http.MethodPost, "/auth/register", bytes.NewReader(body))
	if err != nil {
		return err
	}

	drainAndClose(resp)

	return nil
}

// Login authenticates with email and password and returns the bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	c.logger.Info("logging in", slog.String("email", email))

	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("api: marshaling login request: %w", err)
	}

	resp, err := c.DoUnauthenticated(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var lr loginResponse
	if err := decodeJSON(resp, &lr); err != nil {
		return "", err
	}

	if lr.AccessToken == "" {
		return "", fmt.Errorf("api: login response missing access_token")
	}

	return lr.AccessToken, nil
}

// Me fetches the current user's profile using the stored token. A failure
// here means the token can no longer be trusted for any subsequent call.
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err := decodeJSON(resp, &u); err != nil {
		return nil, err
	}

	return &u, nil
}
