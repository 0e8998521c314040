package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const userAgent = "filecrate/0.1"

// TokenSource provides the bearer token attached to authenticated requests.
// Defined at the consumer per Go convention "accept interfaces, return
// structs" — the session manager provides the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the filecrate service API.
// It handles request construction, bearer authentication, and error
// classification. There is no retry loop: failed operations are surfaced to
// the caller and require explicit re-invocation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a service API client. token may be nil for clients that
// only call the unauthenticated register/login endpoints.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Do executes an authenticated HTTP request against the service API.
// The path is appended to the client's base URL. For non-nil bodies,
// Content-Type is set to application/json unless contentType overrides it.
// Non-2xx responses are converted into an *Error (with the server's optional
// {detail} message decoded) and the body is closed. On success the caller is
// responsible for closing the response body.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, method, path, body, "", true)
}

// DoUnauthenticated is Do without the Authorization header, for the
// register and login endpoints.
func (c *Client) DoUnauthenticated(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, method, path, body, "", false)
}

// DoWithContentType is Do with an explicit Content-Type, used for the
// multipart upload request.
func (c *Client) DoWithContentType(
	ctx context.Context, method, path string, body io.Reader, contentType string,
) (*http.Response, error) {
	return c.do(ctx, method, path, body, contentType, true)
}

func (c *Client) do(
	ctx context.Context, method, path string, body io.Reader, contentType string, authed bool,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	if authed {
		tok, tokErr := c.token.Token()
		if tokErr != nil {
			return nil, fmt.Errorf("api: obtaining token: %w", tokErr)
		}

		req.Header.Set("Authorization", "Bearer "+tok)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}

		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	apiErr := c.decodeError(resp)

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("detail", apiErr.Detail),
	)

	return nil, apiErr
}

// decodeError reads and closes an error response body, extracting the
// {"detail": "..."} message when the body is structured JSON. Unstructured
// bodies (HTML error pages, plain text) yield an empty Detail.
func (c *Client) decodeError(resp *http.Response) *Error {
	defer resp.Body.Close()

	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Err:        classifyStatus(resp.StatusCode),
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiErr
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Detail = payload.Detail
	}

	return apiErr
}

// decodeJSON decodes a success response body into v and closes it.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("api: decoding response: %w", err)
	}

	return nil
}

// drainAndClose discards any remaining response body so the underlying
// connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// encodePathSegments URL-encodes each segment of a slash-separated file path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into API URLs, while the slashes
// separating an owner-scope prefix from the display name survive.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}
