package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

// ListFiles returns the stored file names of the current user, verbatim as
// the server reports them (including any owner-scope prefix). The service
// returns either a bare JSON array of names or a {"files": [...]} wrapper
// depending on deployment; both shapes are accepted.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/files/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading file list: %w", err)
	}

	var names []string
	if json.Unmarshal(body, &names) == nil {
		return names, nil
	}

	var wrapped struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("api: decoding file list: %w", err)
	}

	return wrapped.Files, nil
}

// GetStats returns the user's aggregate file count and total size as the
// server computed them. The client never derives these locally.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/files/stats", nil)
	if err != nil {
		return nil, err
	}

	var s Stats
	if err := decodeJSON(resp, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// Upload sends a single file as a multipart form part named "file" under the
// session's bearer credential. name is the filename presented to the server.
// The multipart body is streamed through a pipe so large files never buffer
// fully in memory.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) error {
	c.logger.Info("uploading file", slog.String("name", name))

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("api: creating multipart part: %w", err))
			return
		}

		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(fmt.Errorf("api: reading upload content: %w", err))
			return
		}

		pw.CloseWithError(mw.Close())
	}()

	resp, err := c.DoWithContentType(ctx, http.MethodPost, "/files/upload", pr, mw.FormDataContentType())
	if err != nil {
		return err
	}

	drainAndClose(resp)

	return nil
}

// Download streams the content of the named file to w and returns the number
// of bytes written. wireName is the full storage path (scope prefix included
// when the deployment uses per-user path scoping).
func (c *Client) Download(ctx context.Context, wireName string, w io.Writer) (int64, error) {
	c.logger.Info("downloading file", slog.String("name", wireName))

	resp, err := c.Do(ctx, http.MethodGet, "/files/download/"+encodePathSegments(wireName), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("api: streaming download content: %w", err)
	}

	return n, nil
}

// Delete removes the named file. Returns nil on success (HTTP 204).
func (c *Client) Delete(ctx context.Context, wireName string) error {
	c.logger.Info("deleting file", slog.String("name", wireName))

	resp, err := c.Do(ctx, http.MethodDelete, "/files/"+encodePathSegments(wireName), nil)
	if err != nil {
		return err
	}

	drainAndClose(resp)

	return nil
}

// CreatePublicLink mints a shareable unauthenticated URL for the named file.
func (c *Client) CreatePublicLink(ctx context.Context, wireName string) (*PublicLink, error) {
	c.logger.Info("creating public link", slog.String("name", wireName))

	resp, err := c.Do(ctx, http.MethodPost, "/files/"+encodePathSegments(wireName)+"/public-link", nil)
	if err != nil {
		return nil, err
	}

	var pl PublicLink
	if err := decodeJSON(resp, &pl); err != nil {
		return nil, err
	}

	return &pl, nil
}
