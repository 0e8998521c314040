package state

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/filecrate/filecrate-go/internal/api"
)

// Generic per-scope fallback messages for operations.
const (
	msgNoFileSelected = "select a file first"
	msgUploadFailed   = "upload failed"
	msgDownloadFailed = "download failed"
	msgDeleteFailed   = "could not delete file"
	msgLinkFailed     = "could not create public link"
)

// ErrNoFileSelected is the local validation failure for an upload with no
// source. No remote call is made in that case.
var ErrNoFileSelected = errors.New("state: no file selected")

// Coordinator drives the user-triggered file operations. Each operation is
// independent and never auto-retried: a failure is terminal for that
// attempt and requires explicit re-invocation. Mutating operations always
// end in a full directory refresh so the visible listing never drifts from
// server truth — even after a failed attempt that may have partially
// succeeded server-side.
type Coordinator struct {
	mgr    *Manager
	store  *Store
	sync   *Synchronizer
	client *api.Client
	logger *slog.Logger
}

// NewCoordinator wires the coordinator over the session manager and
// synchronizer.
func NewCoordinator(mgr *Manager, store *Store, sync *Synchronizer, client *api.Client, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		mgr:    mgr,
		store:  store,
		sync:   sync,
		client: client,
		logger: logger,
	}
}

// requireActive rejects operations outside the Active phase. File
// operations are only reachable from a validated session.
func (c *Coordinator) requireActive() error {
	if c.mgr.Phase() != Active {
		return ErrNotAuthenticated
	}

	return nil
}

// opLogger tags every log record of one operation with a unique ID so
// interleaved operations stay traceable.
func (c *Coordinator) opLogger(op string) *slog.Logger {
	return c.logger.With(
		slog.String("op", op),
		slog.String("op_id", uuid.NewString()),
	)
}

// Upload sends one file to the service. A nil source is a local validation
// failure: the upload-scope error is set and no remote call is made.
// Regardless of the upload call's outcome a full refresh runs afterward.
func (c *Coordinator) Upload(ctx context.Context, name string, src io.Reader) error {
	if err := c.requireActive(); err != nil {
		return err
	}

	log := c.opLogger("upload")

	if src == nil || name == "" {
		log.Debug("upload rejected locally, no file selected")
		c.store.SetError(ScopeUpload, msgNoFileSelected)

		return ErrNoFileSelected
	}

	upErr := c.client.Upload(ctx, name, src)
	if upErr != nil {
		c.store.SetError(ScopeUpload, api.Message(upErr, msgUploadFailed))
		log.Warn("upload failed", slog.String("name", name), slog.String("error", upErr.Error()))
	} else {
		c.store.ClearError(ScopeUpload)
		log.Info("upload complete", slog.String("name", name))
	}

	// Resynchronize even after a failure: the attempt may have partially
	// succeeded server-side.
	refreshErr := c.sync.RefreshAll(ctx)

	if upErr != nil {
		return upErr
	}

	return refreshErr
}

// Download streams the file's bytes to dst and returns the display name to
// suggest for local saving. A failed download cannot have changed server
// state, so no refresh is triggered either way.
func (c *Coordinator) Download(ctx context.Context, entry FileEntry, dst io.Writer) (string, int64, error) {
	if err := c.requireActive(); err != nil {
		return "", 0, err
	}

	log := c.opLogger("download")

	n, err := c.client.Download(ctx, entry.WireName(), dst)
	if err != nil {
		c.store.SetError(ScopeDownload, api.Message(err, msgDownloadFailed))
		log.Warn("download failed", slog.String("name", entry.Name), slog.String("error", err.Error()))

		return "", n, err
	}

	c.store.ClearError(ScopeDownload)
	log.Info("download complete",
		slog.String("name", entry.Name),
		slog.Int64("bytes", n),
	)

	return entry.DisplayName(), n, nil
}

// Delete removes the file. Regardless of outcome the displayed public link
// for that file is dropped and a full refresh runs afterward, keeping the
// listing authoritative.
func (c *Coordinator) Delete(ctx context.Context, entry FileEntry) error {
	if err := c.requireActive(); err != nil {
		return err
	}

	log := c.opLogger("delete")

	delErr := c.client.Delete(ctx, entry.WireName())
	if delErr != nil {
		c.store.SetError(ScopeDelete, api.Message(delErr, msgDeleteFailed))
		log.Warn("delete failed", slog.String("name", entry.Name), slog.String("error", delErr.Error()))
	} else {
		c.store.ClearError(ScopeDelete)
		log.Info("delete complete", slog.String("name", entry.Name))
	}

	c.store.RemovePublicLink(entry.Name)

	refreshErr := c.sync.RefreshAll(ctx)

	if delErr != nil {
		return delErr
	}

	return refreshErr
}

// CreatePublicLink mints a shareable link for the file. Success stores the
// link (replacing any prior entry for that name); failure clears any stale
// link for the name and sets the publicLink-scope error. Link creation
// cannot change the file list or stats, so no refresh runs.
func (c *Coordinator) CreatePublicLink(ctx context.Context, entry FileEntry) (PublicLink, error) {
	if err := c.requireActive(); err != nil {
		return PublicLink{}, err
	}

	log := c.opLogger("public-link")

	pl, err := c.client.CreatePublicLink(ctx, entry.WireName())
	if err != nil {
		c.store.RemovePublicLink(entry.Name)
		c.store.SetError(ScopePublicLink, api.Message(err, msgLinkFailed))
		log.Warn("public link failed", slog.String("name", entry.Name), slog.String("error", err.Error()))

		return PublicLink{}, err
	}

	c.store.SetPublicLink(entry.Name, pl.PublicURL)
	c.store.ClearError(ScopePublicLink)
	log.Info("public link created", slog.String("name", entry.Name))

	return PublicLink{FileName: entry.Name, URL: pl.PublicURL}, nil
}

// FindFile resolves a user-supplied display name (or verbatim stored name)
// against the current listing.
func (c *Coordinator) FindFile(name string) (FileEntry, bool) {
	for _, f := range c.store.Files() {
		if f.DisplayName() == name || f.Name == name {
			return f, true
		}
	}

	return FileEntry{}, false
}
