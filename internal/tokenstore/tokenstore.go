// Package tokenstore handles reading and writing the persisted session
// token. Exactly one token survives process restarts, stored as JSON under a
// fixed well-known filename in the data directory, until explicit logout or
// invalidation. This is a leaf package so both the session manager and the
// CLI can reach it without import cycles.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the well-known key under which the token is persisted.
const FileName = "token.json"

// FilePerms restricts the token file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

// file is the on-disk format.
type file struct {
	Token string `json:"token"`
}

// Path returns the token file path under the given data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads the persisted token. Returns "" (no error) if no token file
// exists — the caller treats that as the unauthenticated state.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("tokenstore: reading %s: %w", path, err)
	}

	var tf file
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("tokenstore: decoding %s: %w", path, err)
	}

	return tf.Token, nil
}

// Save writes the token file atomically (write-to-temp + rename) with 0600
// permissions. Never logs token values.
func Save(path, token string) error {
	data, err := json.MarshalIndent(file{Token: token}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenstore: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close and
	// rename cannot leave an empty or partial token file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenstore: renaming: %w", err)
	}

	success = true

	return nil
}

// Clear removes the token file. Returns nil if it does not exist — clearing
// an already-cleared session is not an error.
func Clear(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("tokenstore: removing %s: %w", path, err)
	}

	return nil
}
